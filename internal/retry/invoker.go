package retry

import (
	"context"
	"errors"

	"docqa/internal/domain"
)

// Invoker wraps every call to a language model with a retry policy.
type Invoker struct {
	model  domain.LanguageModel
	policy Policy
}

// NewInvoker returns an invoker for model using policy.
func NewInvoker(model domain.LanguageModel, policy Policy) (*Invoker, error) {
	if model == nil {
		return nil, errors.New("retry: language model is required")
	}
	return &Invoker{model: model, policy: policy.normalized()}, nil
}

// Invoke sends prompt to the model, retrying failures per the policy.
// The final failure is returned, never swallowed.
func (i *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	return Do(ctx, i.policy, "llm invoke", func(ctx context.Context) (string, error) {
		return i.model.Generate(ctx, prompt)
	})
}

// Policy returns the effective retry policy.
func (i *Invoker) Policy() Policy { return i.policy }
