package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
)

// Model adapts a langchaingo model to a single-prompt text generator.
type Model struct {
	name    string
	impl    llms.Model
	timeout time.Duration
	opts    []llms.CallOption
}

// Wrap adapts impl. A zero timeout leaves calls bounded only by ctx.
func Wrap(name string, impl llms.Model, timeout time.Duration, opts ...llms.CallOption) (*Model, error) {
	if impl == nil {
		return nil, fmt.Errorf("llm %q: implementation is required", name)
	}
	return &Model{name: name, impl: impl, timeout: timeout, opts: opts}, nil
}

// New builds the model selected by cfg.Provider.
func New(cfg config.LLMConfig) (*Model, error) {
	var (
		impl llms.Model
		err  error
	)
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if key := cfg.APIKey(); key != "" {
			opts = append(opts, openai.WithToken(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		impl, err = openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		impl, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm %q: initialize client: %w", cfg.Provider, err)
	}
	return Wrap(cfg.Provider+":"+cfg.Model, impl, cfg.Timeout(), llms.WithTemperature(0))
}

func (m *Model) Name() string { return m.name }

// Generate sends prompt as a single human message and returns the trimmed reply.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, m.impl, prompt, m.opts...)
	if err != nil {
		return "", fmt.Errorf("llm %q: generate: %w", m.name, err)
	}
	return strings.TrimSpace(out), nil
}
