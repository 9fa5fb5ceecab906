package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/retry"
)

// DefaultTopK is the number of nearest chunks retrieved per query.
const DefaultTopK = 30

const (
	StageInput      = "input"
	StageDirect     = "direct answer"
	StageEmbed      = "embed query"
	StageRetrieve   = "retrieve"
	StageReorder    = "reorder"
	StageSummarize  = "summarize"
	StageSupplement = "supplement"
)

// PipelineOptions bounds retrieval and the generated texts.
type PipelineOptions struct {
	TopK int
	// SimilarityThreshold is the largest cosine distance a chunk may have to be used.
	SimilarityThreshold float64
	// SummaryLength and AILength are character budgets.
	SummaryLength int
	AILength      int
}

// Pipeline answers one query against an index. It holds no index itself.
type Pipeline struct {
	embedder domain.Embedder
	invoker  *retry.Invoker
	opts     PipelineOptions
}

func NewPipeline(embedder domain.Embedder, invoker *retry.Invoker, opts PipelineOptions) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("service: embedder is required")
	}
	if invoker == nil {
		return nil, errors.New("service: llm invoker is required")
	}
	if opts.SummaryLength <= 0 || opts.AILength <= 0 {
		return nil, fmt.Errorf("service: summary length %d and ai length %d must be positive", opts.SummaryLength, opts.AILength)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Pipeline{embedder: embedder, invoker: invoker, opts: opts}, nil
}

// Answer runs the pipeline. A nil index answers the query directly with the model.
// Failures are returned as *domain.QueryError.
func (p *Pipeline) Answer(ctx context.Context, ix domain.Index, query string) (*domain.QueryResult, error) {
	log := logger.FromContext(ctx)
	if strings.TrimSpace(query) == "" {
		return nil, &domain.QueryError{Kind: domain.KindMalformedInput, Stage: StageInput, Err: domain.ErrEmptyQuery}
	}
	log.Info("Processing query", "query", query, "indexed", ix != nil)

	if ix == nil {
		answer, err := p.invoke(ctx, StageDirect, query)
		if err != nil {
			return nil, err
		}
		return &domain.QueryResult{Kind: domain.ResultDirect, Answer: answer}, nil
	}

	material, err := p.retrieve(ctx, ix, query)
	if err != nil {
		return nil, err
	}
	if !material.IsMatch() {
		log.Info("No chunk within similarity threshold", "threshold", p.opts.SimilarityThreshold)
		supplement, err := p.invoke(ctx, StageSupplement, query)
		if err != nil {
			return nil, err
		}
		return &domain.QueryResult{
			Kind:       domain.ResultComposed,
			Excerpt:    material.Text(),
			Summary:    material.Text(),
			Supplement: supplement,
		}, nil
	}

	excerpt, err := p.invoke(ctx, StageReorder, reorderPrompt(query, material.Text()))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(excerpt) == "" {
		log.Warn("Reorder returned nothing, keeping retrieved text")
		excerpt = material.Text()
	}
	summary, err := p.invoke(ctx, StageSummarize, summaryPrompt(excerpt, p.opts.SummaryLength))
	if err != nil {
		return nil, err
	}
	supplement, err := p.invoke(ctx, StageSupplement, supplementPrompt(query, excerpt, p.opts.AILength))
	if err != nil {
		return nil, err
	}
	return &domain.QueryResult{
		Kind:       domain.ResultComposed,
		Matched:    true,
		Excerpt:    excerpt,
		Summary:    clampRunes(summary, p.opts.SummaryLength),
		Supplement: clampRunes(supplement, p.opts.AILength),
	}, nil
}

// Respond is Answer for callers that only display results: it never returns an
// error and never panics. Failures become a ResultFailed result.
func (p *Pipeline) Respond(ctx context.Context, ix domain.Index, query string) (res *domain.QueryResult) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Query panicked", "query", query, "panic", r)
			res = failed(fmt.Errorf("panic: %v", r))
		}
	}()
	res, err := p.Answer(ctx, ix, query)
	if err != nil {
		log.Error("Error invoking QA pipeline", "query", query, "error", err)
		return failed(err)
	}
	return res
}

func (p *Pipeline) retrieve(ctx context.Context, ix domain.Index, query string) (domain.Material, error) {
	log := logger.FromContext(ctx)
	vector, err := retry.Do(ctx, p.invoker.Policy(), StageEmbed, func(ctx context.Context) ([]float64, error) {
		return p.embedder.EmbedQuery(ctx, query)
	})
	if err != nil {
		return domain.Material{}, &domain.QueryError{Kind: domain.KindUpstream, Stage: StageEmbed, Err: err}
	}

	var results []domain.ScoredChunk
	if lex, ok := ix.(domain.LexicalSearcher); ok && isZero(vector) {
		log.Debug("Query has no embedding terms, using lexical search")
		results = lex.LexicalSearch(query, p.opts.TopK)
	} else {
		results, err = ix.Search(ctx, vector, p.opts.TopK)
		if err != nil {
			return domain.Material{}, &domain.QueryError{Kind: domain.KindIndex, Stage: StageRetrieve, Err: err}
		}
	}
	kept := filterByDistance(results, p.opts.SimilarityThreshold)
	log.Info("Retrieved chunks", "retrieved", len(results), "kept", len(kept), "threshold", p.opts.SimilarityThreshold)
	if len(kept) == 0 {
		return domain.NoMatch(), nil
	}
	texts := make([]string, len(kept))
	for i, sc := range kept {
		texts[i] = sc.Chunk.Content
	}
	return domain.Matched(strings.Join(texts, "\n")), nil
}

func (p *Pipeline) invoke(ctx context.Context, stage, prompt string) (string, error) {
	out, err := p.invoker.Invoke(ctx, prompt)
	if err != nil {
		return "", &domain.QueryError{Kind: domain.KindUpstream, Stage: stage, Err: err}
	}
	logger.FromContext(ctx).Debug("LLM step done", "stage", stage, "chars", utf8.RuneCountInString(out))
	return out, nil
}

// filterByDistance keeps results at or below threshold, in their given order.
func filterByDistance(results []domain.ScoredChunk, threshold float64) []domain.ScoredChunk {
	kept := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score <= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

func failed(err error) *domain.QueryResult {
	return &domain.QueryResult{Kind: domain.ResultFailed, Answer: domain.QueryFailedMessage, Err: err}
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func clampRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
