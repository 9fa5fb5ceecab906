package service

import (
	"fmt"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/index"
	"docqa/internal/indexer"
	"docqa/internal/llm"
	"docqa/internal/loader"
	"docqa/internal/retry"
	"docqa/internal/summarizer"
)

// Policy converts the configured retry settings.
func Policy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay, MaxDelay: cfg.MaxDelay}
}

// NewFromConfig assembles a Session backed by the configured providers.
func NewFromConfig(cfg *config.AppConfig) (*Session, error) {
	model, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, model, embedder)
}

// Assemble builds a Session from cfg around the given model and embedder.
func Assemble(cfg *config.AppConfig, model domain.LanguageModel, embedder domain.Embedder) (*Session, error) {
	policy := Policy(cfg.LLM.Retry)
	invoker, err := retry.NewInvoker(model, policy)
	if err != nil {
		return nil, err
	}
	splitter, err := chunker.NewSplitter(chunker.Settings{
		Size:        cfg.Chunker.ChunkSize,
		Overlap:     *cfg.Chunker.ChunkOverlap,
		Deduplicate: cfg.Chunker.Deduplicate,
	})
	if err != nil {
		return nil, fmt.Errorf("configure splitter: %w", err)
	}
	builder, err := indexer.NewBuilder(embedder, index.Factory{}, indexer.Options{
		Dir:       cfg.Index.Dir,
		BatchSize: cfg.Index.BatchSize,
		Policy:    policy,
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := NewPipeline(embedder, invoker, PipelineOptions{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: *cfg.Retrieval.SimilarityThreshold,
		SummaryLength:       cfg.Answer.SummaryLength,
		AILength:            cfg.Answer.AILength,
	})
	if err != nil {
		return nil, err
	}
	return NewSession(Deps{
		Loader:     loader.New(),
		Splitter:   splitter,
		Embedder:   embedder,
		Builder:    builder,
		Summarizer: summarizer.NewFrequency(),
		Pipeline:   pipeline,
	}, SessionOptions{ReuseIndex: cfg.Index.Reuse})
}
