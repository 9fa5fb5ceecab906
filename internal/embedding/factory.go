package embedding

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
	"docqa/internal/domain"
)

// New builds the embedder selected by cfg.Type.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var client embeddings.EmbedderClient
	switch cfg.Type {
	case "tfidf":
		return NewTFIDF(), nil
	case "openai":
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if key := cfg.APIKey(); key != "" {
			opts = append(opts, openai.WithToken(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		c, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("embedder %q: initialize openai client: %w", cfg.Type, err)
		}
		client = c
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		c, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("embedder %q: initialize ollama client: %w", cfg.Type, err)
		}
		client = c
	default:
		return nil, fmt.Errorf("embedder type %q is not supported", cfg.Type)
	}

	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: construct embedder: %w", cfg.Type, err)
	}
	adapter, err := Wrap(cfg.Type+":"+cfg.Model, impl)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		if err := adapter.EnableCache(cfg.CacheSize); err != nil {
			return nil, err
		}
	}
	return adapter, nil
}
