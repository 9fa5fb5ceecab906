package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/retry"
)

// Options configures a Builder.
type Options struct {
	// Dir is where the finished index is saved.
	Dir string
	// BatchSize is the number of chunks embedded per upstream call.
	BatchSize int
	Policy    retry.Policy
}

// Builder embeds chunks in batches and persists the resulting index.
type Builder struct {
	embedder  domain.Embedder
	factory   domain.IndexFactory
	policy    retry.Policy
	batchSize int
	dir       string
}

func NewBuilder(embedder domain.Embedder, factory domain.IndexFactory, opts Options) (*Builder, error) {
	if embedder == nil {
		return nil, errors.New("indexer: embedder is required")
	}
	if factory == nil {
		return nil, errors.New("indexer: index factory is required")
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("indexer: index dir is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	return &Builder{
		embedder:  embedder,
		factory:   factory,
		policy:    opts.Policy,
		batchSize: opts.BatchSize,
		dir:       opts.Dir,
	}, nil
}

// Dir is where Build saves the index.
func (b *Builder) Dir() string { return b.dir }

// BuildChunks is Build for an already typed chunk list.
func (b *Builder) BuildChunks(ctx context.Context, chunks []domain.Chunk) (domain.Index, error) {
	items := make([]any, len(chunks))
	for i := range chunks {
		items[i] = chunks[i]
	}
	return b.Build(ctx, items)
}

// Build accepts strings, domain.Chunk and *domain.Chunk values; anything else,
// and any element with blank content, is skipped with a warning.
// It returns a nil index and no error when nothing is left to index.
// The index is saved only after every batch has been embedded.
func (b *Builder) Build(ctx context.Context, items []any) (domain.Index, error) {
	log := logger.FromContext(ctx)
	chunks := coerce(log, items)
	if len(chunks) == 0 {
		log.Warn("No valid chunks to index", "items", len(items))
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	if err := b.embedder.Prepare(texts); err != nil {
		return nil, fmt.Errorf("prepare embedder %s: %w", b.embedder.Name(), err)
	}

	log.Info("Building index", "chunks", len(chunks), "batch_size", b.batchSize, "embedder", b.embedder.Name())
	var ix domain.Index
	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		batch := chunks[start:end]
		vectors, err := retry.Do(ctx, b.policy, "embed batch", func(ctx context.Context) ([][]float64, error) {
			return b.embedder.EmbedDocuments(ctx, texts[start:end])
		})
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vectors))
		}
		if ix == nil {
			ix, err = b.factory.Create(ctx, len(vectors[0]))
			if err != nil {
				return nil, fmt.Errorf("create index: %w", err)
			}
		}
		if err := ix.Add(ctx, batch, vectors); err != nil {
			return nil, fmt.Errorf("add chunks %d-%d: %w", start, end-1, err)
		}
		log.Debug("Indexed batch", "from", start, "to", end-1)
	}

	if err := ix.Save(ctx, b.dir); err != nil {
		return nil, fmt.Errorf("save index to %s: %w", b.dir, err)
	}
	log.Info("Index saved", "dir", b.dir, "chunks", ix.Len())
	return ix, nil
}

func coerce(log logger.Logger, items []any) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(items))
	for i, item := range items {
		var ch domain.Chunk
		switch v := item.(type) {
		case string:
			ch = domain.Chunk{ID: "item:" + strconv.Itoa(i), Index: i, Content: v}
		case domain.Chunk:
			ch = v
		case *domain.Chunk:
			if v == nil {
				log.Warn("Skipping nil chunk", "position", i)
				continue
			}
			ch = *v
		default:
			log.Warn("Skipping unsupported item", "position", i, "type", fmt.Sprintf("%T", item))
			continue
		}
		if strings.TrimSpace(ch.Content) == "" {
			log.Warn("Skipping empty chunk", "position", i)
			continue
		}
		chunks = append(chunks, ch)
	}
	return chunks
}
