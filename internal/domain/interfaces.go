package domain

import "context"

// Document represents a single file loaded from the document directory.
type Document struct {
	ID       string
	Path     string
	Content  string
	Metadata map[string]string
}

// Chunk is a bounded part of a document used as the atomic retrieval unit.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]string
}

// Source returns the path of the document the chunk was split from, if known.
func (c Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["source"]
}

// ScoredChunk pairs a chunk with its distance to a query.
// Lower scores are closer matches (cosine distance).
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// LanguageModel generates text for a single prompt.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Splitter splits documents into chunks suitable for retrieval indexing.
type Splitter interface {
	Split(docs []Document) ([]Chunk, error)
}

// Index stores chunk embeddings and supports nearest-neighbor search.
type Index interface {
	Add(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, k int) ([]ScoredChunk, error)
	Save(ctx context.Context, dir string) error
	Len() int
	Chunks() []Chunk
}

// LexicalSearcher is implemented by indexes that can rank chunks by term overlap
// when the query has no usable embedding.
type LexicalSearcher interface {
	LexicalSearch(query string, k int) []ScoredChunk
}

// IndexFactory creates an empty index for vectors of the given dimension.
type IndexFactory interface {
	Create(ctx context.Context, dimension int) (Index, error)
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
