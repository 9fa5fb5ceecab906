package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"docqa/internal/domain"
)

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrLengthMismatch    = errors.New("chunks and vectors length mismatch")
)

// Index is an in-memory brute-force cosine index.
// Scores are cosine distances: 0 for identical directions, 2 for opposite ones.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}
	return &Index{dimension: dimension}, nil
}

func (ix *Index) Dimension() int { return ix.dimension }

// Add appends chunks and their vectors. Nothing is added if any vector is invalid.
func (ix *Index) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != ix.dimension {
			return fmt.Errorf("%w: vector %d has %d, index has %d", ErrDimensionMismatch, i, len(v), ix.dimension)
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i := range chunks {
		ix.chunks = append(ix.chunks, chunks[i])
		ix.vectors = append(ix.vectors, append([]float64(nil), vectors[i]...))
	}
	return nil
}

// Search returns up to k chunks ordered by ascending distance to vector.
// Equal distances keep insertion order.
func (ix *Index) Search(ctx context.Context, vector []float64, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), ix.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	scores := make([]float64, len(ix.vectors))
	for i := range ix.vectors {
		scores[i] = cosineDistance(ix.vectors[i], vector)
	}
	return ix.topK(scores, k), nil
}

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// LexicalSearch ranks chunks by term overlap with query (Ochiai coefficient),
// reported as a distance of 1 - overlap so lower stays closer.
func (ix *Index) LexicalSearch(query string, k int) []domain.ScoredChunk {
	qset := tokenSet(query)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	scores := make([]float64, len(ix.chunks))
	for i, ch := range ix.chunks {
		scores[i] = 1 - ochiai(qset, tokenSet(ch.Content))
	}
	return ix.topK(scores, k)
}

// topK must be called with the read lock held.
func (ix *Index) topK(scores []float64, k int) []domain.ScoredChunk {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] < scores[idxs[b]] })
	if k <= 0 || k > len(idxs) {
		k = len(idxs)
	}
	out := make([]domain.ScoredChunk, 0, k)
	for _, j := range idxs[:k] {
		out = append(out, domain.ScoredChunk{Chunk: ix.chunks[j], Score: scores[j]})
	}
	return out
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Chunks returns a copy of the indexed chunks in insertion order.
func (ix *Index) Chunks() []domain.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]domain.Chunk(nil), ix.chunks...)
}

// Factory creates empty in-memory indexes.
type Factory struct{}

func (Factory) Create(_ context.Context, dimension int) (domain.Index, error) {
	return New(dimension)
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordPattern.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
