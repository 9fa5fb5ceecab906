package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
)

// Adapter exposes a langchaingo embedder through the domain port.
// Query vectors can be memoized in an LRU cache; document vectors never are.
type Adapter struct {
	name    string
	impl    embeddings.Embedder
	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float64]
}

// Wrap builds an adapter around an existing langchaingo embedder.
func Wrap(name string, impl embeddings.Embedder) (*Adapter, error) {
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", name)
	}
	return &Adapter{name: name, impl: impl}, nil
}

// EnableCache turns on query-vector caching with room for size entries.
func (a *Adapter) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("embedder %q: cache size must be greater than zero", a.name)
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return fmt.Errorf("embedder %q: init cache: %w", a.name, err)
	}
	a.cacheMu.Lock()
	a.cache = cache
	a.cacheMu.Unlock()
	return nil
}

func (a *Adapter) Name() string { return a.name }

// Prepare is a no-op; remote models need no corpus.
func (a *Adapter) Prepare([]string) error { return nil }

func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(vectors) != len(texts) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)))
	}
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = widen(v)
	}
	return out, nil
}

func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text)
	if vector, ok := a.lookup(key); ok {
		return vector, nil
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(vector) == 0 {
		return nil, a.withContext(errors.New("empty query embedding"))
	}
	out := widen(vector)
	a.store(key, out)
	return out, nil
}

func (a *Adapter) lookup(key string) ([]float64, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache == nil {
		return nil, false
	}
	v, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float64(nil), v...), true
}

func (a *Adapter) store(key string, vector []float64) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache != nil {
		a.cache.Add(key, append([]float64(nil), vector...))
	}
}

func (a *Adapter) withContext(err error) error {
	return fmt.Errorf("embedder %q: %w", a.name, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func widen(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}
