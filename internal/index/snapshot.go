package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docqa/internal/domain"
)

const (
	snapshotFile    = "index.json"
	snapshotVersion = 1
)

// ErrNoSnapshot is returned by Load when dir holds no saved index.
var ErrNoSnapshot = errors.New("no index snapshot")

type snapshot struct {
	Version   int     `json:"version"`
	Dimension int     `json:"dimension"`
	Entries   []entry `json:"entries"`
}

type entry struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Vector     []float64         `json:"vector"`
}

// Exists reports whether dir holds a saved index.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, snapshotFile))
	return err == nil && !info.IsDir()
}

// Save writes the index to dir/index.json, replacing any earlier snapshot.
// Other files in dir are left alone.
func (ix *Index) Save(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.RLock()
	snap := snapshot{Version: snapshotVersion, Dimension: ix.dimension, Entries: make([]entry, len(ix.chunks))}
	for i, ch := range ix.chunks {
		snap.Entries[i] = entry{
			ID:         ch.ID,
			DocumentID: ch.DocumentID,
			Index:      ch.Index,
			Content:    ch.Content,
			Metadata:   ch.Metadata,
			Vector:     ix.vectors[i],
		}
	}
	data, err := json.Marshal(snap)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, snapshotFile)); err != nil {
		return fmt.Errorf("move index into place: %w", err)
	}
	return nil
}

// Load reads the index saved in dir.
func Load(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoSnapshot, dir)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported index version %d", snap.Version)
	}
	ix, err := New(snap.Dimension)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(snap.Entries))
	vectors := make([][]float64, len(snap.Entries))
	for i, e := range snap.Entries {
		chunks[i] = domain.Chunk{ID: e.ID, DocumentID: e.DocumentID, Index: e.Index, Content: e.Content, Metadata: e.Metadata}
		vectors[i] = e.Vector
	}
	if err := ix.Add(context.Background(), chunks, vectors); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return ix, nil
}
