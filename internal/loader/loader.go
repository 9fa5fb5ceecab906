package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

var (
	// ErrDirectoryNotFound is returned when the document directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrUnsupportedType is returned for files with no registered reader.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ReadFunc extracts plain text from a file.
type ReadFunc func(path string) (string, error)

// Loader walks a directory and turns every supported file into a Document.
type Loader struct {
	readers map[string]ReadFunc
}

// New creates a loader with readers for .txt, .md, .pdf and .docx files.
func New() *Loader {
	return &Loader{readers: map[string]ReadFunc{
		".txt":  readPlainText,
		".md":   readPlainText,
		".pdf":  readPDF,
		".docx": readDOCX,
	}}
}

// Register adds or replaces the reader for a file extension (including the dot).
func (l *Loader) Register(ext string, fn ReadFunc) {
	l.readers[strings.ToLower(ext)] = fn
}

// Supports reports whether a reader is registered for the file's extension.
func (l *Loader) Supports(path string) bool {
	_, ok := l.readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load reads every supported file under dir, recursively.
// A missing directory aborts the load; unsupported or unreadable files are logged
// and skipped so the remaining files still load.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	log := logger.FromContext(ctx)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Error("Document directory does not exist", "dir", dir)
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}
	log.Info("Loading documents", "dir", dir)

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Error("Error walking directory", "path", path, "error", err)
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	documents := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := l.loadFile(path)
		if err != nil {
			log.Error("Error loading file", "path", path, "error", err)
			continue
		}
		log.Debug("Loaded file", "path", path, "chars", len([]rune(doc.Content)))
		documents = append(documents, doc)
	}
	log.Info("Documents loaded", "dir", dir, "files", len(paths), "documents", len(documents))
	return documents, nil
}

func (l *Loader) loadFile(path string) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := l.readers[ext]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Base(path))
	}
	content, err := read(path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:      hashString(path),
		Path:    path,
		Content: content,
		Metadata: map[string]string{
			"source": path,
			"format": strings.TrimPrefix(ext, "."),
		},
	}, nil
}

func readPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
