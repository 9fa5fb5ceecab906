package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"docqa/internal/domain"
)

// Separators are tried in order; the splitter falls through to the next one
// when a piece is still larger than the chunk size. A separator stays in the
// text and opens the piece that follows it.
var Separators = []string{"\n\n", "\n", "。", " ", "  ", "   ", "    "}

// Settings configures the splitter. Size and Overlap are measured in characters.
type Settings struct {
	Size        int
	Overlap     int
	Deduplicate bool
}

// Splitter cuts documents into overlapping chunks with a recursive separator strategy.
type Splitter struct {
	settings Settings
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter validates settings and builds a splitter.
func NewSplitter(settings Settings) (*Splitter, error) {
	if settings.Size <= 0 {
		return nil, errors.New("chunker: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunker: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return &Splitter{
		settings: settings,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(settings.Size),
			textsplitter.WithChunkOverlap(settings.Overlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

// Split chunks every document in order. Chunks inherit their document's metadata
// and carry a chunk_index entry.
func (s *Splitter) Split(docs []domain.Document) ([]domain.Chunk, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var chunks []domain.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		segments, err := s.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("chunker: split document %s: %w", doc.Path, err)
		}
		idx := 0
		for _, segment := range segments {
			if strings.TrimSpace(segment) == "" {
				continue
			}
			if s.settings.Deduplicate {
				hash := hashText(segment)
				if _, exists := seen[hash]; exists {
					continue
				}
				seen[hash] = struct{}{}
			}
			metadata := maps.Clone(doc.Metadata)
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata["chunk_index"] = strconv.Itoa(idx)
			chunks = append(chunks, domain.Chunk{
				ID:         doc.ID + ":" + strconv.Itoa(idx),
				DocumentID: doc.ID,
				Index:      idx,
				Content:    segment,
				Metadata:   metadata,
			})
			idx++
		}
	}
	return chunks, nil
}

// Settings returns the splitter configuration.
func (s *Splitter) Settings() Settings { return s.settings }

func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
