package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/indexer"
	"docqa/internal/logger"
)

// DocumentLoader reads every supported document under a directory.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]domain.Document, error)
}

// Deps are the collaborators a Session drives.
type Deps struct {
	Loader     DocumentLoader
	Splitter   domain.Splitter
	Embedder   domain.Embedder
	Builder    *indexer.Builder
	Summarizer domain.Summarizer
	Pipeline   *Pipeline
}

// SessionOptions controls ingest behavior.
type SessionOptions struct {
	// ReuseIndex loads the saved snapshot instead of rebuilding when one exists.
	ReuseIndex        bool
	OverviewSentences int
}

// IngestReport describes what Ingest produced.
type IngestReport struct {
	Dir       string
	Documents int
	Chunks    int
	Reused    bool
	Overview  string
}

// Session owns the index built by Ingest and answers queries against it.
// A session without an index answers directly with the model.
type Session struct {
	deps Deps
	opts SessionOptions

	mu       sync.RWMutex
	index    domain.Index
	overview string
}

func NewSession(deps Deps, opts SessionOptions) (*Session, error) {
	switch {
	case deps.Loader == nil:
		return nil, errors.New("service: loader is required")
	case deps.Splitter == nil:
		return nil, errors.New("service: splitter is required")
	case deps.Embedder == nil:
		return nil, errors.New("service: embedder is required")
	case deps.Builder == nil:
		return nil, errors.New("service: index builder is required")
	case deps.Pipeline == nil:
		return nil, errors.New("service: pipeline is required")
	}
	if opts.OverviewSentences <= 0 {
		opts.OverviewSentences = 3
	}
	return &Session{deps: deps, opts: opts}, nil
}

// Ingest loads dir, splits it and builds (or reuses) the index.
// An empty directory leaves the session without an index.
func (s *Session) Ingest(ctx context.Context, dir string) (*IngestReport, error) {
	log := logger.FromContext(ctx)
	docs, err := s.deps.Loader.Load(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	report := &IngestReport{Dir: dir, Documents: len(docs)}
	if len(docs) == 0 {
		log.Warn("No documents loaded, answering without an index", "dir", dir)
		s.setIndex(nil, "")
		return report, nil
	}

	var ix domain.Index
	indexDir := s.deps.Builder.Dir()
	if s.opts.ReuseIndex && index.Exists(indexDir) {
		ix, err = s.reuse(ctx, indexDir)
		if err != nil {
			return nil, err
		}
		if ix != nil {
			report.Reused = true
			log.Info("Reusing saved index", "dir", indexDir, "chunks", ix.Len())
		}
	}
	if ix == nil {
		chunks, err := s.deps.Splitter.Split(docs)
		if err != nil {
			return nil, fmt.Errorf("split documents: %w", err)
		}
		log.Info("Documents split", "documents", len(docs), "chunks", len(chunks))
		ix, err = s.deps.Builder.BuildChunks(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
	}
	if ix != nil {
		report.Chunks = ix.Len()
	}

	report.Overview = s.corpusOverview(ctx, docs)
	s.setIndex(ix, report.Overview)
	return report, nil
}

// reuse loads the snapshot in dir. It returns a nil index when the snapshot
// is empty or was built with vectors of a different size than the embedder
// produces, so the caller rebuilds.
func (s *Session) reuse(ctx context.Context, dir string) (domain.Index, error) {
	log := logger.FromContext(ctx)
	ix, err := index.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load saved index: %w", err)
	}
	chunks := ix.Chunks()
	if len(chunks) == 0 {
		log.Warn("Saved index is empty, rebuilding", "dir", dir)
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	if err := s.deps.Embedder.Prepare(texts); err != nil {
		return nil, fmt.Errorf("prepare embedder %s: %w", s.deps.Embedder.Name(), err)
	}
	vector, err := s.deps.Embedder.EmbedQuery(ctx, texts[0])
	if err != nil {
		return nil, fmt.Errorf("check saved index against embedder %s: %w", s.deps.Embedder.Name(), err)
	}
	if len(vector) != ix.Dimension() {
		log.Warn("Saved index does not match the embedder, rebuilding",
			"dir", dir, "index_dimension", ix.Dimension(), "embedder", s.deps.Embedder.Name(), "embedder_dimension", len(vector))
		return nil, nil
	}
	return ix, nil
}

func (s *Session) corpusOverview(ctx context.Context, docs []domain.Document) string {
	if s.deps.Summarizer == nil {
		return ""
	}
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Content)
		b.WriteString("\n")
	}
	out, err := s.deps.Summarizer.Summarize(b.String(), s.opts.OverviewSentences)
	if err != nil {
		logger.FromContext(ctx).Warn("Corpus overview failed", "error", err)
		return ""
	}
	return out
}

func (s *Session) setIndex(ix domain.Index, overview string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = ix
	s.overview = overview
}

// Index returns the current index, nil when none was built.
func (s *Session) Index() domain.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Overview returns the extractive corpus summary from the last Ingest.
func (s *Session) Overview() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overview
}

func (s *Session) Answer(ctx context.Context, query string) (*domain.QueryResult, error) {
	return s.deps.Pipeline.Answer(ctx, s.Index(), query)
}

func (s *Session) Respond(ctx context.Context, query string) *domain.QueryResult {
	return s.deps.Pipeline.Respond(ctx, s.Index(), query)
}
