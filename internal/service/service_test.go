package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/loader"
	"docqa/internal/retry"
)

const capitalQuery = "What is the capital of France?"

// scriptedLLM answers each pipeline step with a fixed reply, keyed on the prompt shape.
type scriptedLLM struct {
	mu         sync.Mutex
	prompts    []string
	reorder    string
	summary    string
	supplement string
	direct     string
	err        error
	panics     bool
}

func (m *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.panics {
		panic("model exploded")
	}
	if m.err != nil {
		return "", m.err
	}
	switch {
	case strings.HasPrefix(prompt, "Process the text below"):
		return m.reorder, nil
	case strings.HasPrefix(prompt, "Summarize the text below"):
		return m.summary, nil
	case strings.HasPrefix(prompt, "Using the reference answer"):
		return m.supplement, nil
	default:
		return m.direct, nil
	}
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		reorder:    "Paris is the capital of France.",
		summary:    strings.Repeat("France has Paris as its capital city. ", 10),
		supplement: "The capital of France is Paris.",
		direct:     "direct reply",
	}
}

func testConfig(t *testing.T, docsDir string, threshold float64) *config.AppConfig {
	t.Helper()
	overlap := 10
	return &config.AppConfig{
		Documents: config.DocumentsConfig{Dir: docsDir},
		Chunker:   config.ChunkerConfig{ChunkSize: 200, ChunkOverlap: &overlap},
		Retrieval: config.RetrievalConfig{TopK: 30, SimilarityThreshold: &threshold},
		Answer:    config.AnswerConfig{SummaryLength: 20, AILength: 50},
		LLM: config.LLMConfig{Retry: config.RetryConfig{
			MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		}},
		Embedder: config.EmbedderConfig{Type: "tfidf"},
		Index:    config.IndexConfig{Dir: filepath.Join(t.TempDir(), "faiss_db"), BatchSize: 4},
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func ingestedSession(t *testing.T, model domain.LanguageModel, threshold float64) *Session {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "france.txt", "Paris is the capital of France.")
	s, err := Assemble(testConfig(t, dir, threshold), model, embedding.NewTFIDF())
	require.NoError(t, err)
	_, err = s.Ingest(context.Background(), dir)
	require.NoError(t, err)
	return s
}

func TestSession_EndToEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldComposeAnswerFromMatchingDocument", func(t *testing.T) {
		model := newScriptedLLM()
		s := ingestedSession(t, model, 0.5)
		require.NotNil(t, s.Index())

		res := s.Respond(ctx, capitalQuery)
		require.Equal(t, domain.ResultComposed, res.Kind)
		assert.True(t, res.Matched)
		assert.Contains(t, res.Excerpt, "Paris is the capital of France.")
		assert.NotEmpty(t, res.Summary)
		assert.LessOrEqual(t, utf8.RuneCountInString(res.Summary), 20)
		assert.Equal(t, "The capital of France is Paris.", res.Supplement)

		require.Len(t, model.prompts, 3)
		assert.Contains(t, model.prompts[0], "Paris is the capital of France.")
		assert.Contains(t, model.prompts[0], capitalQuery)
		assert.Contains(t, model.prompts[1], "no more than 20 characters")
		assert.Contains(t, model.prompts[2], "no more than 50 characters")
	})

	t.Run("ShouldAnswerDirectlyWithoutDocuments", func(t *testing.T) {
		model := newScriptedLLM()
		dir := t.TempDir()
		s, err := Assemble(testConfig(t, dir, 0.5), model, embedding.NewTFIDF())
		require.NoError(t, err)

		report, err := s.Ingest(ctx, dir)
		require.NoError(t, err)
		assert.Zero(t, report.Documents)
		assert.Nil(t, s.Index())

		res := s.Respond(ctx, capitalQuery)
		assert.Equal(t, domain.ResultDirect, res.Kind)
		assert.Equal(t, "direct reply", res.Answer)
		assert.Equal(t, []string{capitalQuery}, model.prompts)
	})

	t.Run("ShouldSkipUnsupportedFiles", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "france.txt", "Paris is the capital of France.")
		writeFile(t, dir, "table.csv", "city,country\nParis,France")
		s, err := Assemble(testConfig(t, dir, 0.5), newScriptedLLM(), embedding.NewTFIDF())
		require.NoError(t, err)

		report, err := s.Ingest(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Documents)
		require.Positive(t, report.Chunks)
		for _, ch := range s.Index().Chunks() {
			assert.Equal(t, "france.txt", filepath.Base(ch.Source()))
		}
		assert.NotEmpty(t, report.Overview)
		assert.Equal(t, report.Overview, s.Overview())
	})

	t.Run("ShouldFailForMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing")
		s, err := Assemble(testConfig(t, dir, 0.5), newScriptedLLM(), embedding.NewTFIDF())
		require.NoError(t, err)
		_, err = s.Ingest(ctx, dir)
		assert.ErrorIs(t, err, loader.ErrDirectoryNotFound)
	})

	t.Run("ShouldReuseSavedIndex", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "france.txt", "Paris is the capital of France.")
		cfg := testConfig(t, dir, 0.5)
		cfg.Index.Reuse = true

		first, err := Assemble(cfg, newScriptedLLM(), embedding.NewTFIDF())
		require.NoError(t, err)
		report, err := first.Ingest(ctx, dir)
		require.NoError(t, err)
		assert.False(t, report.Reused)

		model := newScriptedLLM()
		second, err := Assemble(cfg, model, embedding.NewTFIDF())
		require.NoError(t, err)
		report, err = second.Ingest(ctx, dir)
		require.NoError(t, err)
		assert.True(t, report.Reused)
		assert.Equal(t, first.Index().Chunks(), second.Index().Chunks())

		res := second.Respond(ctx, capitalQuery)
		assert.Equal(t, domain.ResultComposed, res.Kind)
		assert.True(t, res.Matched)
	})

	t.Run("ShouldRebuildWhenSavedIndexIsEmpty", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "france.txt", "Paris is the capital of France.")
		cfg := testConfig(t, dir, 0.5)
		cfg.Index.Reuse = true
		require.NoError(t, os.MkdirAll(cfg.Index.Dir, 0o755))
		writeFile(t, cfg.Index.Dir, "index.json", `{"version":1,"dimension":3,"entries":[]}`)

		s, err := Assemble(cfg, newScriptedLLM(), embedding.NewTFIDF())
		require.NoError(t, err)
		report, err := s.Ingest(ctx, dir)
		require.NoError(t, err)
		assert.False(t, report.Reused)
		assert.Positive(t, report.Chunks)
		require.NotNil(t, s.Index())
		assert.Equal(t, domain.ResultComposed, s.Respond(ctx, capitalQuery).Kind)
	})

	t.Run("ShouldRebuildWhenSavedIndexDimensionDiffers", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "france.txt", "Paris is the capital of France.")
		cfg := testConfig(t, dir, 0.5)
		cfg.Index.Reuse = true
		require.NoError(t, os.MkdirAll(cfg.Index.Dir, 0o755))
		writeFile(t, cfg.Index.Dir, "index.json", `{"version":1,"dimension":2,"entries":[`+
			`{"id":"stale","document_id":"d","index":0,"content":"Paris is the capital of France.","vector":[1,0]}]}`)

		s, err := Assemble(cfg, newScriptedLLM(), embedding.NewTFIDF())
		require.NoError(t, err)
		report, err := s.Ingest(ctx, dir)
		require.NoError(t, err)
		assert.False(t, report.Reused)
		for _, ch := range s.Index().Chunks() {
			assert.NotEqual(t, "stale", ch.ID)
		}

		res := s.Respond(ctx, capitalQuery)
		assert.Equal(t, domain.ResultComposed, res.Kind)
		assert.True(t, res.Matched)
	})
}

func TestPipeline_NoMatch(t *testing.T) {
	model := newScriptedLLM()
	s := ingestedSession(t, model, 0.0)
	model.prompts = nil

	res, err := s.Answer(context.Background(), "capital of Germany")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultComposed, res.Kind)
	assert.False(t, res.Matched)
	assert.Equal(t, domain.NoRelevantContent, res.Excerpt)
	assert.Equal(t, domain.NoRelevantContent, res.Summary)
	assert.Equal(t, "direct reply", res.Supplement)
	assert.Equal(t, []string{"capital of Germany"}, model.prompts, "only the raw query reaches the model")
}

func TestPipeline_LexicalFallback(t *testing.T) {
	model := newScriptedLLM()
	s := ingestedSession(t, model, 0.5)

	res, err := s.Answer(context.Background(), "is the")
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

type staticEmbedder struct{}

func (staticEmbedder) Name() string           { return "static" }
func (staticEmbedder) Prepare([]string) error { return nil }
func (staticEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = []float64{1}
	}
	return out, nil
}
func (staticEmbedder) EmbedQuery(context.Context, string) ([]float64, error) { return []float64{1}, nil }

type brokenIndex struct{}

func (brokenIndex) Add(context.Context, []domain.Chunk, [][]float64) error { return nil }
func (brokenIndex) Search(context.Context, []float64, int) ([]domain.ScoredChunk, error) {
	return nil, errors.New("index corrupted")
}
func (brokenIndex) Save(context.Context, string) error { return nil }
func (brokenIndex) Len() int                           { return 1 }
func (brokenIndex) Chunks() []domain.Chunk             { return nil }

func newPipeline(t *testing.T, model domain.LanguageModel) *Pipeline {
	t.Helper()
	inv, err := retry.NewInvoker(model, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	require.NoError(t, err)
	p, err := NewPipeline(staticEmbedder{}, inv, PipelineOptions{SimilarityThreshold: 0.5, SummaryLength: 10, AILength: 10})
	require.NoError(t, err)
	return p
}

func TestPipeline_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldRejectBlankQuery", func(t *testing.T) {
		p := newPipeline(t, newScriptedLLM())
		_, err := p.Answer(ctx, nil, "  \n")
		kind, ok := domain.ErrorKindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindMalformedInput, kind)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)

		res := p.Respond(ctx, nil, "")
		assert.Equal(t, domain.ResultFailed, res.Kind)
		assert.Equal(t, domain.QueryFailedMessage, res.Answer)
	})

	t.Run("ShouldReportUpstreamFailureAfterRetries", func(t *testing.T) {
		model := &scriptedLLM{err: errors.New("503")}
		p := newPipeline(t, model)
		_, err := p.Answer(ctx, nil, capitalQuery)
		kind, ok := domain.ErrorKindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindUpstream, kind)
		assert.ErrorIs(t, err, retry.ErrExhausted)
		assert.Len(t, model.prompts, 3)
	})

	t.Run("ShouldReportIndexFailure", func(t *testing.T) {
		p := newPipeline(t, newScriptedLLM())
		_, err := p.Answer(ctx, brokenIndex{}, capitalQuery)
		kind, ok := domain.ErrorKindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindIndex, kind)

		res := p.Respond(ctx, brokenIndex{}, capitalQuery)
		assert.Equal(t, domain.ResultFailed, res.Kind)
		assert.Equal(t, domain.QueryFailedMessage, res.Answer)
		assert.ErrorContains(t, res.Err, "index corrupted")
	})

	t.Run("ShouldRecoverFromPanics", func(t *testing.T) {
		p := newPipeline(t, &scriptedLLM{panics: true})
		var res *domain.QueryResult
		require.NotPanics(t, func() { res = p.Respond(ctx, nil, capitalQuery) })
		assert.Equal(t, domain.ResultFailed, res.Kind)
		assert.ErrorContains(t, res.Err, "model exploded")
	})
}

func TestFilterByDistance(t *testing.T) {
	scored := func(id string, score float64) domain.ScoredChunk {
		return domain.ScoredChunk{Chunk: domain.Chunk{ID: id}, Score: score}
	}
	results := []domain.ScoredChunk{scored("a", 0.1), scored("b", 0.7), scored("c", 0.3), scored("d", 0.3), scored("e", 1.2)}
	tests := []struct {
		name      string
		threshold float64
		want      []string
	}{
		{name: "ShouldKeepNothingBelowAllScores", threshold: 0.05, want: []string{}},
		{name: "ShouldIncludeEqualScores", threshold: 0.3, want: []string{"a", "c", "d"}},
		{name: "ShouldPreserveInputOrder", threshold: 0.8, want: []string{"a", "b", "c", "d"}},
		{name: "ShouldKeepEverythingUnderLooseThreshold", threshold: 2, want: []string{"a", "b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := filterByDistance(results, tt.threshold)
			ids := make([]string, 0, len(kept))
			for _, k := range kept {
				assert.LessOrEqual(t, k.Score, tt.threshold)
				ids = append(ids, k.Chunk.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestClampRunes(t *testing.T) {
	assert.Equal(t, "日本語", clampRunes("日本語テキスト", 3))
	assert.Equal(t, "short", clampRunes("short", 10))
	assert.Equal(t, "", clampRunes("", 5))
}
