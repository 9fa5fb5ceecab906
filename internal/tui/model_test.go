package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type fakeResponder struct {
	mu      sync.Mutex
	queries []string
	result  *domain.QueryResult
}

func (f *fakeResponder) Respond(_ context.Context, query string) *domain.QueryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.result
}

func sized(t *testing.T, svc Responder) Model {
	t.Helper()
	m := New(context.Background(), svc, "Corpus overview.")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func typeQuery(m Model, q string) Model {
	m.input.SetValue(q)
	return m
}

// runBatch executes cmd and returns the answerMsg it produces, if any.
func runBatch(t *testing.T, cmd tea.Cmd) (answerMsg, bool) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if am, ok := msg.(answerMsg); ok {
		return am, true
	}
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return answerMsg{}, false
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if am, ok := c().(answerMsg); ok {
			return am, true
		}
	}
	return answerMsg{}, false
}

func TestModel(t *testing.T) {
	t.Run("ShouldShowLoadingBeforeFirstResize", func(t *testing.T) {
		m := New(context.Background(), &fakeResponder{}, "")
		assert.Equal(t, "Loading...", m.View())
	})

	t.Run("ShouldAnswerAsynchronouslyAndRenderResult", func(t *testing.T) {
		svc := &fakeResponder{result: &domain.QueryResult{
			Kind:       domain.ResultComposed,
			Matched:    true,
			Excerpt:    "Paris is the capital of France.",
			Summary:    "Paris.",
			Supplement: "It is Paris.",
		}}
		m := typeQuery(sized(t, svc), "capital of France?")

		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = next.(Model)
		assert.True(t, m.busy)
		assert.Empty(t, svc.queries, "query must not run inside Update")

		am, ok := runBatch(t, cmd)
		require.True(t, ok)
		assert.Equal(t, []string{"capital of France?"}, svc.queries)

		next, _ = m.Update(am)
		m = next.(Model)
		assert.False(t, m.busy)
		assert.Contains(t, m.status, "Answered")
		view := m.View()
		assert.Contains(t, view, "Paris is the capital of France.")
		assert.Contains(t, view, "Corpus overview.")
	})

	t.Run("ShouldIgnoreSubmissionsWhileBusy", func(t *testing.T) {
		svc := &fakeResponder{result: &domain.QueryResult{Kind: domain.ResultDirect, Answer: "ok"}}
		m := typeQuery(sized(t, svc), "first")
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = typeQuery(next.(Model), "second")

		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
		assert.True(t, next.(Model).busy)
	})

	t.Run("ShouldIgnoreBlankQuery", func(t *testing.T) {
		m := typeQuery(sized(t, &fakeResponder{}), "   ")
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
		assert.False(t, next.(Model).busy)
	})

	t.Run("ShouldReportFailedQuery", func(t *testing.T) {
		m := sized(t, &fakeResponder{})
		m.busy = true
		next, _ := m.Update(answerMsg{query: "q", result: &domain.QueryResult{Kind: domain.ResultFailed, Answer: domain.QueryFailedMessage}})
		m = next.(Model)
		assert.Contains(t, m.status, "Failed")
		assert.Contains(t, m.View(), domain.QueryFailedMessage)
	})

	t.Run("ShouldClearOnCtrlL", func(t *testing.T) {
		m := typeQuery(sized(t, &fakeResponder{}), "something")
		m.result = &domain.QueryResult{Kind: domain.ResultDirect, Answer: "old"}
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
		m = next.(Model)
		assert.Nil(t, m.result)
		assert.Empty(t, m.input.Value())
		assert.Contains(t, m.View(), welcome)
	})
}
