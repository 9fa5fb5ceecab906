package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFirstLine(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		first string
		rest  []string
	}{
		{name: "ShouldHandleEmptyText", text: "", first: ""},
		{name: "ShouldHandleSingleLine", text: "Paris is the capital.", first: "Paris is the capital."},
		{name: "ShouldSplitMultipleLines", text: "a\nb\nc", first: "a", rest: []string{"b", "c"}},
		{name: "ShouldNormalizeCRLF", text: "a\r\nb", first: "a", rest: []string{"b"}},
		{name: "ShouldIgnoreTrailingNewlines", text: "a\nb\n\n", first: "a", rest: []string{"b"}},
		{name: "ShouldKeepInnerBlankLines", text: "a\n\nb", first: "a", rest: []string{"", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, rest := SplitFirstLine(tt.text)
			assert.Equal(t, tt.first, first)
			if len(tt.rest) == 0 {
				assert.Empty(t, rest)
				return
			}
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestMaterial(t *testing.T) {
	t.Run("ShouldCarryMatchedText", func(t *testing.T) {
		m := Matched("some text")
		assert.True(t, m.IsMatch())
		assert.Equal(t, "some text", m.Text())
	})
	t.Run("ShouldRenderNoMatchAsSentinel", func(t *testing.T) {
		m := NoMatch()
		assert.False(t, m.IsMatch())
		assert.Equal(t, NoRelevantContent, m.Text())
	})
	t.Run("ShouldNotConfuseSentinelTextWithNoMatch", func(t *testing.T) {
		m := Matched(NoRelevantContent)
		assert.True(t, m.IsMatch())
	})
}

func TestQueryError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("answer: %w", &QueryError{Kind: KindUpstream, Stage: "summarize", Err: cause})

	kind, ok := ErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "summarize failed (upstream): boom")

	_, ok = ErrorKindOf(cause)
	assert.False(t, ok)
}
