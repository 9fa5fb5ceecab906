package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("ShouldFilterBelowConfiguredLevel", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		l.Info("hidden message")
		l.Warn("visible message", "key", "value")
		out := buf.String()
		assert.NotContains(t, out, "hidden message")
		assert.Contains(t, out, "visible message")
		assert.Contains(t, out, "key=value")
	})
	t.Run("ShouldWriteJSON", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})
		l.With("component", "test").Debug("json message")
		assert.Contains(t, buf.String(), `"msg":"json message"`)
		assert.Contains(t, buf.String(), `"component":"test"`)
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf})
	ctx := ContextWithLogger(context.Background(), l)
	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")
	assert.NotNil(t, FromContext(context.Background()))
}

func TestInit(t *testing.T) {
	prev := GetDefault()
	t.Cleanup(func() {
		mu.Lock()
		defaultLogger = prev
		mu.Unlock()
	})
	var buf bytes.Buffer
	Init(&Config{Level: ErrorLevel, Output: &buf})
	Warn("dropped")
	Error("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "qa.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
