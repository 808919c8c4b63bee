package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("defaults to info", func(t *testing.T) {
		res := NewLogger(Config{})
		defer res.Close()
		assert.Equal(t, zerolog.InfoLevel, res.Logger.GetLevel())
		assert.Empty(t, res.FilePath)
	})

	t.Run("parses level", func(t *testing.T) {
		res := NewLogger(Config{Level: "DEBUG"})
		assert.Equal(t, zerolog.DebugLevel, res.Logger.GetLevel())
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lcamatch.log")
		res := NewLogger(Config{Output: OutputFile, File: path})
		defer res.Close()
		assert.Equal(t, path, res.FilePath)
		assert.Empty(t, res.FallbackReason)
	})

	t.Run("file fallback", func(t *testing.T) {
		res := NewLogger(Config{Output: OutputFile})
		assert.NotEmpty(t, res.FallbackReason)
		assert.Empty(t, res.FilePath)
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Hook(TraceHook{})
	ctx := l.WithContext(context.Background())
	ctx = ContextWithTraceID(ctx, "trace-1")

	log := FromContext(ctx)
	log.Info().Ctx(ctx).Str("component", "test").Msg("hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "trace-1", event["trace_id"])
	assert.Equal(t, "test", event["component"])

	t.Run("falls back to global", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}

func TestTraceIDs(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)

	ctx := ContextWithTraceID(context.Background(), a)
	assert.Equal(t, a, GetOrGenerateTraceID(ctx))
	assert.NotEmpty(t, GetOrGenerateTraceID(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
