package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "table", "reporte_arl")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "reporte_arl", entry["table"])
}

func TestWithFieldsPropagatesThroughContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.WithValue(context.Background(), ctxKey{}, New(&buf, "info", "text"))

	ctx, _ = WithFields(ctx, "run_id", "abc")
	FromContext(ctx).Info("loaded", "rows", 3)

	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "rows=3")
}

func TestFromContextDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
