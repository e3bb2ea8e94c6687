package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/config"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "log line: %s", buf.String())
	return m
}

func TestSlogHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(newZerolog(&buf, "info", "json")))

	logger.With("component", "relay").Info("flushed",
		"size", 3, "elapsed", 2*time.Millisecond, "ok", true, "error", errors.New("partial"))

	m := decodeLine(t, &buf)
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "flushed", m["message"])
	assert.Equal(t, "relay", m["component"])
	assert.EqualValues(t, 3, m["size"])
	assert.Equal(t, true, m["ok"])
	assert.Equal(t, "partial", m["error"])
	assert.Contains(t, m, "elapsed")
	assert.Contains(t, m, "time")
}

func TestSlogHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(newZerolog(&buf, "info", "json")))

	logger.WithGroup("session").Info("swept", "count", 2)

	m := decodeLine(t, &buf)
	assert.EqualValues(t, 2, m["session.count"])
}

func TestSlogHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(newZerolog(&buf, "warn", "json")))

	logger.Info("dropped")
	assert.Zero(t, buf.Len())
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))

	logger.Warn("kept")
	m := decodeLine(t, &buf)
	assert.Equal(t, "warn", m["level"])
}

func TestSlogHandler_NestedGroupAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(newZerolog(&buf, "debug", "json")))

	logger.Debug("model", slog.Group("load", slog.String("path", "model.json"), slog.Int("layers", 1)))

	m := decodeLine(t, &buf)
	assert.Equal(t, "debug", m["level"])
	assert.Equal(t, "model.json", m["load.path"])
	assert.EqualValues(t, 1, m["load.layers"])
}

func TestSlogHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(newZerolog(&buf, "info", "text")))

	logger.Info("server started", "addr", ":8080")

	out := buf.String()
	assert.Contains(t, out, "server started")
	assert.Contains(t, out, "addr=")
	assert.Contains(t, out, ":8080")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "error", parseLevel("error").String())
	assert.Equal(t, "info", parseLevel("").String())
}

func TestNewLogger_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "info", LogFormat: "json"})
	assert.Same(t, logger, slog.Default())
}
