package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "json")

	l.Info("approved", "temporary_password", "K7QX-M2PA-R9TW", "password", "hunter22", "userID", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, redacted, record["temporary_password"])
	assert.Equal(t, redacted, record["password"])
	assert.Equal(t, float64(7), record["userID"])
	assert.NotContains(t, buf.String(), "K7QX")
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "text")

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Get()
	SetDefault(New(&buf, "info", "text"))
	defer SetDefault(prev)

	ctx := WithRequestID(context.Background(), "req-123")
	FromContext(ctx).Info("handled")
	FromContext(context.Background()).Info("background")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "request_id=req-123")
	assert.NotContains(t, lines[1], "request_id")
}
