package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.Info("catalogue started", "port", "8080")

	out := buf.String()
	assert.Contains(t, out, `"msg":"catalogue started"`)
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, `"port":"8080"`)
}

func TestNew_FormatFollowsEnvironment(t *testing.T) {
	tests := []struct {
		environment string
		wantJSON    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})

			log.Info("hello")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"hello"`)
			} else {
				// Pretty output carries ANSI escapes around the message.
				assert.Contains(t, buf.String(), "hello")
				assert.Contains(t, buf.String(), "\033[")
			}
		})
	}
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Environment: "development", Writer: &buf})

	log.Info("hello")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_Output(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "pretty", Writer: &buf})

	log.Warn("rating fan-out slow", "book_id", "bok-123", "batches", 4)

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "rating fan-out slow")
	assert.Contains(t, out, "book_id=bok-123")
	assert.Contains(t, out, "batches=4")
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "propagator")}))

	log.Info("patched projections")

	out := buf.String()
	assert.Contains(t, out, "component=propagator")
	assert.Contains(t, out, "patched projections")
}

func TestPrettyHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)

	grouped := h.WithGroup("store")
	require.NotNil(t, grouped)

	// Empty group name is a no-op and returns the same handler.
	assert.Equal(t, slog.Handler(h), h.WithGroup(""))
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithError(errors.New("badger closed")).Error("save failed")

	out := buf.String()
	assert.Contains(t, out, `"error":"badger closed"`)
	assert.Contains(t, out, `"msg":"save failed"`)
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithField("user_id", "usr-1").Info("shelf read")

	assert.Contains(t, buf.String(), `"user_id":"usr-1"`)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithFields(map[string]any{"book_id": "bok-1", "count": 3}).Info("aggregated")

	out := buf.String()
	assert.Contains(t, out, `"book_id":"bok-1"`)
	assert.Contains(t, out, `"count":3`)
}

func TestLevelFiltering_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelWarn, Format: "json", Writer: &buf})

	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}
