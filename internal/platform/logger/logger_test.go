package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/imhighyat/book-swap-api/internal/config"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name   string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNew_WritesJSONAtLevel(t *testing.T) {
	t.Setenv("CI", "")

	var buf bytes.Buffer
	log := logger.New(&buf, slog.LevelWarn)

	log.Info("hidden")
	log.Warn("visible", slog.String("component", "test"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "test", entry["component"])
}

func TestNew_UsesCIHandlerInCI(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("GITHUB_SHA", "abc123")

	var buf bytes.Buffer
	log := logger.New(&buf, slog.LevelInfo)
	log.Info("from ci")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "abc123", entry["ci_commit"])
	assert.Contains(t, entry, "source_file")
	assert.Contains(t, entry, "timestamp_nano")
}

func TestSetup(t *testing.T) {
	t.Setenv("CI", "")
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	t.Run("valid level", func(t *testing.T) {
		log, err := logger.Setup(config.ServerConfig{LogLevel: "debug"})
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.Same(t, log, slog.Default())
		assert.True(t, log.Enabled(t.Context(), slog.LevelDebug))
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		log, err := logger.Setup(config.ServerConfig{LogLevel: "chatty"})
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.False(t, log.Enabled(t.Context(), slog.LevelDebug))
		assert.True(t, log.Enabled(t.Context(), slog.LevelInfo))
	})
}
