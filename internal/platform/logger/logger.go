package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/imhighyat/book-swap-api/internal/config"
)

// ParseLevel converts a configured level name (case-insensitive) into a slog.Level.
// The second return value is false when the name is not recognized.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON logger writing to out at the given level. When the CI
// environment variable is set, records are routed through a CIHandler.
func New(out io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("CI") != "" {
		opts.AddSource = true
		return slog.New(NewCIHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger with the
// appropriate log level and sets it as the default logger for the application.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		// Fall back to info and say so on stderr; the JSON logger isn't built yet.
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	logger := New(os.Stdout, level)

	// Set this logger as the default so slog.Info and friends share its handler
	slog.SetDefault(logger)

	return logger, nil
}
