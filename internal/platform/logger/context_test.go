package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	scoped := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("trace_id", "t-1"))
	fallback := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	t.Run("stored logger wins", func(t *testing.T) {
		ctx := logger.WithLogger(context.Background(), scoped)
		assert.Same(t, scoped, logger.FromContext(ctx))
		assert.Same(t, scoped, logger.FromContextOrDefault(ctx, fallback))
	})

	t.Run("fallback when absent", func(t *testing.T) {
		assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
		assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
	})

	t.Run("nil logger is not stored", func(t *testing.T) {
		ctx := logger.WithLogger(context.Background(), nil)
		assert.Same(t, fallback, logger.FromContextOrDefault(ctx, fallback))
	})

	t.Run("nil fallback uses default", func(t *testing.T) {
		assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))
	})

	t.Run("scoped attributes are kept", func(t *testing.T) {
		ctx := logger.WithLogger(context.Background(), scoped)
		logger.FromContext(ctx).Info("hello")
		assert.Contains(t, buf.String(), `"trace_id":"t-1"`)
	})
}
