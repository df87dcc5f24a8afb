package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx), "Expected empty trace ID in original context")

	withTrace := SetTraceID(ctx, "")
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32, "Expected trace ID length to be 32 hex characters (16 bytes)")
	assert.True(t, ValidTraceID(traceID))

	assert.Empty(t, GetTraceID(ctx), "Expected original context to remain unchanged")
}

func TestSetTraceIDKeepsWellFormedID(t *testing.T) {
	incoming := "0123456789abcdef0123456789abcdef"
	assert.Equal(t, incoming, GetTraceID(SetTraceID(context.Background(), incoming)))

	for _, bad := range []string{"short", "0123456789ABCDEF0123456789ABCDEF", "0123456789abcdef0123456789abcdeg"} {
		got := GetTraceID(SetTraceID(context.Background(), bad))
		assert.NotEqual(t, bad, got)
		assert.True(t, ValidTraceID(got))
	}
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx), "Expected empty trace ID when context has invalid type")
}

func TestGenerateTraceIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool, iterations)

	for i := 0; i < iterations; i++ {
		id := generateTraceID()
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate trace ID generated: %s", id)
		seen[id] = true
	}
}

func TestGenerateFallbackTraceID(t *testing.T) {
	a, b := generateFallbackTraceID(), generateFallbackTraceID()
	assert.True(t, ValidTraceID(a))
	assert.True(t, ValidTraceID(b))
	assert.NotEqual(t, a, b)
}
