package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"
)

// ContextKey is the type of the request-scoped values set by the API layer.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context.
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries the trace ID in requests and responses.
	TraceIDHeader = "X-Trace-ID"

	// TraceIDLength is the number of random bytes in a trace ID (32 hex characters).
	TraceIDLength = 16
)

var fallbackSeq atomic.Uint32

// SetTraceID stores traceID in the context, generating a fresh one when
// traceID is not a well-formed trace ID.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	if !ValidTraceID(traceID) {
		traceID = generateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// ValidTraceID reports whether s is a lowercase hex string of TraceIDLength bytes.
func ValidTraceID(s string) bool {
	if len(s) != TraceIDLength*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			slog.Any("error", err),
			slog.Int("bytes_read", n),
			slog.String("fallback", "time-based generation"))
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

// generateFallbackTraceID combines the clock with a process-wide sequence so
// IDs stay unique when crypto/rand is unavailable.
func generateFallbackTraceID() string {
	b := make([]byte, TraceIDLength)
	binary.BigEndian.PutUint64(b[:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint32(b[8:12], fallbackSeq.Add(1))
	binary.BigEndian.PutUint32(b[12:], uint32(time.Now().Unix()))
	return hex.EncodeToString(b)
}
