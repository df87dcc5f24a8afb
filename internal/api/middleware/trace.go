// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context and to the
// response headers, and stores a logger carrying the trace ID in the context.
// An incoming well-formed X-Trace-ID is reused.
//
// This middleware should be applied early in the middleware chain so that
// every later handler logs with the trace ID.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context(), r.Header.Get(shared.TraceIDHeader))
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			w.Header().Set(shared.TraceIDHeader, traceID)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
