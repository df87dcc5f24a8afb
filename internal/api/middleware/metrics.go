package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// HTTPRecorder receives per-request metrics.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, code int, d time.Duration)
}

// unmatchedRoute labels requests that no route pattern matched.
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware records the status and latency of every request,
// labelled by the matched chi route pattern.
func NewMetricsMiddleware(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.RecordHTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}
