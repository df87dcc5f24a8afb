package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seenTrace string
	handler := NewTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates trace id", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books", nil))

		require.True(t, shared.ValidTraceID(seenTrace))
		assert.Equal(t, seenTrace, rec.Header().Get(shared.TraceIDHeader))
		assert.Contains(t, buf.String(), `"trace_id":"`+seenTrace+`"`)
		assert.Contains(t, buf.String(), "inside handler")
	})

	t.Run("reuses incoming trace id", func(t *testing.T) {
		incoming := "00112233445566778899aabbccddeeff"
		req := httptest.NewRequest(http.MethodGet, "/books", nil)
		req.Header.Set(shared.TraceIDHeader, incoming)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, incoming, seenTrace)
		assert.Equal(t, incoming, rec.Header().Get(shared.TraceIDHeader))
	})

	t.Run("replaces malformed trace id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/books", nil)
		req.Header.Set(shared.TraceIDHeader, "not-a-trace\nid")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, shared.ValidTraceID(seenTrace))
	})
}

type httpCall struct {
	method, route string
	code          int
}

type fakeHTTPRecorder struct {
	mu    sync.Mutex
	calls []httpCall
}

func (f *fakeHTTPRecorder) RecordHTTPRequest(method, route string, code int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, httpCall{method, route, code})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeHTTPRecorder{}

	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(rec))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	for _, path := range []string{"/users/123", "/users/456", "/health", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []httpCall{
		{http.MethodGet, "/users/{id}", http.StatusNotFound},
		{http.MethodGet, "/users/{id}", http.StatusNotFound},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, unmatchedRoute, http.StatusNotFound},
	}, rec.calls)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("sets headers and passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewCORSMiddleware("")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
		assert.Empty(t, rec.Header().Get("Vary"))
	})

	t.Run("answers preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/users", nil)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		NewCORSMiddleware("https://swap.example.com")(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://swap.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})
}
