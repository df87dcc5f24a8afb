package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	t.Parallel()

	m := New()
	boom := errors.New("boom")

	m.RecordTransition("accepted", nil)
	m.RecordTransition("accepted", boom)
	m.RecordTransition("accepted", nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("accepted", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("accepted", "error")))

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))

	m.RecordRepairs("stale_flag", 0)
	m.RecordRepairs("stale_flag", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.repairs.WithLabelValues("stale_flag")))

	m.RecordProviderCall(120*time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("success")))

	m.RecordSweep(boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordHTTPRequest(http.MethodGet, "/users/{id}", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bookswap_http_requests_total{code="200",method="GET",route="/users/{id}"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
