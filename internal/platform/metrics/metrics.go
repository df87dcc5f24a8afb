// Package metrics exposes the service's Prometheus collectors.
//
// Collectors live on a private registry so tests can create independent
// instances; Handler serves that registry on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookswap"

// Metrics holds every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	providerCalls  *prometheus.CounterVec
	providerTiming *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	repairs        *prometheus.CounterVec
	sweeps         *prometheus.CounterVec
}

// New creates and registers the collectors, including Go runtime and
// process metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Swap request transitions by target status and outcome.",
		}, []string{"status", "outcome"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_provider_calls_total",
			Help:      "Calls to the external book provider by outcome.",
		}, []string{"outcome"}),
		providerTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_provider_duration_seconds",
			Help:      "Latency of external book provider calls, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog response cache lookups by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_repairs_total",
			Help:      "Inconsistencies repaired by the reconcile sweep, by kind.",
		}, []string{"kind"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_sweeps_total",
			Help:      "Reconcile sweeps by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.providerCalls,
		m.providerTiming,
		m.cacheLookups,
		m.httpRequests,
		m.httpDuration,
		m.repairs,
		m.sweeps,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTransition counts a request transition attempt.
func (m *Metrics) RecordTransition(status string, err error) {
	m.transitions.WithLabelValues(status, outcome(err)).Inc()
}

// RecordProviderCall counts a provider call and its latency.
func (m *Metrics) RecordProviderCall(d time.Duration, err error) {
	o := outcome(err)
	m.providerCalls.WithLabelValues(o).Inc()
	m.providerTiming.WithLabelValues(o).Observe(d.Seconds())
}

// RecordCacheLookup counts a catalog cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts a served request. route is the chi route pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRepairs adds n repairs of the given kind.
func (m *Metrics) RecordRepairs(kind string, n int) {
	if n > 0 {
		m.repairs.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordSweep counts a finished reconcile sweep.
func (m *Metrics) RecordSweep(err error) {
	m.sweeps.WithLabelValues(outcome(err)).Inc()
}
