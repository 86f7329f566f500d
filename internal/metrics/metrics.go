// Package metrics holds the Prometheus collectors for the API. Every method is
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moviedex"

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	savedTransitionsTotal *prometheus.CounterVec
	trendRecordsTotal     *prometheus.CounterVec

	catalogRequestsTotal   *prometheus.CounterVec
	catalogRequestDuration *prometheus.HistogramVec
	catalogCacheHitsTotal  *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.savedTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_transitions_total",
			Help:      "Saved-movie transitions by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: applied, rejected, error
	)
	m.trendRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_records_total",
			Help:      "Search trend upserts",
		},
		[]string{"outcome"}, // recorded, skipped, error
	)
	m.catalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Requests sent to the movie catalog provider",
		},
		[]string{"endpoint", "outcome"},
	)
	m.catalogRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog provider latency including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"endpoint"},
	)
	m.catalogCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_hits_total",
			Help:      "Catalog responses served from the local cache",
		},
		[]string{"endpoint"},
	)

	cs := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.savedTransitionsTotal,
		m.trendRecordsTotal,
		m.catalogRequestsTotal,
		m.catalogRequestDuration,
		m.catalogCacheHitsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) SavedTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.savedTransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) TrendRecord(outcome string) {
	if m == nil {
		return
	}
	m.trendRecordsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CatalogRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.catalogRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.catalogRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) CatalogCacheHit(endpoint string) {
	if m == nil {
		return
	}
	m.catalogCacheHitsTotal.WithLabelValues(endpoint).Inc()
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
