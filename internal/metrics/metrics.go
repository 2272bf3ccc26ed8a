// Package metrics exposes Prometheus collectors for the web front end and
// its calls to the budget API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budgetcal"

// Metrics owns a dedicated registry so tests can create as many as they
// like without clashing on the global one.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	apiCount        *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	authLookups     *prometheus.CounterVec
	queryLookups    *prometheus.CounterVec
	events          *prometheus.CounterVec
	rateLimited     prometheus.Counter
	suspicious      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "How many HTTP requests processed, partitioned by status code, method and route.",
			},
			[]string{"code", "method", "route"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "The HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code", "method", "route"},
		),
		apiCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Calls to the budget API, partitioned by endpoint and status (0 when no response).",
			},
			[]string{"method", "endpoint", "status"},
		),
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Budget API call latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		authLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_cache_lookups_total",
				Help:      "Auth state resolutions, partitioned by cache result.",
			},
			[]string{"result"},
		),
		queryLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_lookups_total",
				Help:      "Backend reads, partitioned by cache result.",
			},
			[]string{"result"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Mutation events, partitioned by routing key and outcome.",
			},
			[]string{"event", "result"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged by the suspicious request detector.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.apiCount,
		m.apiDuration,
		m.authLookups,
		m.queryLookups,
		m.events,
		m.rateLimited,
		m.suspicious,
	)
	return m
}

// Registry exposes the registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records every request. The route label is the ServeMux pattern
// that matched, which keeps ids out of the label values, so it must wrap the
// mux directly.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(rw.status)
		m.requestDuration.WithLabelValues(code, r.Method, route).Observe(time.Since(start).Seconds())
		m.requestCount.WithLabelValues(code, r.Method, route).Inc()
	})
}

// ObserveAPI matches api.Options.Observe.
func (m *Metrics) ObserveAPI(method, endpoint string, status int, elapsed time.Duration) {
	m.apiCount.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) AuthCacheLookup(hit bool) {
	m.authLookups.WithLabelValues(result(hit)).Inc()
}

func (m *Metrics) QueryCacheLookup(hit bool) {
	m.queryLookups.WithLabelValues(result(hit)).Inc()
}

// EventPublished matches events.Options.Observe.
func (m *Metrics) EventPublished(routingKey string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.events.WithLabelValues(routingKey, outcome).Inc()
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

func (m *Metrics) Suspicious() {
	m.suspicious.Inc()
}

// GaugeFunc registers a gauge sampled from fn at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
