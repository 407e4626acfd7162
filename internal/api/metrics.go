package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	exportsEnqueued   *prometheus.CounterVec
}

// newMetrics registers the API collectors on registry, creating one when nil.
// The processing client may share the same registry.
func newMetrics(registry *prometheus.Registry) *metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passportflow_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passportflow_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passportflow_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		exportsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passportflow_queue_exports_enqueued_total",
			Help: "Total session exports enqueued for the worker.",
		}, []string{"queue"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.exportsEnqueued,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// routeLabel collapses session ids so labels stay bounded.
func routeLabel(path string) string {
	switch {
	case path == "/v1/sessions":
		return path
	case strings.HasPrefix(path, "/v1/sessions/"):
		rest := strings.Trim(strings.TrimPrefix(path, "/v1/sessions/"), "/")
		_, action, found := strings.Cut(rest, "/")
		if !found {
			return "/v1/sessions/{id}"
		}
		if _, known := sessionActions[action]; !known {
			return "other"
		}
		return "/v1/sessions/{id}/" + action
	case path == "/v1/activity", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

var sessionActions = map[string]struct{}{
	"upload":     {},
	"transform":  {},
	"background": {},
	"size":       {},
	"process":    {},
	"output":     {},
	"export":     {},
	"advance":    {},
	"retreat":    {},
	"restart":    {},
	"preview":    {},
}

// sessionID returns the id segment of a session route, or "".
func sessionID(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/sessions/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	return id
}

// sessionAction returns the trailing action of a session route, or "".
func sessionAction(path string) string {
	label := routeLabel(path)
	action, ok := strings.CutPrefix(label, "/v1/sessions/{id}/")
	if !ok {
		return ""
	}
	return action
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
