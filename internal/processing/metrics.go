package processing

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	catalogFallback prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passportflow_processing_requests_total",
			Help: "Total calls to the processing service by action and outcome.",
		}, []string{"action", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passportflow_processing_request_duration_seconds",
			Help:    "Processing service call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		catalogFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passportflow_size_catalog_fallback_total",
			Help: "Times the built-in size catalog replaced an unavailable remote catalog.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestTotal, m.requestDuration, m.catalogFallback)
	}
	return m
}
