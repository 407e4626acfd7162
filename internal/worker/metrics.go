package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry        *prometheus.Registry
	exportsTotal    *prometheus.CounterVec
	exportDuration  *prometheus.HistogramVec
	activeExports   prometheus.Gauge
	exportedObjects prometheus.Counter
	exportedBytes   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passportflow_worker_exports_total",
			Help: "Total export tasks by final status.",
		}, []string{"status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passportflow_worker_export_duration_seconds",
			Help:    "Duration of each export task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeExports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passportflow_worker_active_exports",
			Help: "Current number of export tasks running in the worker.",
		}),
		exportedObjects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passportflow_worker_exported_objects_total",
			Help: "Total files copied into object storage.",
		}),
		exportedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passportflow_worker_exported_bytes_total",
			Help: "Total bytes copied into object storage.",
		}),
	}

	registry.MustRegister(
		m.exportsTotal,
		m.exportDuration,
		m.activeExports,
		m.exportedObjects,
		m.exportedBytes,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
