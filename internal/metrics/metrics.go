// Package metrics provides Prometheus-based metrics collection for osprey.
// The prober, the subdomain sources, and the API server record their
// activity here; the API server mode exposes the registry on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all osprey metrics.
	namespace = "osprey"

	subsystemProbe   = "probe"
	subsystemScan    = "scan"
	subsystemHarvest = "harvest"
	subsystemAPI     = "api"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// Probe metrics.
	probesTotal    *prometheus.CounterVec
	probeDuration  *prometheus.HistogramVec
	probesInFlight *prometheus.GaugeVec

	// Scan batch metrics.
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	batchSize    *prometheus.HistogramVec

	// Harvest source metrics.
	harvestTotal *prometheus.CounterVec
	harvestNames *prometheus.CounterVec

	// API metrics.
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance with all collectors registered on a
// fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{registry: registry}

	m.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total probes executed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of individual probes in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"kind"},
	)

	m.probesInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "in_flight",
			Help:      "Probes currently admitted past the concurrency limit",
		},
		[]string{"kind"},
	)

	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total scan batches by kind and status",
		},
		[]string{"kind", "status"},
	)

	m.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan batches in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"kind"},
	)

	m.batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "batch_units",
			Help:      "Number of probe units per scan batch",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 5000, 65535},
		},
		[]string{"kind"},
	)

	m.harvestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemHarvest,
			Name:      "total",
			Help:      "Subdomain source harvests by source and status",
		},
		[]string{"source", "status"},
	)

	m.harvestNames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemHarvest,
			Name:      "names_total",
			Help:      "Candidate names returned by each source",
		},
		[]string{"source"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "API requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		m.probesTotal, m.probeDuration, m.probesInFlight,
		m.scansTotal, m.scanDuration, m.batchSize,
		m.harvestTotal, m.harvestNames,
		m.httpRequests, m.httpDuration,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// RecordProbe records a completed probe with its outcome and duration.
func (m *Metrics) RecordProbe(kind, outcome string, duration time.Duration) {
	m.probesTotal.WithLabelValues(kind, outcome).Inc()
	m.probeDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ProbeStarted increments the in-flight gauge for a probe kind.
func (m *Metrics) ProbeStarted(kind string) {
	m.probesInFlight.WithLabelValues(kind).Inc()
}

// ProbeFinished decrements the in-flight gauge for a probe kind.
func (m *Metrics) ProbeFinished(kind string) {
	m.probesInFlight.WithLabelValues(kind).Dec()
}

// RecordScan records a completed scan batch.
func (m *Metrics) RecordScan(kind, status string, units int, duration time.Duration) {
	m.scansTotal.WithLabelValues(kind, status).Inc()
	m.scanDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.batchSize.WithLabelValues(kind).Observe(float64(units))
}

// RecordHarvest records a subdomain source harvest.
func (m *Metrics) RecordHarvest(source, status string, names int) {
	m.harvestTotal.WithLabelValues(source, status).Inc()
	if names > 0 {
		m.harvestNames.WithLabelValues(source).Add(float64(names))
	}
}

// RecordHTTPRequest records an API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the registry in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the process-wide metrics instance.
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}
