// Package metrics provides Prometheus-based metrics collection for modscan.
// Collectors live in a private registry so tests and multiple servers in one
// process never collide on registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all modscan metrics
	namespace = "modscan"

	// Subsystems
	subsystemScan      = "scan"
	subsystemProbe     = "probe"
	subsystemScheduler = "scheduler"
	subsystemAPI       = "api"
)

// Metrics holds all Prometheus metric collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scan job metrics
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	activeScans  prometheus.Gauge
	submissions  *prometheus.CounterVec

	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec

	// Scheduler metrics
	scheduledRuns *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{registry: registry}

	m.initScanMetrics()
	m.initProbeMetrics()
	m.initSchedulerMetrics()
	m.initAPIMetrics()

	registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.activeScans,
		m.submissions,
		m.probesTotal,
		m.probeDuration,
		m.scheduledRuns,
		m.httpRequests,
		m.httpDuration,
	)

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (m *Metrics) initScanMetrics() {
	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of finished scans by terminal status",
		},
		[]string{"status"},
	)

	m.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	m.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of scans currently running (0 or 1)",
		},
	)

	m.submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "submissions_total",
			Help:      "Scan submissions by result (started, busy, rejected)",
		},
		[]string{"result"},
	)
}

func (m *Metrics) initProbeMetrics() {
	m.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Probes performed by object type and outcome",
		},
		[]string{"object_type", "outcome"},
	)

	m.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Latency of single probes in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 3.0, 10.0},
		},
		[]string{"object_type"},
	)
}

func (m *Metrics) initSchedulerMetrics() {
	m.scheduledRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScheduler,
			Name:      "runs_total",
			Help:      "Scheduled scan triggers by schedule and result",
		},
		[]string{"schedule", "result"},
	)
}

func (m *Metrics) initAPIMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScanStarted marks a scan as running.
func (m *Metrics) ScanStarted() {
	if m == nil {
		return
	}
	m.activeScans.Set(1)
}

// ScanFinished records the terminal status and duration of a scan.
func (m *Metrics) ScanFinished(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeScans.Set(0)
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// Submission counts a scan submission result.
func (m *Metrics) Submission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

// ProbeObserved records one probe outcome and its latency.
func (m *Metrics) ProbeObserved(objectType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(objectType, outcome).Inc()
	m.probeDuration.WithLabelValues(objectType).Observe(duration.Seconds())
}

// ScheduledRun counts a scheduler trigger.
func (m *Metrics) ScheduledRun(schedule, result string) {
	if m == nil {
		return
	}
	m.scheduledRuns.WithLabelValues(schedule, result).Inc()
}

// HTTPRequest records an HTTP request.
func (m *Metrics) HTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
