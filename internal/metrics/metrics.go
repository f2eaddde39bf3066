// Package metrics exposes Prometheus instrumentation for the task engine and
// the HTTP layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records to.
type Metrics struct {
	registry *prometheus.Registry

	tasksSubmitted   *prometheus.CounterVec
	tasksFinished    *prometheus.CounterVec
	tasksActive      prometheus.Gauge
	stepDuration     *prometheus.HistogramVec
	snapshotWrites   *prometheus.CounterVec
	snapshotDuration prometheus.Histogram
	apiResponseTime  *prometheus.HistogramVec
	apiErrors        *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them, along with
// the Go and process collectors, on a fresh registry.
func New(namespace string) *Metrics {
	ns := FmtFixer(namespace)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		tasksSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "task",
			Name:      "submitted_total",
			Help:      "Analysis tasks accepted, by request type.",
		}, []string{"type"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "task",
			Name:      "finished_total",
			Help:      "Analysis tasks that reached a terminal status.",
		}, []string{"type", "status"}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "task",
			Name:      "active",
			Help:      "Step loops currently running.",
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "task",
			Name:      "step_duration_seconds",
			Help:      "Time spent computing one step, excluding the step interval.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"type"}),
		snapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "snapshot",
			Name:      "writes_total",
			Help:      "Snapshot write attempts, by outcome.",
		}, []string{"outcome"}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "snapshot",
			Name:      "write_duration_seconds",
			Help:      "Time spent persisting one snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		apiResponseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "api",
			Name:      "response_time_seconds",
			Help:      "HTTP handler latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"api"}),
		apiErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "HTTP responses with a 4xx or 5xx status.",
		}, []string{"method", "api", "status"}),
	}

	reg.MustRegister(
		m.tasksSubmitted,
		m.tasksFinished,
		m.tasksActive,
		m.stepDuration,
		m.snapshotWrites,
		m.snapshotDuration,
		m.apiResponseTime,
		m.apiErrors,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// TaskSubmitted records an accepted submission and a running step loop.
func (m *Metrics) TaskSubmitted(requestType string) {
	if m == nil {
		return
	}
	m.tasksSubmitted.WithLabelValues(requestType).Inc()
	m.tasksActive.Inc()
}

// TaskFinished records a step loop that reached a terminal status.
func (m *Metrics) TaskFinished(requestType, status string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(requestType, status).Inc()
}

// TaskStopped records a step loop exiting for any reason.
func (m *Metrics) TaskStopped() {
	if m == nil {
		return
	}
	m.tasksActive.Dec()
}

// StepTimer times the computation of one step.
func (m *Metrics) StepTimer(requestType string) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(nil)
	}
	return prometheus.NewTimer(m.stepDuration.WithLabelValues(requestType))
}

// SnapshotTimer times one snapshot write.
func (m *Metrics) SnapshotTimer() *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(nil)
	}
	return prometheus.NewTimer(m.snapshotDuration)
}

// SnapshotWrite records the outcome of a snapshot write attempt.
func (m *Metrics) SnapshotWrite(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.snapshotWrites.WithLabelValues(outcome).Inc()
}

// ApiResponseTimer times one HTTP handler.
func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(nil)
	}
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

// ApiErrorInc records an error response.
func (m *Metrics) ApiErrorInc(method, api string, status int) {
	if m == nil {
		return
	}
	m.apiErrors.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

// FmtFixer turns a free-form name into a valid metric name fragment.
func FmtFixer(in string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(in)
}
