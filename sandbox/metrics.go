package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution status labels
const (
	StatusSucceeded   = "succeeded"
	StatusFailed      = "failed"
	StatusTimedOut    = "timed_out"
	StatusCanceled    = "canceled"
	StatusInvalid     = "invalid"
	StatusEnvironment = "environment_error"
)

// Metrics collects per-invocation counters. A nil *Metrics records nothing.
type Metrics struct {
	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	producedFiles *prometheus.CounterVec
	cleanupErrors *prometheus.CounterVec
}

// NewMetrics registers the sandbox collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "runbox",
				Name:      "executions_total",
				Help:      "Sandbox invocations by backend and final status.",
			},
			[]string{"backend", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "runbox",
				Name:      "execution_duration_seconds",
				Help:      "Wall time of sandbox invocations including staging and cleanup.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"backend"},
		),
		producedFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "runbox",
				Name:      "produced_files_total",
				Help:      "Output files left in staging directories.",
			},
			[]string{"backend"},
		),
		cleanupErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "runbox",
				Name:      "cleanup_errors_total",
				Help:      "Script removals that failed after an invocation.",
			},
			[]string{"backend"},
		),
	}
}

// NewDefaultMetrics registers with the process-wide default registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

func (m *Metrics) observe(backend, status string, elapsed time.Duration, files int) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(backend, status).Inc()
	m.duration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if files > 0 {
		m.producedFiles.WithLabelValues(backend).Add(float64(files))
	}
}

func (m *Metrics) cleanupFailed(backend string) {
	if m == nil {
		return
	}
	m.cleanupErrors.WithLabelValues(backend).Inc()
}

func outcomeStatus(outcome ExecutionOutcome) string {
	switch {
	case outcome.TimedOut:
		return StatusTimedOut
	case outcome.Canceled:
		return StatusCanceled
	case outcome.Succeeded:
		return StatusSucceeded
	default:
		return StatusFailed
	}
}
