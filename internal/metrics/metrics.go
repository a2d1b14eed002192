// Package metrics holds the Prometheus collectors of onnxkit operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"  // caller error: malformed or invalid input, unsupported request
	OutcomeDefect = "defect" // internal defect: a produced model failed validation
)

// Metrics records operation counts, durations and internal defects.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	defects    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onnxkit_operations_total",
				Help: "Total number of model operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onnxkit_operation_duration_seconds",
				Help:    "Duration of model operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"op"},
		),
		defects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onnxkit_internal_defects_total",
				Help: "Total number of produced models that failed validation",
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.operations, m.duration, m.defects)
	return m
}

// Observe records one finished operation that started at start.
func (m *Metrics) Observe(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if outcome == OutcomeDefect {
		m.defects.WithLabelValues(op).Inc()
	}
}

// WriteTextfile dumps everything g gathers to path in the text exposition format, for the
// node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
