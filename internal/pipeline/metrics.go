package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline outcomes.
type Metrics struct {
	transformed prometheus.Counter
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_units_transformed_total",
			Help: "Code units transformed and defined in the host.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiln_transform_failures_total",
			Help: "Code units whose transformation failed, by stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiln_transform_duration_seconds",
			Help:    "Time spent transforming one code unit.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transformed, m.failures, m.duration)
	}
	return m
}

// Transformed is the success counter.
func (m *Metrics) Transformed() prometheus.Counter { return m.transformed }

// Failures returns the failure counter for stage.
func (m *Metrics) Failures(stage string) prometheus.Counter {
	return m.failures.WithLabelValues(stage)
}
