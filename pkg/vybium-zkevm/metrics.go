package vybiumzkevm

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "vybium_zkevm"

type metrics struct {
	blocks     *prometheus.CounterVec
	steps      prometheus.Counter
	violations *prometheus.CounterVec
	duration   prometheus.Histogram
}

// newMetrics creates the verifier collectors and registers them on reg
// when it is non-nil
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_verified_total",
			Help:      "Blocks verified, by outcome.",
		}, []string{"outcome"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_verified_total",
			Help:      "Execution steps checked by the step layer.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "violations_total",
			Help:      "Failed checks, by verification layer.",
		}, []string{"layer"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "verification_duration_seconds",
			Help:      "Wall time of one block verification.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.blocks, m.steps, m.violations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(r *Result) {
	outcome := "valid"
	if !r.Valid {
		outcome = "invalid"
	}
	m.blocks.WithLabelValues(outcome).Inc()
	m.steps.Add(float64(r.Steps))
	for _, v := range r.Violations {
		m.violations.WithLabelValues(string(v.Layer)).Inc()
	}
	m.duration.Observe(r.Duration.Seconds())
}
