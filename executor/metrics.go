package executor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for step and workflow
// execution.
type Metrics struct {
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	activeSteps  prometheus.Gauge
}

// NewMetrics registers the collectors against the default Prometheus
// registry. A collector already registered there under the same name is
// reused, so every Metrics built in one process feeds the same series.
func NewMetrics() *Metrics {
	stepsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dagflow",
		Subsystem: "executor",
		Name:      "steps_total",
		Help:      "Total number of settled steps by step name and terminal status.",
	}, []string{"step", "status"})
	if err := prometheus.Register(stepsTotal); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			stepsTotal = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}

	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dagflow",
		Subsystem: "executor",
		Name:      "step_duration_milliseconds",
		Help:      "Observed wall-clock duration of a step's full attempt lifecycle.",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 14),
	}, []string{"step", "status"})
	if err := prometheus.Register(stepDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			stepDuration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			panic(err)
		}
	}

	activeSteps := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dagflow",
		Subsystem: "executor",
		Name:      "active_steps",
		Help:      "Number of step attempts currently in flight across all workflows.",
	})
	if err := prometheus.Register(activeSteps); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			activeSteps = are.ExistingCollector.(prometheus.Gauge)
		} else {
			panic(err)
		}
	}

	return &Metrics{
		stepsTotal:   stepsTotal,
		stepDuration: stepDuration,
		activeSteps:  activeSteps,
	}
}

// RecordStep records one settled step (its whole attempt cycle).
func (m *Metrics) RecordStep(stepName, status string, durationMs float64) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(stepName, status).Inc()
	m.stepDuration.WithLabelValues(stepName, status).Observe(durationMs)
}

// StepStarted/StepFinished track in-flight step attempts for the
// active_steps gauge; the executor calls these around s.Execute.
func (m *Metrics) StepStarted() {
	if m == nil {
		return
	}
	m.activeSteps.Inc()
}

func (m *Metrics) StepFinished() {
	if m == nil {
		return
	}
	m.activeSteps.Dec()
}
