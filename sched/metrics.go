package sched

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the scheduler's prometheus collectors. Gauges move by
// increments so several schedulers (a store's and its batches') can share
// one Metrics. A nil *Metrics records nothing.
type Metrics struct {
	pending   prometheus.Gauge
	executing prometheus.Gauge
	settled   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors with constLabels and registers them on
// reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer, constLabels prometheus.Labels) (*Metrics, error) {
	m := &Metrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pathstore",
			Subsystem:   "sched",
			Name:        "pending_commands",
			Help:        "Commands waiting for admission.",
			ConstLabels: constLabels,
		}),
		executing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pathstore",
			Subsystem:   "sched",
			Name:        "executing_commands",
			Help:        "Commands admitted and running.",
			ConstLabels: constLabels,
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "pathstore",
			Subsystem:   "sched",
			Name:        "settled_total",
			Help:        "Settled commands by kind and outcome.",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "pathstore",
			Subsystem:   "sched",
			Name:        "retries_total",
			Help:        "Operation retries by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "pathstore",
			Subsystem:   "sched",
			Name:        "execution_duration_seconds",
			Help:        "Time from admission to completion, retries included.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"kind"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.pending, m.executing, m.settled, m.retries, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) enqueued() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

func (m *Metrics) dequeued() {
	if m == nil {
		return
	}
	m.pending.Dec()
}

func (m *Metrics) admitted() {
	if m == nil {
		return
	}
	m.pending.Dec()
	m.executing.Inc()
}

func (m *Metrics) finished(k Kind, started time.Time) {
	if m == nil {
		return
	}
	m.executing.Dec()
	m.duration.WithLabelValues(k.String()).Observe(time.Since(started).Seconds())
}

func (m *Metrics) outcome(k Kind, o Outcome) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(k.String(), o.String()).Inc()
}

func (m *Metrics) retried(k Kind) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(k.String()).Inc()
}
