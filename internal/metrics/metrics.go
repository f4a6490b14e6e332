package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the alignment driver.
type Metrics struct {
	// TicksTotal counts ticks by strategy and outcome.
	TicksTotal *prometheus.CounterVec

	// DecisionsTotal counts step decisions (keep, rollback, scan, seed...).
	DecisionsTotal *prometheus.CounterVec

	// EscalationsTotal counts rotation escalations of the annealed climb.
	EscalationsTotal prometheus.Counter

	// ErrorsTotal counts failed ticks by error kind.
	ErrorsTotal *prometheus.CounterVec

	// Fitness is the most recent fitness reading per device.
	Fitness *prometheus.GaugeVec

	// Step is the persisted step counter per device.
	Step *prometheus.GaugeVec

	// TickDuration measures one tick end to end.
	TickDuration prometheus.Histogram
}

// New creates and registers all collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aligner",
				Name:      "ticks_total",
				Help:      "Ticks executed by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		DecisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aligner",
				Name:      "decisions_total",
				Help:      "Step decisions by strategy and decision",
			},
			[]string{"strategy", "decision"},
		),
		EscalationsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aligner",
				Name:      "rotation_escalations_total",
				Help:      "Rotation code advances after a stalled climb",
			},
		),
		ErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aligner",
				Name:      "errors_total",
				Help:      "Failed ticks by error kind",
			},
			[]string{"kind"},
		),
		Fitness: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "aligner",
				Name:      "fitness",
				Help:      "Latest fitness reading",
			},
			[]string{"device"},
		),
		Step: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "aligner",
				Name:      "step",
				Help:      "Persisted search step",
			},
			[]string{"device"},
		),
		TickDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "aligner",
				Name:      "tick_duration_seconds",
				Help:      "Wall time of one tick",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
	}
}
