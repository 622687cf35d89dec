package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tickDuration     prometheus.Histogram
	assignmentsTotal *prometheus.CounterVec
	deferredTotal    prometheus.Counter
	tieBreaksTotal   prometheus.Counter
	degradedTicks    prometheus.Counter
	windowSize       prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Gauge) {
	dur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Wall time spent in one scheduling tick",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	asg := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_assignments_total",
		Help: "Requests committed to an elevator",
	}, []string{"elevator_id"})
	def := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_deferred_total",
		Help: "Candidate requests left pending because no elevator had room",
	})
	tie := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tie_breaks_total",
		Help: "Assignments resolved by the rotating tie-break pointer",
	})
	deg := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_degraded_ticks_total",
		Help: "Ticks priced with the uniform destination fallback",
	})
	win := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_window_size",
		Help: "Candidate requests considered in the last tick",
	})
	return dur, asg, def, tie, deg, win
}

func init() {
	tickDuration, assignmentsTotal, deferredTotal, tieBreaksTotal, degradedTicks, windowSize = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers scheduler metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tickDuration, assignmentsTotal, deferredTotal, tieBreaksTotal, degradedTicks, windowSize)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	tickDuration, assignmentsTotal, deferredTotal, tieBreaksTotal, degradedTicks, windowSize = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
