package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/liftmpc/core/metrics"
)

// PromSink exposes scheduling records as Prometheus metrics.
type PromSink struct {
	ticks      *prometheus.CounterVec
	costs      *prometheus.HistogramVec
	journeys   *prometheus.HistogramVec
	deferred   *prometheus.CounterVec
	position   *prometheus.GaugeVec
	load       *prometheus.GaugeVec
	energy     *prometheus.GaugeVec
	passengers *prometheus.GaugeVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liftmpc_ticks_total",
			Help: "Scheduling ticks recorded by the sink",
		}, []string{"degraded"}),
		costs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liftmpc_assignment_cost",
			Help:    "Expected cost of committed assignments",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"elevator_id"}),
		journeys: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liftmpc_expected_journey_seconds",
			Help:    "Expected passenger journey time at assignment",
			Buckets: prometheus.LinearBuckets(10, 10, 12),
		}, []string{"elevator_id"}),
		deferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liftmpc_deferred_requests_total",
			Help: "Requests left pending, by reason",
		}, []string{"reason"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liftmpc_elevator_position_floors",
			Help: "Current car position",
		}, []string{"elevator_id"}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liftmpc_elevator_load_kg",
			Help: "Current car load",
		}, []string{"elevator_id"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liftmpc_elevator_energy_joules",
			Help: "Cumulative car energy",
		}, []string{"elevator_id"}),
		passengers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liftmpc_elevator_passengers",
			Help: "Passengers currently on board",
		}, []string{"elevator_id"}),
	}
	var err error
	if s.ticks, err = register(reg, s.ticks); err != nil {
		return nil, err
	}
	if s.costs, err = register(reg, s.costs); err != nil {
		return nil, err
	}
	if s.journeys, err = register(reg, s.journeys); err != nil {
		return nil, err
	}
	if s.deferred, err = register(reg, s.deferred); err != nil {
		return nil, err
	}
	for _, g := range []**prometheus.GaugeVec{&s.position, &s.load, &s.energy, &s.passengers} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTick counts the tick.
func (s *PromSink) RecordTick(rec coremetrics.TickRecord) error {
	s.ticks.WithLabelValues(strconv.FormatBool(rec.Degraded)).Inc()
	return nil
}

// RecordAssignments observes cost and expected journey per car.
func (s *PromSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.costs.WithLabelValues(r.ElevatorID).Observe(r.Cost)
		s.journeys.WithLabelValues(r.ElevatorID).Observe(r.Journey.Seconds())
	}
	return nil
}

// RecordDeferred counts a deferred request.
func (s *PromSink) RecordDeferred(rec coremetrics.DeferredRecord) error {
	s.deferred.WithLabelValues(rec.Reason).Inc()
	return nil
}

// RecordElevatorState sets the car gauges.
func (s *PromSink) RecordElevatorState(rec coremetrics.ElevatorStateRecord) error {
	s.position.WithLabelValues(rec.ElevatorID).Set(rec.Position)
	s.load.WithLabelValues(rec.ElevatorID).Set(rec.Load)
	s.energy.WithLabelValues(rec.ElevatorID).Set(rec.Energy)
	s.passengers.WithLabelValues(rec.ElevatorID).Set(float64(rec.Passengers))
	return nil
}
