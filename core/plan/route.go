// Package plan simulates an elevator's committed route and searches for the
// cheapest place to insert a new stop without reordering existing commitments.
package plan

import (
	"time"

	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/physics"
)

// Estimator evaluates routes with the configured car physics.
type Estimator struct {
	Physics physics.Params
}

// NewEstimator returns an Estimator for p.
func NewEstimator(p physics.Params) Estimator {
	return Estimator{Physics: p}
}

// Route is the outcome of driving a stop list to completion.
type Route struct {
	ETAs     []time.Time   // arrival at each stop's landing
	End      time.Time     // doors closed at the last stop
	Duration time.Duration // End - now
	Energy   float64       // motion energy in joules
	Wait     time.Duration // time spent waiting for passengers not yet at the landing
}

// Simulate walks stops from the car's current position and load. Consecutive
// stops on the same floor share a single door cycle.
func (est Estimator) Simulate(e *model.Elevator, stops []model.Stop, now time.Time) Route {
	r := Route{ETAs: make([]time.Time, len(stops))}
	pos := e.Position
	load := e.Load
	t := now

	var boarding, alighting float64
	for i, s := range stops {
		floor := float64(s.Floor)
		if floor != pos {
			t = t.Add(est.Physics.TravelTime(load, pos, floor))
			r.Energy += est.Physics.SegmentEnergy(load, pos, floor)
			pos = floor
		}
		if s.Kind == model.StopPickup && s.ReadyAt.After(t) {
			r.Wait += s.ReadyAt.Sub(t)
			t = s.ReadyAt
		}
		r.ETAs[i] = t

		switch s.Kind {
		case model.StopPickup:
			boarding += s.Load
			load += s.Load
		case model.StopDropoff:
			alighting += s.Load
			load -= s.Load
			if load < 0 {
				load = 0
			}
		}
		if i+1 == len(stops) || stops[i+1].Floor != s.Floor {
			t = t.Add(est.Physics.HoldTime(boarding, alighting))
			boarding, alighting = 0, 0
		}
	}
	r.End = t
	r.Duration = t.Sub(now)
	return r
}

func insertAt(stops []model.Stop, idx int, s model.Stop) []model.Stop {
	out := make([]model.Stop, 0, len(stops)+1)
	out = append(out, stops[:idx]...)
	out = append(out, s)
	return append(out, stops[idx:]...)
}

// PickupStop builds the pickup stop for req.
func PickupStop(req *model.Request) model.Stop {
	return model.Stop{
		Floor:     req.Origin,
		Kind:      model.StopPickup,
		RequestID: req.ID,
		Load:      req.PassengerLoad(),
		ReadyAt:   req.ArrivalTime,
	}
}

// DropoffStop builds the drop-off stop for req at floor.
func DropoffStop(req *model.Request, floor int) model.Stop {
	return model.Stop{
		Floor:     floor,
		Kind:      model.StopDropoff,
		RequestID: req.ID,
		Load:      req.PassengerLoad(),
	}
}
