package motion

import (
	"fmt"
	"time"

	"github.com/kilianp07/liftmpc/core/logger"
	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/physics"
	"github.com/kilianp07/liftmpc/core/plan"
)

// Simulator moves a fleet through time.
type Simulator struct {
	est    plan.Estimator
	cars   []*Car
	reqs   map[string]*model.Request
	served []*model.Request
	log    logger.Logger
}

// NewSimulator wraps fleet. The elevators are mutated in place so the
// scheduler sees the resulting state at its next tick.
func NewSimulator(est plan.Estimator, fleet []*model.Elevator, log logger.Logger) *Simulator {
	log = logger.OrNop(log)
	s := &Simulator{est: est, reqs: make(map[string]*model.Request), log: log}
	for _, e := range fleet {
		s.cars = append(s.cars, newCar(e, log))
	}
	return s
}

// Track registers an assigned request so the car can board it.
func (s *Simulator) Track(r *model.Request) {
	s.reqs[r.ID] = r
}

// Cars returns the simulated cars.
func (s *Simulator) Cars() []*Car { return s.cars }

// Served returns delivered requests in delivery order.
func (s *Simulator) Served() []*model.Request { return s.served }

// Busy reports whether any passenger is still waiting or riding.
func (s *Simulator) Busy() bool {
	if len(s.reqs) > 0 {
		return true
	}
	for _, c := range s.cars {
		if len(c.Elevator.Stops) > 0 || c.State() != StateIdle {
			return true
		}
	}
	return false
}

// Advance moves every car from now to now+dt.
func (s *Simulator) Advance(now time.Time, dt time.Duration) error {
	for _, c := range s.cars {
		if err := s.advanceCar(c, now, dt); err != nil {
			return fmt.Errorf("car %s: %w", c.Elevator.ID, err)
		}
		c.Elevator.Energy += s.est.Physics.StandbyEnergy(dt)
	}
	return nil
}

func (s *Simulator) advanceCar(c *Car, now time.Time, dt time.Duration) error {
	e := c.Elevator
	left := dt
	for left > 0 {
		t := now.Add(dt - left)
		switch c.State() {
		case StateIdle:
			if len(e.Stops) == 0 {
				e.Direction = model.DirectionIdle
				e.IdleTime += left
				return nil
			}
			next := e.Stops[0]
			if !c.atFloor(next.Floor) {
				c.depart(s.est.Physics, next.Floor)
				if err := c.fire(eventDepart); err != nil {
					return err
				}
				continue
			}
			if next.Kind == model.StopPickup && next.ReadyAt.After(t) {
				wait := min(left, next.ReadyAt.Sub(t))
				e.IdleTime += wait
				left -= wait
				continue
			}
			if err := c.fire(eventOpen); err != nil {
				return err
			}
			s.serve(c, t)

		case StateMoving:
			step := min(left, c.legTotal-c.legDone)
			c.legDone += step
			left -= step
			if c.legDone < c.legTotal {
				frac := float64(c.legDone) / float64(c.legTotal)
				e.Position = c.from + (float64(c.target)-c.from)*frac
				continue
			}
			e.Position = float64(c.target)
			if err := c.fire(eventArrive); err != nil {
				return err
			}
			s.serve(c, now.Add(dt-left))

		case StateDoorsOpen:
			step := min(left, c.doorLeft)
			c.doorLeft -= step
			left -= step
			if c.doorLeft <= 0 {
				if err := c.fire(eventClose); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// depart starts a leg towards floor and charges its motion energy up front.
func (c *Car) depart(p physics.Params, floor int) {
	e := c.Elevator
	c.from = e.Position
	c.target = floor
	c.legDone = 0
	c.legTotal = p.TravelTime(e.Load, e.Position, float64(floor))
	e.Direction = model.DirectionBetween(e.Position, floor)
	e.Energy += p.SegmentEnergy(e.Load, e.Position, float64(floor))
}

// serve handles every ready stop at the current floor and sets the door
// dwell. Boarded passengers get their destination inserted afterwards.
func (s *Simulator) serve(c *Car, t time.Time) {
	e := c.Elevator
	var boarded []*model.Request
	var boarding, alighting float64
	for len(e.Stops) > 0 {
		st := e.Stops[0]
		if !c.atFloor(st.Floor) || (st.Kind == model.StopPickup && st.ReadyAt.After(t)) {
			break
		}
		e.Stops = e.Stops[1:]
		r, ok := s.reqs[st.RequestID]
		if !ok {
			s.log.Warnf("car %s: stop for unknown request %s", e.ID, st.RequestID)
			continue
		}
		switch st.Kind {
		case model.StopPickup:
			e.Passengers = append(e.Passengers, r.ID)
			e.Load += st.Load
			boarding += st.Load
			r.Status = model.StatusOnboard
			r.PickupTime = t
			boarded = append(boarded, r)
		case model.StopDropoff:
			e.RemovePassenger(r.ID)
			e.Load -= st.Load
			if e.Load < 0 {
				e.Load = 0
			}
			alighting += st.Load
			r.Status = model.StatusCompleted
			r.DropoffTime = t
			delete(s.reqs, r.ID)
			s.served = append(s.served, r)
		}
	}
	for _, r := range boarded {
		if !s.est.CommitDropoff(e, r, r.Destination, t) {
			// Unknown destination: the passenger leaves at once.
			s.log.Warnf("car %s: request %s has no valid destination, dropping", e.ID, r.ID)
			e.RemovePassenger(r.ID)
			e.Load -= r.PassengerLoad()
			r.Status = model.StatusCompleted
			r.DropoffTime = t
			delete(s.reqs, r.ID)
			s.served = append(s.served, r)
		}
	}
	c.doorLeft = s.est.Physics.HoldTime(boarding, alighting)
}
