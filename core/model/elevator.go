package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidElevator reports a malformed elevator record. It signals a
// programming error in the caller, not a recoverable condition.
var ErrInvalidElevator = errors.New("invalid elevator")

// Direction is the travel direction of a car.
type Direction int

const (
	DirectionIdle Direction = iota
	DirectionUp
	DirectionDown
)

// String returns a human-readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionIdle:
		return "idle"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// ParseDirection converts the textual form used on the wire.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "idle":
		return DirectionIdle, nil
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	default:
		return DirectionIdle, fmt.Errorf("unknown direction %q", s)
	}
}

// DirectionBetween returns the direction needed to go from one position to a
// floor.
func DirectionBetween(from float64, to int) Direction {
	switch {
	case float64(to) > from+1e-9:
		return DirectionUp
	case float64(to) < from-1e-9:
		return DirectionDown
	default:
		return DirectionIdle
	}
}

// StopKind distinguishes pickups from drop-offs.
type StopKind int

const (
	StopPickup StopKind = iota
	StopDropoff
)

// String returns a human-readable representation of the stop kind.
func (k StopKind) String() string {
	if k == StopDropoff {
		return "dropoff"
	}
	return "pickup"
}

// Stop is one entry of a car's committed plan.
type Stop struct {
	Floor     int
	Kind      StopKind
	RequestID string
	Load      float64   // kg boarding (pickup) or alighting (dropoff)
	ReadyAt   time.Time // pickups only: when the passenger reaches the landing
}

// Elevator is the mutable state of one car. The scheduler reads it as ground
// truth at every tick and only appends to Stops when it commits a request.
type Elevator struct {
	ID         string
	Position   float64 // floors, continuous while travelling
	Direction  Direction
	Capacity   int      // maximum number of passengers
	Passengers []string // request IDs currently on board
	Load       float64  // kg currently on board
	Stops      []Stop

	IdleTime time.Duration // cumulative time spent idle
	Energy   float64       // cumulative energy in joules
}

// Validate rejects malformed records.
func (e *Elevator) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil elevator", ErrInvalidElevator)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidElevator)
	}
	if e.Capacity < 0 {
		return fmt.Errorf("%w: %s has negative capacity %d", ErrInvalidElevator, e.ID, e.Capacity)
	}
	if math.IsNaN(e.Position) || math.IsInf(e.Position, 0) {
		return fmt.Errorf("%w: %s has non-finite position", ErrInvalidElevator, e.ID)
	}
	if e.Load < 0 {
		return fmt.Errorf("%w: %s has negative load", ErrInvalidElevator, e.ID)
	}
	if c := e.Committed(); c > e.Capacity {
		return fmt.Errorf("%w: %s carries %d committed passengers over capacity %d", ErrInvalidElevator, e.ID, c, e.Capacity)
	}
	return nil
}

// PendingPickups returns the number of pickup stops still to be served.
func (e *Elevator) PendingPickups() int {
	n := 0
	for _, s := range e.Stops {
		if s.Kind == StopPickup {
			n++
		}
	}
	return n
}

// Committed returns the passengers the car is responsible for: those on board
// plus those it has promised to pick up.
func (e *Elevator) Committed() int {
	return len(e.Passengers) + e.PendingPickups()
}

// HasCapacity reports whether one more request can be committed.
func (e *Elevator) HasCapacity() bool {
	return e.Committed() < e.Capacity
}

// Idle reports whether the car has nothing left to do.
func (e *Elevator) Idle() bool {
	return len(e.Stops) == 0
}

// Floor returns the nearest landing.
func (e *Elevator) Floor() int {
	return int(math.Round(e.Position))
}

// Clone returns a deep copy, used to evaluate hypothetical plans.
func (e *Elevator) Clone() *Elevator {
	cp := *e
	cp.Passengers = append([]string(nil), e.Passengers...)
	cp.Stops = append([]Stop(nil), e.Stops...)
	return &cp
}

// RemovePassenger drops id from the on-board list and reports whether it was
// found.
func (e *Elevator) RemovePassenger(id string) bool {
	for i, p := range e.Passengers {
		if p == id {
			e.Passengers = append(e.Passengers[:i], e.Passengers[i+1:]...)
			return true
		}
	}
	return false
}
