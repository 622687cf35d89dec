package model

import (
	"fmt"
	"time"
)

// DefaultPassengerLoad is the mass assumed for a passenger whose load is not
// reported, in kilograms.
const DefaultPassengerLoad = 75.0

// RequestStatus tracks a request through its life cycle.
type RequestStatus int

const (
	StatusPending RequestStatus = iota
	StatusAssigned
	StatusOnboard
	StatusCompleted
)

// String returns a human-readable representation of the status.
func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAssigned:
		return "assigned"
	case StatusOnboard:
		return "onboard"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Request is a hall call placed by a passenger waiting at Origin.
type Request struct {
	ID          string
	Origin      int
	ArrivalTime time.Time
	// Destination is the floor the passenger will press once inside the car.
	// It is ground truth for simulation and replay; the scheduler never reads
	// it. Zero means unknown.
	Destination int
	Load        float64 // passenger mass in kg, DefaultPassengerLoad when zero
	Status      RequestStatus
	ElevatorID  string
	PickupTime  time.Time
	DropoffTime time.Time

	// Seq is the insertion order in the pending queue and breaks arrival ties.
	Seq uint64
}

// PassengerLoad returns the load used for kinematics and dwell estimates.
func (r Request) PassengerLoad() float64 {
	if r.Load <= 0 {
		return DefaultPassengerLoad
	}
	return r.Load
}

// Validate checks the request is well formed for a building with floors
// numbered 1..floors.
func (r Request) Validate(floors int) error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if r.Origin < 1 || (floors > 0 && r.Origin > floors) {
		return fmt.Errorf("request %s: origin floor %d out of range", r.ID, r.Origin)
	}
	if r.Destination != 0 && (r.Destination < 1 || (floors > 0 && r.Destination > floors)) {
		return fmt.Errorf("request %s: destination floor %d out of range", r.ID, r.Destination)
	}
	return nil
}

// WaitTime returns the time between arrival and pickup, or zero when the
// passenger has not boarded yet.
func (r Request) WaitTime() time.Duration {
	if r.PickupTime.IsZero() || r.PickupTime.Before(r.ArrivalTime) {
		return 0
	}
	return r.PickupTime.Sub(r.ArrivalTime)
}

// JourneyTime returns the time between arrival and drop-off, or zero when the
// passenger has not been delivered.
func (r Request) JourneyTime() time.Duration {
	if r.DropoffTime.IsZero() || r.DropoffTime.Before(r.ArrivalTime) {
		return 0
	}
	return r.DropoffTime.Sub(r.ArrivalTime)
}
