package events

import "time"

// Event is implemented by every scheduling event.
type Event interface {
	Kind() string
}

// TickEvent is published once per completed tick.
type TickEvent struct {
	TickID       string
	At           time.Time
	Candidates   int
	Assigned     int
	Deferred     int
	Degraded     bool
	ModelVersion uint64
	Duration     time.Duration
}

// Kind implements Event.
func (TickEvent) Kind() string { return "tick" }

// AssignmentEvent is published when a request is committed to an elevator.
type AssignmentEvent struct {
	TickID     string
	RequestID  string
	ElevatorID string
	Origin     int
	Cost       float64
	Journey    time.Duration
	Energy     float64
	TieBroken  bool
	At         time.Time
}

// Kind implements Event.
func (AssignmentEvent) Kind() string { return "assignment" }

// DeferredEvent is published when no elevator could take a request.
type DeferredEvent struct {
	TickID    string
	RequestID string
	Reason    string
}

// Kind implements Event.
func (DeferredEvent) Kind() string { return "deferred" }

// ModelSwapEvent is published when the destination model changes.
type ModelSwapEvent struct {
	Version  uint64
	Degraded bool
}

// Kind implements Event.
func (ModelSwapEvent) Kind() string { return "model_swap" }
