package metrics

import "time"

// TickRecord summarises one scheduling tick.
type TickRecord struct {
	TickID       string
	Candidates   int
	Assigned     int
	Deferred     int
	Degraded     bool
	ModelVersion uint64
	Duration     time.Duration
	Time         time.Time
}

// MetricsSink records scheduling ticks for observability purposes.
type MetricsSink interface {
	RecordTick(rec TickRecord) error
}

// AssignmentRecord is one committed request.
type AssignmentRecord struct {
	TickID     string
	RequestID  string
	ElevatorID string
	Origin     int
	Cost       float64
	Journey    time.Duration
	Energy     float64
	TieBroken  bool
	Time       time.Time
}

// AssignmentRecorder records committed assignments.
type AssignmentRecorder interface {
	RecordAssignments(recs []AssignmentRecord) error
}

// ElevatorStateRecord is a snapshot of one car.
type ElevatorStateRecord struct {
	ElevatorID string
	Position   float64
	Direction  string
	Load       float64
	Passengers int
	Stops      int
	IdleTime   time.Duration
	Energy     float64
	Time       time.Time
}

// ElevatorStateRecorder records car snapshots.
type ElevatorStateRecorder interface {
	RecordElevatorState(rec ElevatorStateRecord) error
}

// DeferredRecord is a request left pending for lack of capacity.
type DeferredRecord struct {
	TickID    string
	RequestID string
	Reason    string
	Time      time.Time
}

// DeferredRecorder records deferred requests.
type DeferredRecorder interface {
	RecordDeferred(rec DeferredRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTick(TickRecord) error                   { return nil }
func (NopSink) RecordAssignments([]AssignmentRecord) error    { return nil }
func (NopSink) RecordElevatorState(ElevatorStateRecord) error { return nil }
func (NopSink) RecordDeferred(DeferredRecord) error           { return nil }
