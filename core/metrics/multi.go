package metrics

// MultiSink fans records out to several sinks. Optional recorder interfaces
// are forwarded only to the sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTick(rec TickRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordTick(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignments forwards assignments.
func (m *MultiSink) RecordAssignments(recs []AssignmentRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(AssignmentRecorder); ok {
			if err := r.RecordAssignments(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordElevatorState forwards car snapshots.
func (m *MultiSink) RecordElevatorState(rec ElevatorStateRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(ElevatorStateRecorder); ok {
			if err := r.RecordElevatorState(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDeferred forwards deferred requests.
func (m *MultiSink) RecordDeferred(rec DeferredRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(DeferredRecorder); ok {
			if err := r.RecordDeferred(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
