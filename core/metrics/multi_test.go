package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	ticks, assignments int
}

func (r *recordSink) RecordTick(TickRecord) error {
	r.ticks++
	return nil
}

func (r *recordSink) RecordAssignments([]AssignmentRecord) error {
	r.assignments++
	return nil
}

type tickOnly struct{ err error }

func (t tickOnly) RecordTick(TickRecord) error { return t.err }

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, tickOnly{})
	if err := m.RecordTick(TickRecord{}); err != nil {
		t.Fatalf("record tick: %v", err)
	}
	if err := m.RecordAssignments(nil); err != nil {
		t.Fatalf("record assignments: %v", err)
	}
	if err := m.RecordElevatorState(ElevatorStateRecord{}); err != nil {
		t.Fatalf("record state: %v", err)
	}
	if s1.ticks != 1 || s2.ticks != 1 || s1.assignments != 1 || s2.assignments != 1 {
		t.Fatalf("records not forwarded")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s := &recordSink{}
	m := NewMultiSink(tickOnly{err: boom}, s)
	if err := m.RecordTick(TickRecord{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.ticks != 0 {
		t.Fatal("sink after failing one should not be called")
	}
}
