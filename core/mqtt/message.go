package mqtt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/liftmpc/core/model"
)

// HallCall is a landing button press. Timestamps are Unix milliseconds.
type HallCall struct {
	RequestID string  `json:"request_id,omitempty"`
	Floor     int     `json:"floor"`
	Load      float64 `json:"load_kg,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// Request converts the call into a pending request. A missing ID is
// generated and a missing timestamp defaults to now.
func (h HallCall) Request(now time.Time) *model.Request {
	id := h.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	at := now
	if h.Timestamp > 0 {
		at = time.UnixMilli(h.Timestamp).UTC()
	}
	return &model.Request{ID: id, Origin: h.Floor, ArrivalTime: at, Load: h.Load}
}

// StopState is a stop on the wire.
type StopState struct {
	Floor     int     `json:"floor"`
	Kind      string  `json:"kind"`
	RequestID string  `json:"request_id"`
	Load      float64 `json:"load_kg,omitempty"`
	ReadyAt   int64   `json:"ready_at,omitempty"`
}

// CarState is the periodic report of one car controller.
type CarState struct {
	ElevatorID string      `json:"elevator_id"`
	Position   float64     `json:"position"`
	Direction  string      `json:"direction"`
	Capacity   int         `json:"capacity"`
	Passengers []string    `json:"passengers"`
	Load       float64     `json:"load_kg"`
	Stops      []StopState `json:"stops"`
	IdleMS     int64       `json:"idle_ms"`
	Energy     float64     `json:"energy_j"`
	Timestamp  int64       `json:"timestamp"`
}

// Elevator converts the report into the scheduler's elevator record.
func (c CarState) Elevator() (*model.Elevator, error) {
	dir, err := model.ParseDirection(c.Direction)
	if err != nil {
		return nil, fmt.Errorf("car %s: %w", c.ElevatorID, err)
	}
	e := &model.Elevator{
		ID:         c.ElevatorID,
		Position:   c.Position,
		Direction:  dir,
		Capacity:   c.Capacity,
		Passengers: append([]string(nil), c.Passengers...),
		Load:       c.Load,
		IdleTime:   time.Duration(c.IdleMS) * time.Millisecond,
		Energy:     c.Energy,
	}
	for _, s := range c.Stops {
		st := model.Stop{Floor: s.Floor, RequestID: s.RequestID, Load: s.Load}
		switch s.Kind {
		case "pickup":
			st.Kind = model.StopPickup
		case "dropoff":
			st.Kind = model.StopDropoff
		default:
			return nil, fmt.Errorf("car %s: unknown stop kind %q", c.ElevatorID, s.Kind)
		}
		if s.ReadyAt > 0 {
			st.ReadyAt = time.UnixMilli(s.ReadyAt).UTC()
		}
		e.Stops = append(e.Stops, st)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Stops encodes a stop list for the wire.
func Stops(stops []model.Stop) []StopState {
	out := make([]StopState, 0, len(stops))
	for _, s := range stops {
		ws := StopState{Floor: s.Floor, Kind: s.Kind.String(), RequestID: s.RequestID, Load: s.Load}
		if !s.ReadyAt.IsZero() {
			ws.ReadyAt = s.ReadyAt.UnixMilli()
		}
		out = append(out, ws)
	}
	return out
}

// AssignmentCommand tells a car to serve a request. Stops carries the full
// committed plan so the controller can replace its own.
type AssignmentCommand struct {
	CommandID  string      `json:"command_id"`
	RequestID  string      `json:"request_id"`
	ElevatorID string      `json:"elevator_id"`
	Origin     int         `json:"origin"`
	Cost       float64     `json:"cost"`
	Stops      []StopState `json:"stops"`
	Timestamp  int64       `json:"timestamp"`
}

// Ack is the controller reply to an assignment.
type Ack struct {
	CommandID string `json:"command_id"`
	Accepted  bool   `json:"accepted"`
}
