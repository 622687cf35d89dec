package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/liftmpc/core/model"
)

func TestHallCallRequest(t *testing.T) {
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	r := HallCall{Floor: 4}.Request(now)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, now, r.ArrivalTime)
	assert.Equal(t, 4, r.Origin)

	at := now.Add(-time.Minute)
	r = HallCall{RequestID: "r1", Floor: 2, Timestamp: at.UnixMilli(), Load: 90}.Request(now)
	assert.Equal(t, "r1", r.ID)
	assert.True(t, at.Equal(r.ArrivalTime))
	assert.Equal(t, 90.0, r.PassengerLoad())
}

func TestCarStateElevator(t *testing.T) {
	ready := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	cs := CarState{
		ElevatorID: "A", Position: 3.5, Direction: "up", Capacity: 8,
		Passengers: []string{"p1"}, Load: 75,
		Stops: []StopState{
			{Floor: 5, Kind: "dropoff", RequestID: "p1", Load: 75},
			{Floor: 7, Kind: "pickup", RequestID: "p2", Load: 75, ReadyAt: ready.UnixMilli()},
		},
		IdleMS: 1500,
	}
	e, err := cs.Elevator()
	require.NoError(t, err)
	assert.Equal(t, model.DirectionUp, e.Direction)
	assert.Equal(t, 2, e.Committed())
	assert.Equal(t, 1500*time.Millisecond, e.IdleTime)
	assert.True(t, ready.Equal(e.Stops[1].ReadyAt))

	back := Stops(e.Stops)
	assert.Equal(t, cs.Stops, back)
}

func TestCarStateRejectsBadInput(t *testing.T) {
	_, err := CarState{ElevatorID: "A", Direction: "sideways", Capacity: 1}.Elevator()
	assert.Error(t, err)

	_, err = CarState{ElevatorID: "A", Capacity: 1, Stops: []StopState{{Floor: 2, Kind: "teleport"}}}.Elevator()
	assert.Error(t, err)

	_, err = CarState{ElevatorID: "A", Capacity: 0, Passengers: []string{"p"}}.Elevator()
	assert.ErrorIs(t, err, model.ErrInvalidElevator)
}

func TestTopicsDefaults(t *testing.T) {
	tp := Topics{HallCalls: "custom/calls"}
	tp.SetDefaults()
	assert.Equal(t, "custom/calls", tp.HallCalls)
	assert.Equal(t, DefaultTopics().Acks, tp.Acks)
}
