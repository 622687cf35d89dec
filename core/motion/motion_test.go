package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/physics"
	"github.com/kilianp07/liftmpc/core/plan"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T, pos float64) (*Simulator, *model.Elevator, plan.Estimator) {
	t.Helper()
	est := plan.NewEstimator(physics.Default())
	e := &model.Elevator{ID: "A", Position: pos, Capacity: 8}
	return NewSimulator(est, []*model.Elevator{e}, nil), e, est
}

func run(t *testing.T, s *Simulator, from time.Time, step time.Duration, limit int) time.Time {
	t.Helper()
	now := from
	for i := 0; i < limit && s.Busy(); i++ {
		require.NoError(t, s.Advance(now, step))
		now = now.Add(step)
	}
	require.False(t, s.Busy(), "simulation did not settle")
	return now
}

func TestIdleCarAccumulatesIdleTime(t *testing.T) {
	s, e, est := setup(t, 1)
	require.NoError(t, s.Advance(t0, 10*time.Second))
	assert.Equal(t, 10*time.Second, e.IdleTime)
	assert.Equal(t, StateIdle, s.Cars()[0].State())
	assert.InDelta(t, est.Physics.StandbyEnergy(10*time.Second), e.Energy, 1e-9)
}

func TestDeliversPassenger(t *testing.T) {
	s, e, est := setup(t, 1)
	r := &model.Request{ID: "r1", Origin: 5, Destination: 10, ArrivalTime: t0}
	_, ok := est.CommitPickup(e, r, t0)
	require.True(t, ok)
	s.Track(r)

	run(t, s, t0, 500*time.Millisecond, 1000)

	require.Len(t, s.Served(), 1)
	assert.Equal(t, model.StatusCompleted, r.Status)
	assert.True(t, r.PickupTime.After(t0))
	assert.True(t, r.DropoffTime.After(r.PickupTime))
	assert.InDelta(t, 10, e.Position, 1e-9)
	assert.Empty(t, e.Passengers)
	assert.Zero(t, e.Load)
	assert.Greater(t, e.Energy, 0.0)

	// pickup time tracks the route estimate within one step
	want := est.Physics.TravelTime(0, 1, 5)
	assert.InDelta(t, want.Seconds(), r.PickupTime.Sub(t0).Seconds(), 0.5)
}

func TestWaitsForLatePassenger(t *testing.T) {
	s, e, est := setup(t, 3)
	late := t0.Add(20 * time.Second)
	r := &model.Request{ID: "r1", Origin: 3, Destination: 1, ArrivalTime: late}
	_, ok := est.CommitPickup(e, r, t0)
	require.True(t, ok)
	s.Track(r)

	require.NoError(t, s.Advance(t0, 10*time.Second))
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, 10*time.Second, e.IdleTime)

	run(t, s, t0.Add(10*time.Second), time.Second, 200)
	assert.Equal(t, late, r.PickupTime)
	assert.Zero(t, r.WaitTime())
}

func TestMissingDestinationCompletesAtPickup(t *testing.T) {
	s, e, est := setup(t, 2)
	r := &model.Request{ID: "r1", Origin: 2, ArrivalTime: t0}
	_, ok := est.CommitPickup(e, r, t0)
	require.True(t, ok)
	s.Track(r)

	run(t, s, t0, time.Second, 50)
	assert.Equal(t, model.StatusCompleted, r.Status)
	assert.Equal(t, r.PickupTime, r.DropoffTime)
}

func TestSharedFloorBoardsTogether(t *testing.T) {
	s, e, est := setup(t, 1)
	a := &model.Request{ID: "a", Origin: 4, Destination: 8, ArrivalTime: t0}
	b := &model.Request{ID: "b", Origin: 4, Destination: 8, ArrivalTime: t0}
	for _, r := range []*model.Request{a, b} {
		_, ok := est.CommitPickup(e, r, t0)
		require.True(t, ok)
		s.Track(r)
	}
	run(t, s, t0, 250*time.Millisecond, 2000)
	assert.Equal(t, a.PickupTime, b.PickupTime)
	assert.Equal(t, a.DropoffTime, b.DropoffTime)
}

func TestSummarize(t *testing.T) {
	served := []*model.Request{
		{ID: "a", ArrivalTime: t0, PickupTime: t0.Add(10 * time.Second), DropoffTime: t0.Add(30 * time.Second), Status: model.StatusCompleted},
		{ID: "b", ArrivalTime: t0, PickupTime: t0.Add(20 * time.Second), DropoffTime: t0.Add(50 * time.Second), Status: model.StatusCompleted},
		{ID: "c", ArrivalTime: t0, Status: model.StatusOnboard},
	}
	fleet := []*model.Elevator{{ID: "A", Energy: 1000, IdleTime: time.Minute}, {ID: "B", Energy: 500}}

	s := Summarize(served, fleet, 1, 0.01)
	assert.Equal(t, 2, s.Served)
	assert.Equal(t, 80*time.Second, s.TotalPassengerTime)
	assert.Equal(t, 40*time.Second, s.AvgPassengerTime)
	assert.Equal(t, 30*time.Second, s.TotalWait)
	assert.Equal(t, 50*time.Second, s.TotalInCab)
	assert.Equal(t, 1500.0, s.Energy)
	assert.Equal(t, time.Minute, s.IdleTime)
	assert.InDelta(t, 80+15, s.Objective, 1e-9)
}
