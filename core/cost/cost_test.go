package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/physics"
	"github.com/kilianp07/liftmpc/core/plan"
	"github.com/kilianp07/liftmpc/core/prediction"
)

var now = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func evaluator() Evaluator {
	p := physics.Default()
	return Evaluator{
		Estimator:    plan.NewEstimator(p),
		Weights:      Weights{Time: 1, Energy: 1e-4, IdlePenalty: 5},
		StandbyPower: p.StandbyPower,
		TieBias:      DefaultTieBias,
	}
}

func TestEvaluateNearCarIsCheaper(t *testing.T) {
	ev := evaluator()
	req := &model.Request{ID: "r", Origin: 1, ArrivalTime: now}
	dist := prediction.Distribution{{Floor: 5, Probability: 0.7}, {Floor: 8, Probability: 0.3}}

	a, ok := ev.Evaluate(req, &model.Elevator{ID: "A", Position: 1, Capacity: 8}, dist, now)
	require.True(t, ok)
	b, ok := ev.Evaluate(req, &model.Elevator{ID: "B", Position: 10, Capacity: 8}, dist, now)
	require.True(t, ok)

	assert.Less(t, a.Expected, b.Expected)
	assert.Len(t, a.Hypotheses, 2)
	assert.Less(t, a.Journey, b.Journey)
	assert.GreaterOrEqual(t, a.Expected, 0.0)
}

func TestEvaluateExpectationMatchesHypotheses(t *testing.T) {
	ev := evaluator()
	ev.TieBias = 0
	req := &model.Request{ID: "r", Origin: 3, ArrivalTime: now}
	dist := prediction.Distribution{{Floor: 9, Probability: 0.6}, {Floor: 1, Probability: 0.4}}
	res, ok := ev.Evaluate(req, &model.Elevator{ID: "A", Position: 6, Capacity: 4}, dist, now)
	require.True(t, ok)

	var want float64
	for _, h := range res.Hypotheses {
		want += h.Probability * h.Cost
		assert.True(t, h.Idle)
		assert.GreaterOrEqual(t, h.Cost, ev.Weights.IdlePenalty)
	}
	assert.InDelta(t, want, res.Expected, 1e-9)
}

func TestEvaluateSkipsUnroutableHypotheses(t *testing.T) {
	ev := evaluator()
	req := &model.Request{ID: "r", Origin: 2, ArrivalTime: now}
	e := &model.Elevator{ID: "A", Position: 2, Capacity: 4}

	res, ok := ev.Evaluate(req, e, prediction.Distribution{{Floor: 99, Probability: 0.5}, {Floor: 7, Probability: 0.5}}, now)
	require.True(t, ok)
	require.Len(t, res.Hypotheses, 1)

	_, ok = ev.Evaluate(req, e, prediction.Distribution{{Floor: 2, Probability: 1}}, now)
	assert.False(t, ok)
	_, ok = ev.Evaluate(req, e, nil, now)
	assert.False(t, ok)
}

func TestEvaluateWeightsAreApplied(t *testing.T) {
	req := &model.Request{ID: "r", Origin: 1, ArrivalTime: now}
	e := &model.Elevator{ID: "A", Position: 4, Capacity: 4}
	dist := prediction.Distribution{{Floor: 6, Probability: 1}}

	ev := evaluator()
	ev.TieBias = 0
	ev.Weights = Weights{Time: 1}
	timeOnly, ok := ev.Evaluate(req, e, dist, now)
	require.True(t, ok)
	assert.InDelta(t, timeOnly.Journey.Seconds(), timeOnly.Expected, 1e-6)

	ev.Weights = Weights{IdlePenalty: 3}
	idleOnly, ok := ev.Evaluate(req, e, dist, now)
	require.True(t, ok)
	assert.InDelta(t, 3.0, idleOnly.Expected, 1e-12)
}

func TestEvaluateWaitingPassengerJourneyCountsFromArrival(t *testing.T) {
	ev := evaluator()
	req := &model.Request{ID: "r", Origin: 1, ArrivalTime: now.Add(-20 * time.Second)}
	res, ok := ev.Evaluate(req, &model.Elevator{ID: "A", Position: 1, Capacity: 4}, prediction.Distribution{{Floor: 3, Probability: 1}}, now)
	require.True(t, ok)
	assert.Greater(t, res.Journey, 20*time.Second)
}
