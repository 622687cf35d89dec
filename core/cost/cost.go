// Package cost computes the expected incremental cost of giving a request to
// an elevator, averaged over the predicted destinations.
package cost

import (
	"time"

	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/plan"
	"github.com/kilianp07/liftmpc/core/prediction"
)

// DefaultTieBias is the cost added per second of expected completion time.
// It only separates insertions that are otherwise equal.
const DefaultTieBias = 1e-6

// Weights scale the cost terms.
type Weights struct {
	Time        float64 // per second of passenger journey
	Energy      float64 // per joule
	IdlePenalty float64 // per dedicated trip
}

// Hypothesis is the cost of one predicted destination.
type Hypothesis struct {
	Floor       int
	Probability float64
	Journey     time.Duration
	Energy      float64
	Idle        bool
	Cost        float64
	Insertion   plan.Insertion
}

// Result is the expected cost of one (request, elevator) pair.
type Result struct {
	ElevatorID string
	Expected   float64
	Journey    time.Duration // expected arrival-to-destination time
	Energy     float64       // expected joules including standby
	Completion time.Duration // expected time until the car finishes its plan
	Hypotheses []Hypothesis
}

// Evaluator is a pure function of its configuration.
type Evaluator struct {
	Estimator    plan.Estimator
	Weights      Weights
	StandbyPower float64 // watts drawn while the car stays in service
	TieBias      float64
}

// Evaluate expands every hypothesis in dist. Hypotheses that cannot be routed
// are skipped and the remaining probabilities rescaled; the pair is
// infeasible when none remain.
func (ev Evaluator) Evaluate(req *model.Request, e *model.Elevator, dist prediction.Distribution, now time.Time) (Result, bool) {
	res := Result{ElevatorID: e.ID}
	var mass, expected, journey, energy, completion float64
	for _, c := range dist {
		if c.Probability <= 0 {
			continue
		}
		ins, ok := ev.Estimator.Insert(e, req, c.Floor, now)
		if !ok {
			continue
		}
		h := ev.hypothesis(req, c, ins)
		mass += c.Probability
		expected += c.Probability * h.Cost
		journey += c.Probability * h.Journey.Seconds()
		energy += c.Probability * h.Energy
		completion += c.Probability * ins.Completion.Sub(now).Seconds()
		res.Hypotheses = append(res.Hypotheses, h)
	}
	if mass <= 0 {
		return Result{}, false
	}
	completion /= mass
	res.Expected = expected/mass + ev.TieBias*completion
	res.Journey = seconds(journey / mass)
	res.Energy = energy / mass
	res.Completion = seconds(completion)
	return res, true
}

func (ev Evaluator) hypothesis(req *model.Request, c prediction.Candidate, ins plan.Insertion) Hypothesis {
	journey := ins.DropoffETA.Sub(req.ArrivalTime)
	if journey < 0 {
		journey = 0
	}
	energy := ins.AddedEnergy + ev.StandbyPower*ins.AddedTime.Seconds()
	cost := ev.Weights.Time*journey.Seconds() + ev.Weights.Energy*energy
	if ins.ExtendsRoute {
		cost += ev.Weights.IdlePenalty
	}
	return Hypothesis{
		Floor:       c.Floor,
		Probability: c.Probability,
		Journey:     journey,
		Energy:      energy,
		Idle:        ins.ExtendsRoute,
		Cost:        cost,
		Insertion:   ins,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
