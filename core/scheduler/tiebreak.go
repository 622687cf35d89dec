package scheduler

import "math"

// tieBreaker owns the rotating pointer. It is only touched from the serial
// commit path.
type tieBreaker struct {
	pointer int
	epsAbs  float64
	epsRel  float64
}

// choose returns the index of the elevator to assign among feasible ones, and
// whether the pointer had to arbitrate between near-tied candidates. It
// returns -1 when nothing is feasible.
func (t *tieBreaker) choose(costs []float64, feasible []bool) (int, bool) {
	n := len(costs)
	best := math.Inf(1)
	for i := 0; i < n; i++ {
		if feasible[i] && costs[i] < best {
			best = costs[i]
		}
	}
	if math.IsInf(best, 1) {
		return -1, false
	}
	limit := best + t.epsAbs + t.epsRel*math.Abs(best)

	tied := 0
	only := -1
	for i := 0; i < n; i++ {
		if feasible[i] && costs[i] <= limit {
			tied++
			only = i
		}
	}
	if tied == 1 {
		return only, false
	}
	for k := 0; k < n; k++ {
		i := (t.pointer + k) % n
		if feasible[i] && costs[i] <= limit {
			t.pointer = (i + 1) % n
			return i, true
		}
	}
	return -1, false
}
