package scheduler

import (
	"sort"
	"time"

	"github.com/kilianp07/liftmpc/core/model"
)

func byArrival(reqs []*model.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if !a.ArrivalTime.Equal(b.ArrivalTime) {
			return a.ArrivalTime.Before(b.ArrivalTime)
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.ID < b.ID
	})
}

// SelectWindow picks at most maxBatch requests to price this tick. Requests
// arriving no later than now+lookahead come first; passengers already
// waiting count as inside the window. Remaining slots are backfilled with
// the earliest later arrivals. The result is in arrival order.
func SelectWindow(pending []*model.Request, now time.Time, lookahead time.Duration, maxBatch int) []*model.Request {
	if maxBatch <= 0 || len(pending) == 0 {
		return nil
	}
	sorted := append([]*model.Request(nil), pending...)
	byArrival(sorted)

	limit := now.Add(lookahead)
	out := make([]*model.Request, 0, min(maxBatch, len(sorted)))
	var rest []*model.Request
	for _, r := range sorted {
		if r.ArrivalTime.After(limit) {
			rest = append(rest, r)
			continue
		}
		if len(out) < maxBatch {
			out = append(out, r)
		}
	}
	for _, r := range rest {
		if len(out) >= maxBatch {
			break
		}
		out = append(out, r)
	}
	byArrival(out)
	return out
}
