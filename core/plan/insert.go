package plan

import (
	"time"

	"github.com/kilianp07/liftmpc/core/model"
)

// Insertion describes the cheapest way to add a request to a car's plan.
type Insertion struct {
	PickupIndex  int
	DropoffIndex int // -1 when only the pickup was inserted
	PickupETA    time.Time
	DropoffETA   time.Time
	Completion   time.Time

	AddedTime    time.Duration
	AddedEnergy  float64
	IdleWait     time.Duration
	ExtendsRoute bool // the car would otherwise be done before the new pickup
}

func (est Estimator) inRange(floor int) bool {
	return floor >= 1 && floor <= est.Physics.Floors
}

func (est Estimator) delta(base, cand Route) (time.Duration, float64, time.Duration) {
	dt := cand.End.Sub(base.End)
	if dt < 0 {
		dt = 0
	}
	de := cand.Energy - base.Energy
	if de < 0 {
		de = 0
	}
	dw := cand.Wait - base.Wait
	if dw < 0 {
		dw = 0
	}
	return dt, de, dw
}

// Insert searches every pickup gap i and every later drop-off gap for the
// pair that adds the least time to the route. Ties prefer the earlier
// drop-off ETA, then the lowest indices. It reports false when either floor is
// outside the building or the drop-off equals the origin.
func (est Estimator) Insert(e *model.Elevator, req *model.Request, dropoff int, now time.Time) (Insertion, bool) {
	if !est.inRange(req.Origin) || !est.inRange(dropoff) || dropoff == req.Origin {
		return Insertion{}, false
	}
	base := est.Simulate(e, e.Stops, now)
	pick := PickupStop(req)
	drop := DropoffStop(req, dropoff)

	var (
		best  Insertion
		found bool
	)
	n := len(e.Stops)
	for i := 0; i <= n; i++ {
		withPickup := insertAt(e.Stops, i, pick)
		for j := i + 1; j <= n+1; j++ {
			stops := insertAt(withPickup, j, drop)
			r := est.Simulate(e, stops, now)
			dt, de, dw := est.delta(base, r)
			cand := Insertion{
				PickupIndex:  i,
				DropoffIndex: j,
				PickupETA:    r.ETAs[i],
				DropoffETA:   r.ETAs[j],
				Completion:   r.End,
				AddedTime:    dt,
				AddedEnergy:  de,
				IdleWait:     dw,
				ExtendsRoute: i == n,
			}
			if !found || better(cand, best) {
				best, found = cand, true
			}
		}
	}
	return best, found
}

func better(a, b Insertion) bool {
	if a.AddedTime != b.AddedTime {
		return a.AddedTime < b.AddedTime
	}
	return a.DropoffETA.Before(b.DropoffETA)
}

// InsertPickup finds the pickup gap with the smallest detour, ignoring the
// unknown destination.
func (est Estimator) InsertPickup(e *model.Elevator, req *model.Request, now time.Time) (Insertion, bool) {
	if !est.inRange(req.Origin) {
		return Insertion{}, false
	}
	base := est.Simulate(e, e.Stops, now)
	pick := PickupStop(req)

	var (
		best  Insertion
		found bool
	)
	n := len(e.Stops)
	for i := 0; i <= n; i++ {
		r := est.Simulate(e, insertAt(e.Stops, i, pick), now)
		dt, de, dw := est.delta(base, r)
		if found && dt >= best.AddedTime {
			continue
		}
		best = Insertion{
			PickupIndex:  i,
			DropoffIndex: -1,
			PickupETA:    r.ETAs[i],
			Completion:   r.End,
			AddedTime:    dt,
			AddedEnergy:  de,
			IdleWait:     dw,
			ExtendsRoute: i == n,
		}
		found = true
	}
	return best, found
}

// CommitPickup inserts req's pickup into e at the minimum-detour gap. An idle
// car takes the direction of its new first stop.
func (est Estimator) CommitPickup(e *model.Elevator, req *model.Request, now time.Time) (Insertion, bool) {
	ins, ok := est.InsertPickup(e, req, now)
	if !ok {
		return ins, false
	}
	e.Stops = insertAt(e.Stops, ins.PickupIndex, PickupStop(req))
	if e.Direction == model.DirectionIdle {
		e.Direction = model.DirectionBetween(e.Position, e.Stops[0].Floor)
	}
	return ins, true
}

// CommitDropoff inserts the realised destination of a boarded passenger at
// the gap with the smallest detour. Any gap is allowed since the passenger is
// already in the car.
func (est Estimator) CommitDropoff(e *model.Elevator, req *model.Request, destination int, now time.Time) bool {
	if !est.inRange(destination) {
		return false
	}
	base := est.Simulate(e, e.Stops, now)
	drop := DropoffStop(req, destination)

	bestIdx := -1
	var bestAdded time.Duration
	for i := 0; i <= len(e.Stops); i++ {
		r := est.Simulate(e, insertAt(e.Stops, i, drop), now)
		dt, _, _ := est.delta(base, r)
		if bestIdx < 0 || dt < bestAdded {
			bestIdx, bestAdded = i, dt
		}
	}
	e.Stops = insertAt(e.Stops, bestIdx, drop)
	if e.Direction == model.DirectionIdle {
		e.Direction = model.DirectionBetween(e.Position, e.Stops[0].Floor)
	}
	return true
}
