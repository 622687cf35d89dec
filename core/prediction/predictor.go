package prediction

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrFloorOutOfRange is returned when the origin is not a floor of the building.
var ErrFloorOutOfRange = errors.New("floor out of range")

// Candidate is one destination hypothesis.
type Candidate struct {
	Floor       int     `json:"floor"`
	Probability float64 `json:"probability"`
}

// Distribution is ordered by descending probability, ties by ascending floor.
type Distribution []Candidate

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var s float64
	for _, c := range d {
		s += c.Probability
	}
	return s
}

// Predictor forecasts destination floors.
type Predictor interface {
	Predict(origin int, timeOfDay time.Duration, weekday time.Weekday) (Distribution, error)
	Floors() int
}

// At splits t into the time of day and weekday a Predictor expects.
func At(t time.Time) (time.Duration, time.Weekday) {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return t.Sub(midnight), t.Weekday()
}

func checkOrigin(origin, floors int) error {
	if origin < 1 || origin > floors {
		return fmt.Errorf("%w: origin %d not in 1..%d", ErrFloorOutOfRange, origin, floors)
	}
	return nil
}

func rank(d Distribution) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].Probability != d[j].Probability {
			return d[i].Probability > d[j].Probability
		}
		return d[i].Floor < d[j].Floor
	})
}

// TopK ranks d, keeps the k most likely floors and rescales them so they sum
// to one. A non-positive k keeps everything.
func TopK(d Distribution, k int) Distribution {
	out := append(Distribution(nil), d...)
	rank(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	total := out.Sum()
	if total <= 0 {
		return out
	}
	for i := range out {
		out[i].Probability /= total
	}
	return out
}
