package prediction

import "time"

// Uniform spreads probability evenly over every floor except the origin. It
// serves as the degraded mode when no trained model is loaded and is not
// truncated to K.
type Uniform struct {
	FloorCount int
}

// Floors returns the number of floors.
func (u Uniform) Floors() int { return u.FloorCount }

// Predict returns floors 1..N minus origin with equal probability.
func (u Uniform) Predict(origin int, _ time.Duration, _ time.Weekday) (Distribution, error) {
	if err := checkOrigin(origin, u.FloorCount); err != nil {
		return nil, err
	}
	p := 1 / float64(u.FloorCount-1)
	d := make(Distribution, 0, u.FloorCount-1)
	for f := 1; f <= u.FloorCount; f++ {
		if f != origin {
			d = append(d, Candidate{Floor: f, Probability: p})
		}
	}
	return d, nil
}
