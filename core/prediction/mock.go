package prediction

import "time"

// MockPredictor returns configured distributions per origin floor.
type MockPredictor struct {
	FloorCount    int
	Distributions map[int]Distribution
	Default       Distribution
}

// Floors returns the configured floor count.
func (m MockPredictor) Floors() int { return m.FloorCount }

// Predict returns a copy of the configured distribution for origin, or the
// default one.
func (m MockPredictor) Predict(origin int, _ time.Duration, _ time.Weekday) (Distribution, error) {
	if m.FloorCount > 0 {
		if err := checkOrigin(origin, m.FloorCount); err != nil {
			return nil, err
		}
	}
	d, ok := m.Distributions[origin]
	if !ok {
		d = m.Default
	}
	return append(Distribution(nil), d...), nil
}
