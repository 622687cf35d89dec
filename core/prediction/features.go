package prediction

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

const day = 24 * time.Hour

// FeatureSpec fixes the layout of the model input vector:
// bias, sin/cos pairs for each Fourier order, weekday one-hot starting on
// Monday, origin floor one-hot for floors 1..Floors.
type FeatureSpec struct {
	FourierOrder int
	Floors       int
}

// Len returns the feature vector length.
func (s FeatureSpec) Len() int {
	return 1 + 2*s.FourierOrder + 7 + s.Floors
}

// Vector encodes one observation.
func (s FeatureSpec) Vector(origin int, timeOfDay time.Duration, weekday time.Weekday) *mat.VecDense {
	x := make([]float64, s.Len())
	x[0] = 1
	phase := 2 * math.Pi * float64(timeOfDay%day) / float64(day)
	for k := 1; k <= s.FourierOrder; k++ {
		x[2*k-1] = math.Sin(float64(k) * phase)
		x[2*k] = math.Cos(float64(k) * phase)
	}
	off := 1 + 2*s.FourierOrder
	x[off+(int(weekday)+6)%7] = 1
	off += 7
	if origin >= 1 && origin <= s.Floors {
		x[off+origin-1] = 1
	}
	return mat.NewVecDense(len(x), x)
}
