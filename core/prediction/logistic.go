package prediction

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Weights is the exchange format produced by offline training. Each row of
// Coefficients scores the class at the same index of Classes.
type Weights struct {
	Floors       int         `json:"floors"`
	FourierOrder int         `json:"fourier_order"`
	Classes      []int       `json:"classes"`
	Coefficients [][]float64 `json:"coefficients"`
}

// ReadWeights decodes JSON weights from r.
func ReadWeights(r io.Reader) (Weights, error) {
	var w Weights
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	return w, nil
}

// LoadWeights reads JSON weights from path.
func LoadWeights(path string) (Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return Weights{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadWeights(f)
}

// LogisticModel is an immutable multinomial logistic regression over
// destination floors.
type LogisticModel struct {
	spec    FeatureSpec
	classes []int
	w       *mat.Dense
	k       int
}

// NewLogisticModel validates w and builds a model that keeps the k most
// likely destinations.
func NewLogisticModel(w Weights, k int) (*LogisticModel, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", k)
	}
	if w.Floors < 2 {
		return nil, fmt.Errorf("floors must be at least 2, got %d", w.Floors)
	}
	if w.FourierOrder < 0 {
		return nil, fmt.Errorf("negative fourier order")
	}
	if len(w.Classes) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", len(w.Classes))
	}
	if len(w.Coefficients) != len(w.Classes) {
		return nil, fmt.Errorf("coefficient rows %d do not match %d classes", len(w.Coefficients), len(w.Classes))
	}
	spec := FeatureSpec{FourierOrder: w.FourierOrder, Floors: w.Floors}
	n := spec.Len()
	seen := make(map[int]bool, len(w.Classes))
	data := make([]float64, 0, len(w.Classes)*n)
	for i, c := range w.Classes {
		if c < 1 || c > w.Floors {
			return nil, fmt.Errorf("class %d: %w", c, ErrFloorOutOfRange)
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate class %d", c)
		}
		seen[c] = true
		row := w.Coefficients[i]
		if len(row) != n {
			return nil, fmt.Errorf("class %d has %d coefficients, want %d", c, len(row), n)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("class %d has non-finite coefficient", c)
			}
		}
		data = append(data, row...)
	}
	return &LogisticModel{
		spec:    spec,
		classes: append([]int(nil), w.Classes...),
		w:       mat.NewDense(len(w.Classes), n, data),
		k:       k,
	}, nil
}

// Floors returns the number of floors the model was trained for.
func (m *LogisticModel) Floors() int { return m.spec.Floors }

// K returns the Top-K cutoff.
func (m *LogisticModel) K() int { return m.k }

// Predict scores every class, masks the origin, applies a softmax and keeps
// the Top-K destinations.
func (m *LogisticModel) Predict(origin int, timeOfDay time.Duration, weekday time.Weekday) (Distribution, error) {
	if err := checkOrigin(origin, m.spec.Floors); err != nil {
		return nil, err
	}
	x := m.spec.Vector(origin, timeOfDay, weekday)
	var scores mat.VecDense
	scores.MulVec(m.w, x)

	raw := scores.RawVector().Data
	logits := make([]float64, 0, len(raw))
	floorsOut := make([]int, 0, len(raw))
	for i, c := range m.classes {
		if c == origin {
			continue
		}
		logits = append(logits, raw[i])
		floorsOut = append(floorsOut, c)
	}
	if len(logits) == 0 {
		return nil, fmt.Errorf("no destination class besides origin %d", origin)
	}

	floats.AddConst(-floats.Max(logits), logits)
	for i, v := range logits {
		logits[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(logits), logits)

	dist := make(Distribution, len(logits))
	for i, p := range logits {
		dist[i] = Candidate{Floor: floorsOut[i], Probability: p}
	}
	return TopK(dist, m.k), nil
}
