package prediction

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/liftmpc/core/factory"
)

// randomWeights builds a model over every floor with reproducible noise.
func randomWeights(floors, order int, seed int64) Weights {
	r := rand.New(rand.NewSource(seed))
	spec := FeatureSpec{FourierOrder: order, Floors: floors}
	w := Weights{Floors: floors, FourierOrder: order}
	for f := 1; f <= floors; f++ {
		row := make([]float64, spec.Len())
		for i := range row {
			row[i] = r.NormFloat64() * 2
		}
		w.Classes = append(w.Classes, f)
		w.Coefficients = append(w.Coefficients, row)
	}
	return w
}

func TestFeatureVectorLayout(t *testing.T) {
	spec := FeatureSpec{FourierOrder: 2, Floors: 4}
	x := spec.Vector(3, 6*time.Hour, time.Monday)
	require.Equal(t, 1+4+7+4, x.Len())
	assert.Equal(t, 1.0, x.AtVec(0))
	assert.InDelta(t, 1.0, x.AtVec(1), 1e-12)  // sin(π/2)
	assert.InDelta(t, 0.0, x.AtVec(2), 1e-12)  // cos(π/2)
	assert.InDelta(t, 0.0, x.AtVec(3), 1e-12)  // sin(π)
	assert.InDelta(t, -1.0, x.AtVec(4), 1e-12) // cos(π)
	assert.Equal(t, 1.0, x.AtVec(5), "monday is the first weekday slot")
	assert.Equal(t, 1.0, x.AtVec(5+7+2), "origin 3")

	sun := spec.Vector(1, 0, time.Sunday)
	assert.Equal(t, 1.0, sun.AtVec(5+6))
}

func TestLogisticProbabilitiesNormalised(t *testing.T) {
	m, err := NewLogisticModel(randomWeights(12, 3, 7), 3)
	require.NoError(t, err)

	for origin := 1; origin <= 12; origin++ {
		for h := 0; h < 24; h += 5 {
			for wd := time.Sunday; wd <= time.Saturday; wd++ {
				d, err := m.Predict(origin, time.Duration(h)*time.Hour, wd)
				require.NoError(t, err)
				require.Len(t, d, 3)
				assert.InDelta(t, 1.0, d.Sum(), 1e-9)
				for i, c := range d {
					assert.NotEqual(t, origin, c.Floor)
					if i > 0 {
						assert.GreaterOrEqual(t, d[i-1].Probability, c.Probability)
					}
				}
			}
		}
	}
}

func TestLogisticPrefersHeavyClass(t *testing.T) {
	w := randomWeights(5, 1, 1)
	for i := range w.Coefficients {
		for j := range w.Coefficients[i] {
			w.Coefficients[i][j] = 0
		}
	}
	w.Coefficients[3][0] = 5 // floor 4 bias
	m, err := NewLogisticModel(w, 2)
	require.NoError(t, err)

	d, err := m.Predict(1, 0, time.Tuesday)
	require.NoError(t, err)
	assert.Equal(t, 4, d[0].Floor)
	assert.Equal(t, 2, d[1].Floor, "equal scores rank by floor")

	d, err = m.Predict(4, 0, time.Tuesday)
	require.NoError(t, err)
	for _, c := range d {
		assert.NotEqual(t, 4, c.Floor)
	}
}

func TestLogisticErrors(t *testing.T) {
	w := randomWeights(4, 1, 2)
	_, err := NewLogisticModel(w, 0)
	assert.Error(t, err)

	bad := w
	bad.Coefficients = w.Coefficients[:2]
	_, err = NewLogisticModel(bad, 2)
	assert.Error(t, err)

	bad = randomWeights(4, 1, 2)
	bad.Coefficients[0] = bad.Coefficients[0][:3]
	_, err = NewLogisticModel(bad, 2)
	assert.Error(t, err)

	bad = randomWeights(4, 1, 2)
	bad.Classes[1] = 1
	_, err = NewLogisticModel(bad, 2)
	assert.Error(t, err)

	m, err := NewLogisticModel(w, 2)
	require.NoError(t, err)
	_, err = m.Predict(5, 0, time.Monday)
	assert.ErrorIs(t, err, ErrFloorOutOfRange)
}

func TestTopKRenormalises(t *testing.T) {
	d := TopK(Distribution{{Floor: 5, Probability: 0.35}, {Floor: 8, Probability: 0.15}, {Floor: 2, Probability: 0.35}, {Floor: 3, Probability: 0.15}}, 2)
	require.Len(t, d, 2)
	assert.Equal(t, 2, d[0].Floor)
	assert.Equal(t, 5, d[1].Floor)
	assert.InDelta(t, 0.5, d[0].Probability, 1e-12)
	assert.InDelta(t, 1.0, d.Sum(), 1e-12)
}

func TestUniform(t *testing.T) {
	u := Uniform{FloorCount: 10}
	d, err := u.Predict(4, 0, time.Friday)
	require.NoError(t, err)
	assert.Len(t, d, 9)
	assert.InDelta(t, 1.0, d.Sum(), 1e-9)
	for _, c := range d {
		assert.NotEqual(t, 4, c.Floor)
	}
	_, err = u.Predict(0, 0, time.Friday)
	assert.ErrorIs(t, err, ErrFloorOutOfRange)
}

func TestHandleSwap(t *testing.T) {
	h := NewHandle(6)
	s := h.Load()
	assert.True(t, s.Degraded)
	assert.Zero(t, s.Version)
	d, err := s.Predict(1, 0, time.Monday)
	require.NoError(t, err)
	assert.Len(t, d, 5)

	mock := MockPredictor{FloorCount: 6, Default: Distribution{{Floor: 5, Probability: 0.7}, {Floor: 6, Probability: 0.3}}}
	v := h.Replace(mock)
	assert.Equal(t, uint64(1), v)
	s = h.Load()
	assert.False(t, s.Degraded)
	assert.Equal(t, v, s.Version)

	// Snapshots are unaffected by later swaps.
	assert.Equal(t, uint64(2), h.Clear())
	assert.False(t, s.Degraded)
	assert.True(t, h.Load().Degraded)
}

func TestHandleConcurrentReplace(t *testing.T) {
	h := NewHandle(4)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Replace(Uniform{FloorCount: 4})
		}()
		go func() {
			defer wg.Done()
			s := h.Load()
			_, err := s.Predict(2, 0, time.Monday)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), h.Load().Version)
}

func TestMockPredictor(t *testing.T) {
	m := MockPredictor{
		FloorCount:    10,
		Distributions: map[int]Distribution{1: {{Floor: 5, Probability: 0.7}, {Floor: 8, Probability: 0.3}}},
	}
	d, err := m.Predict(1, 0, time.Monday)
	require.NoError(t, err)
	d[0].Probability = 0
	again, _ := m.Predict(1, 0, time.Monday)
	assert.Equal(t, 0.7, again[0].Probability)

	empty, err := m.Predict(2, 0, time.Monday)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRegistry(t *testing.T) {
	p, err := NewPredictor(factory.ModuleConfig{Type: "uniform", Conf: map[string]any{"floors": 8}})
	require.NoError(t, err)
	assert.Equal(t, 8, p.Floors())

	w := randomWeights(5, 2, 3)
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	p, err = NewPredictor(factory.ModuleConfig{Type: "logistic", Conf: map[string]any{"weights_path": path, "top_k": 3}})
	require.NoError(t, err)
	d, err := p.Predict(2, 9*time.Hour, time.Wednesday)
	require.NoError(t, err)
	assert.Len(t, d, 3)

	_, err = NewPredictor(factory.ModuleConfig{Type: "logistic", Conf: map[string]any{"top_k": 3}})
	assert.Error(t, err)
}

func TestAt(t *testing.T) {
	tod, wd := At(time.Date(2024, 3, 6, 13, 30, 0, 0, time.UTC))
	assert.Equal(t, 13*time.Hour+30*time.Minute, tod)
	assert.Equal(t, time.Wednesday, wd)
}
