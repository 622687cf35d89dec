package prediction

import (
	"sync/atomic"
	"time"
)

type loaded struct {
	p       Predictor
	version uint64
}

// Handle owns the current predictor. Replace swaps the whole model in a single
// pointer store; readers see either the old or the new model, never a mix.
type Handle struct {
	floors int
	cur    atomic.Pointer[loaded]
}

// NewHandle returns an empty handle for a building with floors landings.
func NewHandle(floors int) *Handle {
	h := &Handle{floors: floors}
	h.cur.Store(&loaded{})
	return h
}

// Snapshot is the predictor a tick works with.
type Snapshot struct {
	Predictor Predictor
	Version   uint64
	Degraded  bool
}

// Predict delegates to the captured predictor.
func (s Snapshot) Predict(origin int, timeOfDay time.Duration, weekday time.Weekday) (Distribution, error) {
	return s.Predictor.Predict(origin, timeOfDay, weekday)
}

// Load captures the current predictor. Without a model the snapshot is
// degraded and predicts uniformly.
func (h *Handle) Load() Snapshot {
	cur := h.cur.Load()
	if cur.p == nil {
		return Snapshot{Predictor: Uniform{FloorCount: h.floors}, Version: cur.version, Degraded: true}
	}
	return Snapshot{Predictor: cur.p, Version: cur.version}
}

// Replace installs p and returns the new version.
func (h *Handle) Replace(p Predictor) uint64 {
	for {
		old := h.cur.Load()
		next := &loaded{p: p, version: old.version + 1}
		if h.cur.CompareAndSwap(old, next) {
			return next.version
		}
	}
}

// Clear unloads the model, putting the handle in degraded mode.
func (h *Handle) Clear() uint64 {
	return h.Replace(nil)
}

// Floors returns the building size the handle was created for.
func (h *Handle) Floors() int { return h.floors }
