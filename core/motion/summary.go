package motion

import (
	"time"

	"github.com/kilianp07/liftmpc/core/model"
)

// Summary is the passenger objective of a finished run.
type Summary struct {
	Served             int
	TotalPassengerTime time.Duration
	AvgPassengerTime   time.Duration
	TotalWait          time.Duration
	TotalInCab         time.Duration
	Energy             float64 // J, whole fleet including standby
	IdleTime           time.Duration
	Objective          float64
}

// Summarize scores delivered requests and fleet energy. The objective is
// timeWeight·passenger_seconds + energyWeight·joules.
func Summarize(served []*model.Request, fleet []*model.Elevator, timeWeight, energyWeight float64) Summary {
	var s Summary
	for _, r := range served {
		if r.Status != model.StatusCompleted {
			continue
		}
		s.Served++
		wait := r.WaitTime()
		journey := r.JourneyTime()
		s.TotalWait += wait
		s.TotalInCab += journey - wait
		s.TotalPassengerTime += journey
	}
	if s.Served > 0 {
		s.AvgPassengerTime = s.TotalPassengerTime / time.Duration(s.Served)
	}
	for _, e := range fleet {
		s.Energy += e.Energy
		s.IdleTime += e.IdleTime
	}
	s.Objective = timeWeight*s.TotalPassengerTime.Seconds() + energyWeight*s.Energy
	return s
}
