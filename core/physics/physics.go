// Package physics models the motion, energy and door dwell of a traction
// elevator. All functions are pure; distances are expressed in floors and
// converted with Params.FloorHeight.
package physics

import (
	"fmt"
	"math"
	"time"
)

const gravity = 9.81

// Params describes the car, drive and landing characteristics.
type Params struct {
	Floors      int     `json:"floors"`
	FloorHeight float64 `json:"floor_height_m"`
	RatedLoad   float64 `json:"rated_load_kg"`

	MaxSpeedUpEmpty   float64 `json:"max_speed_up_empty"`
	MaxSpeedUpFull    float64 `json:"max_speed_up_full"`
	MaxSpeedDownEmpty float64 `json:"max_speed_down_empty"`
	MaxSpeedDownFull  float64 `json:"max_speed_down_full"`
	SpeedDecayRate    float64 `json:"speed_decay_rate"`
	AccEmpty          float64 `json:"acc_empty"`
	AccFull           float64 `json:"acc_full"`
	DecEmpty          float64 `json:"dec_empty"`
	DecFull           float64 `json:"dec_full"`
	AccDecayRate      float64 `json:"acc_decay_rate"`

	CarMass           float64 `json:"car_mass_kg"`
	CounterweightMass float64 `json:"counterweight_mass_kg"`
	FrictionPerMeter  float64 `json:"friction_per_meter_j"`
	MotorEfficiency   float64 `json:"motor_efficiency"`
	StandbyPower      float64 `json:"standby_power_w"`

	HoldBaseTime        float64 `json:"hold_base_s"`
	HoldPerKg           float64 `json:"hold_per_kg_s"`
	HoldCongestedPerKg  float64 `json:"hold_congested_per_kg_s"`
	HoldCongestionLimit float64 `json:"hold_congestion_kg"`
}

// Default returns parameters of a 15 floor residential tower.
func Default() Params {
	return Params{
		Floors:              15,
		FloorHeight:         3.5,
		RatedLoad:           1000,
		MaxSpeedUpEmpty:     2.5,
		MaxSpeedUpFull:      2.0,
		MaxSpeedDownEmpty:   2.5,
		MaxSpeedDownFull:    2.2,
		SpeedDecayRate:      1.2,
		AccEmpty:            1.0,
		AccFull:             0.8,
		DecEmpty:            1.0,
		DecFull:             0.8,
		AccDecayRate:        1.2,
		CarMass:             1200,
		CounterweightMass:   1600,
		FrictionPerMeter:    180,
		MotorEfficiency:     0.85,
		StandbyPower:        250,
		HoldBaseTime:        3,
		HoldPerKg:           0.015,
		HoldCongestedPerKg:  0.035,
		HoldCongestionLimit: 450,
	}
}

// SetDefaults fills zero values with Default.
func (p *Params) SetDefaults() {
	d := Default()
	set := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	if p.Floors == 0 {
		p.Floors = d.Floors
	}
	set(&p.FloorHeight, d.FloorHeight)
	set(&p.RatedLoad, d.RatedLoad)
	set(&p.MaxSpeedUpEmpty, d.MaxSpeedUpEmpty)
	set(&p.MaxSpeedUpFull, d.MaxSpeedUpFull)
	set(&p.MaxSpeedDownEmpty, d.MaxSpeedDownEmpty)
	set(&p.MaxSpeedDownFull, d.MaxSpeedDownFull)
	set(&p.SpeedDecayRate, d.SpeedDecayRate)
	set(&p.AccEmpty, d.AccEmpty)
	set(&p.AccFull, d.AccFull)
	set(&p.DecEmpty, d.DecEmpty)
	set(&p.DecFull, d.DecFull)
	set(&p.AccDecayRate, d.AccDecayRate)
	set(&p.CarMass, d.CarMass)
	set(&p.CounterweightMass, d.CounterweightMass)
	set(&p.FrictionPerMeter, d.FrictionPerMeter)
	set(&p.MotorEfficiency, d.MotorEfficiency)
	set(&p.StandbyPower, d.StandbyPower)
	set(&p.HoldBaseTime, d.HoldBaseTime)
	set(&p.HoldPerKg, d.HoldPerKg)
	set(&p.HoldCongestedPerKg, d.HoldCongestedPerKg)
	set(&p.HoldCongestionLimit, d.HoldCongestionLimit)
}

// Validate checks physical plausibility.
func (p Params) Validate() error {
	if p.Floors < 2 {
		return fmt.Errorf("floors must be at least 2")
	}
	positive := map[string]float64{
		"floor_height_m":       p.FloorHeight,
		"rated_load_kg":        p.RatedLoad,
		"max_speed_up_empty":   p.MaxSpeedUpEmpty,
		"max_speed_up_full":    p.MaxSpeedUpFull,
		"max_speed_down_empty": p.MaxSpeedDownEmpty,
		"max_speed_down_full":  p.MaxSpeedDownFull,
		"acc_empty":            p.AccEmpty,
		"acc_full":             p.AccFull,
		"dec_empty":            p.DecEmpty,
		"dec_full":             p.DecFull,
		"motor_efficiency":     p.MotorEfficiency,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if p.MotorEfficiency > 1 {
		return fmt.Errorf("motor_efficiency must not exceed 1")
	}
	if p.StandbyPower < 0 || p.FrictionPerMeter < 0 || p.HoldBaseTime < 0 {
		return fmt.Errorf("standby power, friction and hold time must not be negative")
	}
	return nil
}

// decay blends the full-load and empty-car value of a quantity.
func (p Params) decay(full, empty, rate, load float64) float64 {
	return full + (empty-full)*math.Exp(-rate*load/p.RatedLoad)
}

// MaxSpeed returns the load-dependent top speed in m/s.
func (p Params) MaxSpeed(load float64, up bool) float64 {
	if up {
		return p.decay(p.MaxSpeedUpFull, p.MaxSpeedUpEmpty, p.SpeedDecayRate, load)
	}
	return p.decay(p.MaxSpeedDownFull, p.MaxSpeedDownEmpty, p.SpeedDecayRate, load)
}

// Acceleration returns the load-dependent acceleration in m/s².
func (p Params) Acceleration(load float64) float64 {
	return p.decay(p.AccFull, p.AccEmpty, p.AccDecayRate, load)
}

// Deceleration returns the load-dependent deceleration in m/s².
func (p Params) Deceleration(load float64) float64 {
	return p.decay(p.DecFull, p.DecEmpty, p.AccDecayRate, load)
}

// Distance converts a floor span into metres.
func (p Params) Distance(from, to float64) float64 {
	return math.Abs(to-from) * p.FloorHeight
}

// TravelTime returns the run time between two positions using a triangular
// profile for short hops and a trapezoidal one once top speed is reached.
func (p Params) TravelTime(load, from, to float64) time.Duration {
	d := p.Distance(from, to)
	if d == 0 {
		return 0
	}
	vmax := p.MaxSpeed(load, to > from)
	a, b := p.Acceleration(load), p.Deceleration(load)

	vPeak := math.Sqrt(2 * d * a * b / (a + b))
	var secs float64
	if vPeak <= vmax {
		secs = vPeak * (1/a + 1/b)
	} else {
		dAcc := vmax * vmax / (2 * a)
		dDec := vmax * vmax / (2 * b)
		cruise := math.Max(d-dAcc-dDec, 0)
		secs = vmax/a + vmax/b + cruise/vmax
	}
	return seconds(secs)
}

// SegmentEnergy returns the drive energy in joules for one run. Potential
// energy follows the imbalance between car plus load and counterweight; the
// friction term grows with the distance travelled. Regeneration is ignored so
// the result is never negative.
func (p Params) SegmentEnergy(load, from, to float64) float64 {
	d := p.Distance(from, to)
	if d == 0 {
		return 0
	}
	imbalance := p.CarMass + load - p.CounterweightMass
	sign := 1.0
	if to < from {
		sign = -1
	}
	e := sign*gravity*imbalance*d + p.FrictionPerMeter*d
	return math.Max(e, 0) / p.MotorEfficiency
}

// StandbyEnergy returns the energy drawn by lighting, ventilation and
// controller while the car is in service for d.
func (p Params) StandbyEnergy(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return p.StandbyPower * d.Seconds()
}

// HoldTime returns the door dwell for the given boarding and alighting mass.
// Beyond the congestion limit each extra kilogram takes longer to clear.
func (p Params) HoldTime(boarding, alighting float64) time.Duration {
	total := boarding + alighting
	if total <= p.HoldCongestionLimit {
		return seconds(p.HoldBaseTime + p.HoldPerKg*total)
	}
	normal := p.HoldPerKg * p.HoldCongestionLimit
	congested := p.HoldCongestedPerKg * (total - p.HoldCongestionLimit)
	return seconds(p.HoldBaseTime + normal + congested)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
