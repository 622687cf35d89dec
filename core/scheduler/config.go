package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration wraps every configuration validation failure.
var ErrInvalidConfiguration = errors.New("invalid scheduler configuration")

// Config holds the engine tuning knobs.
type Config struct {
	LookaheadWindow   float64 `json:"lookahead_window" yaml:"lookahead_window"` // seconds
	MaxBatch          int     `json:"max_batch" yaml:"max_batch"`
	TimeWeight        float64 `json:"time_weight" yaml:"time_weight"`
	EnergyWeight      float64 `json:"energy_weight" yaml:"energy_weight"`
	IdlePenaltyWeight float64 `json:"idle_penalty_weight" yaml:"idle_penalty_weight"`
	TieBreakEpsilon   float64 `json:"tie_break_epsilon" yaml:"tie_break_epsilon"`
	TieBreakRelative  float64 `json:"tie_break_relative" yaml:"tie_break_relative"`
	TopK              int     `json:"top_k" yaml:"top_k"`
	Workers           int     `json:"workers" yaml:"workers"`
	TickTimeoutMS     int     `json:"tick_timeout_ms" yaml:"tick_timeout_ms"`
	// StandbyPowerW overrides the building's standby draw when pricing idle
	// time. Nil uses the building value.
	StandbyPowerW *float64 `json:"standby_power_w,omitempty" yaml:"standby_power_w,omitempty"`
}

// DefaultConfig returns the settings used when a key is absent.
func DefaultConfig() Config {
	return Config{
		LookaheadWindow:   240,
		MaxBatch:          8,
		TimeWeight:        1,
		EnergyWeight:      1e-4,
		IdlePenaltyWeight: 5,
		TieBreakEpsilon:   1e-9,
		TopK:              3,
		Workers:           4,
		TickTimeoutMS:     200,
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}
	if c.MaxBatch <= 0 {
		return fail("max_batch must be positive, got %d", c.MaxBatch)
	}
	if c.TopK <= 0 {
		return fail("top_k must be positive, got %d", c.TopK)
	}
	type field struct {
		name string
		v    float64
	}
	nonNegative := []field{
		{"lookahead_window", c.LookaheadWindow},
		{"time_weight", c.TimeWeight},
		{"energy_weight", c.EnergyWeight},
		{"idle_penalty_weight", c.IdlePenaltyWeight},
		{"tie_break_epsilon", c.TieBreakEpsilon},
		{"tie_break_relative", c.TieBreakRelative},
	}
	if c.StandbyPowerW != nil {
		nonNegative = append(nonNegative, field{"standby_power_w", *c.StandbyPowerW})
	}
	for _, f := range nonNegative {
		if f.v < 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fail("%s must be a non-negative number, got %v", f.name, f.v)
		}
	}
	if c.Workers < 0 {
		return fail("workers must not be negative")
	}
	if c.TickTimeoutMS < 0 {
		return fail("tick_timeout_ms must not be negative")
	}
	return nil
}

// StandbyPower returns the override when set, otherwise building.
func (c Config) StandbyPower(building float64) float64 {
	if c.StandbyPowerW != nil {
		return *c.StandbyPowerW
	}
	return building
}

// Lookahead returns the window length.
func (c Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadWindow * float64(time.Second))
}

// TickTimeout returns the evaluation deadline, zero when disabled.
func (c Config) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutMS) * time.Millisecond
}

// LoadConfig loads a Config from a JSON or YAML file. Absent keys keep their
// defaults; the result is validated.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeConfig(f, ext)
}

// DecodeConfig reads a Config in the given format from r and validates it.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	return cfg, cfg.Validate()
}
