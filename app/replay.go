package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/liftmpc/config"
	"github.com/kilianp07/liftmpc/core/logger"
	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/motion"
	"github.com/kilianp07/liftmpc/core/plan"
	"github.com/kilianp07/liftmpc/core/prediction"
	"github.com/kilianp07/liftmpc/core/queue"
	"github.com/kilianp07/liftmpc/core/scheduler"
)

// ErrReplayIncomplete is returned when passengers remain after MaxDuration.
var ErrReplayIncomplete = errors.New("replay did not finish")

// ReplayRequest is one recorded passenger. ArrivalS is relative to the file start.
type ReplayRequest struct {
	ID          string  `json:"id" yaml:"id"`
	Origin      int     `json:"origin" yaml:"origin"`
	Destination int     `json:"destination" yaml:"destination"`
	ArrivalS    float64 `json:"arrival_s" yaml:"arrival_s"`
	Load        float64 `json:"load_kg,omitempty" yaml:"load_kg,omitempty"`
}

// ReplayFile is a recorded traffic sample.
type ReplayFile struct {
	Start    time.Time       `json:"start" yaml:"start"`
	Requests []ReplayRequest `json:"requests" yaml:"requests"`
}

// LoadReplay reads a YAML or JSON replay file.
func LoadReplay(path string) (ReplayFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayFile{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeReplay(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeReplay reads a replay file in the given format.
func DecodeReplay(r io.Reader, format string) (ReplayFile, error) {
	var rf ReplayFile
	switch format {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&rf); err != nil {
			return rf, fmt.Errorf("decode replay: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&rf); err != nil {
			return rf, fmt.Errorf("decode replay: %w", err)
		}
	default:
		return rf, fmt.Errorf("unsupported replay format: %s", format)
	}
	if rf.Start.IsZero() {
		rf.Start = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	}
	return rf, nil
}

// ReplayOptions bound a replay run.
type ReplayOptions struct {
	Step        time.Duration // scheduling period and simulation step
	MaxDuration time.Duration // simulated time limit after the last arrival
	Logger      logger.Logger
}

func (o *ReplayOptions) setDefaults() {
	if o.Step <= 0 {
		o.Step = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = time.Hour
	}
	o.Logger = logger.OrNop(o.Logger)
}

// ReplayReport is the outcome of a replay.
type ReplayReport struct {
	Summary  motion.Summary
	Ticks    int
	Deferred int
	Degraded bool
}

// Replay feeds rf through a fresh engine and motion simulator built from
// cfg. Each request becomes visible to the scheduler at its arrival time.
func Replay(ctx context.Context, cfg *config.Config, rf ReplayFile, opts ReplayOptions) (ReplayReport, error) {
	opts.setDefaults()
	if len(cfg.Fleet) == 0 {
		return ReplayReport{}, errors.New("replay: fleet is empty")
	}
	est := plan.NewEstimator(cfg.Building)
	engine, err := scheduler.NewEngine(cfg.Scheduler, est, scheduler.WithLogger(opts.Logger))
	if err != nil {
		return ReplayReport{}, err
	}
	handle := prediction.NewHandle(cfg.Building.Floors)
	if cfg.Prediction.Type != "uniform" {
		p, err := cfg.BuildPredictor()
		if err != nil {
			return ReplayReport{}, fmt.Errorf("replay: %w", err)
		}
		handle.Replace(p)
	}

	fleet := make([]*model.Elevator, 0, len(cfg.Fleet))
	for _, fc := range cfg.Fleet {
		fleet = append(fleet, &model.Elevator{ID: fc.ID, Capacity: fc.Capacity, Position: float64(fc.Floor)})
	}
	sim := motion.NewSimulator(est, fleet, opts.Logger)

	reqs := make([]*model.Request, 0, len(rf.Requests))
	for _, rr := range rf.Requests {
		r := &model.Request{
			ID:          rr.ID,
			Origin:      rr.Origin,
			Destination: rr.Destination,
			Load:        rr.Load,
			ArrivalTime: rf.Start.Add(time.Duration(rr.ArrivalS * float64(time.Second))),
		}
		if err := r.Validate(cfg.Building.Floors); err != nil {
			return ReplayReport{}, fmt.Errorf("replay: %w", err)
		}
		reqs = append(reqs, r)
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].ArrivalTime.Before(reqs[j].ArrivalTime) })

	var rep ReplayReport
	pending := queue.New()
	byID := make(map[string]*model.Request, len(reqs))
	next := 0
	now := rf.Start
	var deadline time.Time
	if len(reqs) > 0 {
		deadline = reqs[len(reqs)-1].ArrivalTime.Add(opts.MaxDuration)
	} else {
		deadline = now
	}

	for next < len(reqs) || pending.Len() > 0 || sim.Busy() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if now.After(deadline) {
			rep.Summary = motion.Summarize(sim.Served(), fleet, cfg.Scheduler.TimeWeight, cfg.Scheduler.EnergyWeight)
			return rep, fmt.Errorf("%w: %d waiting, %d served", ErrReplayIncomplete, pending.Len(), rep.Summary.Served)
		}
		for next < len(reqs) && !reqs[next].ArrivalTime.After(now) {
			r := reqs[next]
			if err := pending.Push(r); err != nil {
				return rep, fmt.Errorf("replay: request %s: %w", r.ID, err)
			}
			byID[r.ID] = r
			next++
		}
		if pending.Len() > 0 {
			res, err := engine.Tick(ctx, scheduler.TickInput{Now: now, Pending: pending, Elevators: fleet, Model: handle.Load()})
			if err != nil {
				return rep, err
			}
			rep.Ticks++
			rep.Deferred += len(res.Deferred)
			rep.Degraded = rep.Degraded || res.Degraded
			for _, a := range res.Assignments {
				sim.Track(byID[a.RequestID])
			}
		}
		if err := sim.Advance(now, opts.Step); err != nil {
			return rep, err
		}
		now = now.Add(opts.Step)
	}
	rep.Summary = motion.Summarize(sim.Served(), fleet, cfg.Scheduler.TimeWeight, cfg.Scheduler.EnergyWeight)
	opts.Logger.Infof("replay finished: %d served in %d ticks", rep.Summary.Served, rep.Ticks)
	return rep, nil
}
