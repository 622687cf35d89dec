package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/liftmpc/core/cost"
	"github.com/kilianp07/liftmpc/core/decisionlog"
	"github.com/kilianp07/liftmpc/core/events"
	"github.com/kilianp07/liftmpc/core/logger"
	"github.com/kilianp07/liftmpc/core/model"
	"github.com/kilianp07/liftmpc/core/plan"
	"github.com/kilianp07/liftmpc/core/prediction"
	"github.com/kilianp07/liftmpc/core/queue"
	"github.com/kilianp07/liftmpc/internal/eventbus"
)

// ErrTickInProgress is returned when Tick is called while another tick runs.
var ErrTickInProgress = errors.New("tick already in progress")

const (
	reasonNoCapacity = "no elevator with spare capacity"
	reasonUnroutable = "no routable destination"
	reasonPredict    = "destination prediction failed"
)

// TickInput is the state a tick reads. Elevators are ground truth and are
// mutated in place by commits; Pending loses every assigned request.
type TickInput struct {
	Now       time.Time
	Pending   *queue.Pending
	Elevators []*model.Elevator
	Model     prediction.Snapshot
}

// Quote is the price one elevator offered for a request.
type Quote struct {
	ElevatorID string
	Cost       float64
	Feasible   bool
}

// Assignment is a committed request.
type Assignment struct {
	RequestID  string
	ElevatorID string
	Origin     int
	Cost       float64
	TieBroken  bool
	Quotes     []Quote
	Detail     cost.Result
}

// Deferral is a candidate left pending.
type Deferral struct {
	RequestID string
	Reason    string
	Quotes    []Quote
}

// TickResult reports what a tick did.
type TickResult struct {
	TickID       string
	Now          time.Time
	Candidates   []string
	Assignments  []Assignment
	Deferred     []Deferral
	Degraded     bool
	TimedOut     bool
	ModelVersion uint64
	Duration     time.Duration
}

// Engine is the assignment engine. It is not reentrant; the tie-break pointer
// lives here so independent engines never interfere.
type Engine struct {
	cfg       Config
	eval      cost.Evaluator
	floors    int
	ties      tieBreaker
	busy      atomic.Bool
	log       logger.Logger
	bus       *eventbus.Bus[events.Event]
	decisions decisionlog.Store

	// beforeEval runs ahead of each parallel evaluation; tests use it to
	// stall pricing past the tick timeout.
	beforeEval func(context.Context)
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.log = logger.OrNop(l) }
}

// WithEventBus publishes tick, assignment and deferral events on bus.
func WithEventBus(bus *eventbus.Bus[events.Event]) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

// WithDecisionLog appends one record per decision to store.
func WithDecisionLog(store decisionlog.Store) EngineOption {
	return func(e *Engine) { e.decisions = store }
}

// NewEngine validates cfg and returns an engine whose tie-break pointer starts
// at elevator 0.
func NewEngine(cfg Config, est plan.Estimator, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := est.Physics.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	e := &Engine{
		cfg: cfg,
		eval: cost.Evaluator{
			Estimator: est,
			Weights: cost.Weights{
				Time:        cfg.TimeWeight,
				Energy:      cfg.EnergyWeight,
				IdlePenalty: cfg.IdlePenaltyWeight,
			},
			StandbyPower: cfg.StandbyPower(est.Physics.StandbyPower),
			TieBias:      cost.DefaultTieBias,
		},
		floors: est.Physics.Floors,
		ties:   tieBreaker{epsAbs: cfg.TieBreakEpsilon, epsRel: cfg.TieBreakRelative},
		log:    logger.Nop{},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Pointer returns the tie-break pointer. Only meaningful between ticks.
func (e *Engine) Pointer() int { return e.ties.pointer }

func validateFleet(fleet []*model.Elevator) error {
	seen := make(map[string]bool, len(fleet))
	for _, car := range fleet {
		if err := car.Validate(); err != nil {
			return err
		}
		if seen[car.ID] {
			return fmt.Errorf("%w: duplicate id %s", model.ErrInvalidElevator, car.ID)
		}
		seen[car.ID] = true
	}
	return nil
}

// Tick runs one scheduling round. Malformed elevators abort the tick before
// any mutation. Cancelling ctx aborts the tick; when only the configured
// tick timeout expires, pricing is redone with the uniform predictor.
func (e *Engine) Tick(ctx context.Context, in TickInput) (TickResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return TickResult{}, ErrTickInProgress
	}
	defer e.busy.Store(false)
	start := time.Now()

	if in.Pending == nil {
		return TickResult{}, errors.New("tick: nil pending queue")
	}
	if err := validateFleet(in.Elevators); err != nil {
		return TickResult{}, fmt.Errorf("tick: %w", err)
	}

	snap := in.Model
	if snap.Predictor == nil {
		snap = prediction.Snapshot{Predictor: prediction.Uniform{FloorCount: e.floors}, Version: snap.Version, Degraded: true}
	}
	res := TickResult{TickID: uuid.NewString(), Now: in.Now, Degraded: snap.Degraded, ModelVersion: snap.Version}

	window := SelectWindow(in.Pending.List(), in.Now, e.cfg.Lookahead(), e.cfg.MaxBatch)
	windowSize.Set(float64(len(window)))
	for _, r := range window {
		res.Candidates = append(res.Candidates, r.ID)
	}
	if len(window) == 0 {
		e.finish(&res, start)
		return res, nil
	}

	cells, perr, err := e.price(ctx, window, in.Elevators, snap, in.Now, &res)
	if err != nil {
		return TickResult{}, err
	}
	e.commit(window, in, cells, perr, &res)
	e.finish(&res, start)
	return res, nil
}

type priced struct {
	res cost.Result
	ok  bool
}

// predict asks the model for every candidate's destinations. A candidate the
// model cannot answer for is priced with the uniform distribution instead, and
// the second return value reports that the tick ran partly degraded. Only a
// request even the uniform predictor rejects is left without a distribution.
func (e *Engine) predict(snap prediction.Snapshot, window []*model.Request) ([]prediction.Distribution, bool, []error) {
	dists := make([]prediction.Distribution, len(window))
	errs := make([]error, len(window))
	uniform := prediction.Uniform{FloorCount: e.floors}
	fellBack := false
	for i, r := range window {
		tod, wd := prediction.At(r.ArrivalTime)
		d, err := snap.Predict(r.Origin, tod, wd)
		if err == nil && !snap.Degraded {
			d = prediction.TopK(d, e.cfg.TopK)
		}
		if err != nil && !snap.Degraded {
			e.log.Warnf("predict destination of %s: %v, using uniform destinations", r.ID, err)
			d, err = uniform.Predict(r.Origin, tod, wd)
			fellBack = true
		}
		if err != nil {
			errs[i] = err
			e.log.Warnf("predict destination of %s: %v", r.ID, err)
			continue
		}
		dists[i] = d
	}
	return dists, fellBack, errs
}

// price evaluates every pair against the tick-start state. Evaluation never
// mutates shared state; each goroutine owns one cell of the table.
func (e *Engine) price(ctx context.Context, window []*model.Request, fleet []*model.Elevator, snap prediction.Snapshot, now time.Time, res *TickResult) ([][]priced, []error, error) {
	dists, fellBack, perr := e.predict(snap, window)
	if fellBack {
		res.Degraded = true
	}

	evalCtx := ctx
	if t := e.cfg.TickTimeout(); t > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	cells, err := e.evaluateParallel(evalCtx, window, fleet, dists, now)
	if err == nil {
		return cells, perr, nil
	}
	if ctx.Err() != nil {
		return nil, nil, fmt.Errorf("tick: %w", ctx.Err())
	}

	e.log.Warnf("tick %s: evaluation exceeded %s, falling back to uniform destinations", res.TickID, e.cfg.TickTimeout())
	res.TimedOut = true
	res.Degraded = true
	uniform := prediction.Snapshot{Predictor: prediction.Uniform{FloorCount: e.floors}, Version: snap.Version, Degraded: true}
	dists, _, perr = e.predict(uniform, window)
	return e.evaluateSerial(window, fleet, dists, now), perr, nil
}

func newTable(rows, cols int) [][]priced {
	cells := make([][]priced, rows)
	for i := range cells {
		cells[i] = make([]priced, cols)
	}
	return cells
}

func (e *Engine) evaluateParallel(ctx context.Context, window []*model.Request, fleet []*model.Elevator, dists []prediction.Distribution, now time.Time) ([][]priced, error) {
	cells := newTable(len(window), len(fleet))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Workers > 0 {
		g.SetLimit(e.cfg.Workers)
	}
	for ci := range window {
		if dists[ci] == nil {
			continue
		}
		for ei := range fleet {
			ci, ei := ci, ei
			g.Go(func() error {
				if e.beforeEval != nil {
					e.beforeEval(gctx)
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				r, ok := e.eval.Evaluate(window[ci], fleet[ei], dists[ci], now)
				cells[ci][ei] = priced{res: r, ok: ok}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cells, nil
}

func (e *Engine) evaluateSerial(window []*model.Request, fleet []*model.Elevator, dists []prediction.Distribution, now time.Time) [][]priced {
	cells := newTable(len(window), len(fleet))
	for ci := range window {
		if dists[ci] == nil {
			continue
		}
		for ei := range fleet {
			r, ok := e.eval.Evaluate(window[ci], fleet[ei], dists[ci], now)
			cells[ci][ei] = priced{res: r, ok: ok}
		}
	}
	return cells
}

// commit walks candidates in window order. Capacity is checked against the
// fleet as already modified by earlier commits of this tick.
func (e *Engine) commit(window []*model.Request, in TickInput, cells [][]priced, perr []error, res *TickResult) {
	n := len(in.Elevators)
	costs := make([]float64, n)
	feasible := make([]bool, n)
	for ci, req := range window {
		if perr[ci] != nil {
			res.Deferred = append(res.Deferred, Deferral{RequestID: req.ID, Reason: reasonPredict})
			continue
		}
		quotes := make([]Quote, n)
		routable := false
		for ei, car := range in.Elevators {
			c := cells[ci][ei]
			routable = routable || c.ok
			feasible[ei] = c.ok && car.HasCapacity()
			costs[ei] = c.res.Expected
			quotes[ei] = Quote{ElevatorID: car.ID, Feasible: feasible[ei]}
			if c.ok {
				quotes[ei].Cost = c.res.Expected
			}
		}

		idx, tie := e.ties.choose(costs, feasible)
		if idx < 0 {
			reason := reasonNoCapacity
			if !routable {
				reason = reasonUnroutable
			}
			res.Deferred = append(res.Deferred, Deferral{RequestID: req.ID, Reason: reason, Quotes: quotes})
			continue
		}
		car := in.Elevators[idx]
		if _, ok := e.eval.Estimator.CommitPickup(car, req, in.Now); !ok {
			res.Deferred = append(res.Deferred, Deferral{RequestID: req.ID, Reason: reasonUnroutable, Quotes: quotes})
			continue
		}
		req.Status = model.StatusAssigned
		req.ElevatorID = car.ID
		in.Pending.Remove(req.ID)

		res.Assignments = append(res.Assignments, Assignment{
			RequestID:  req.ID,
			ElevatorID: car.ID,
			Origin:     req.Origin,
			Cost:       costs[idx],
			TieBroken:  tie,
			Quotes:     quotes,
			Detail:     cells[ci][idx].res,
		})
		e.log.Debugw("request assigned", map[string]any{
			"tick_id":     res.TickID,
			"request_id":  req.ID,
			"elevator_id": car.ID,
			"cost":        costs[idx],
			"tie_broken":  tie,
		})
	}
}

func (e *Engine) finish(res *TickResult, start time.Time) {
	res.Duration = time.Since(start)
	tickDuration.Observe(res.Duration.Seconds())
	if res.Degraded {
		degradedTicks.Inc()
	}
	deferredTotal.Add(float64(len(res.Deferred)))
	for _, a := range res.Assignments {
		assignmentsTotal.WithLabelValues(a.ElevatorID).Inc()
		if a.TieBroken {
			tieBreaksTotal.Inc()
		}
	}
	e.publish(res)
	e.record(res)
}

func (e *Engine) publish(res *TickResult) {
	if e.bus == nil {
		return
	}
	for _, a := range res.Assignments {
		e.bus.Publish(events.AssignmentEvent{
			TickID:     res.TickID,
			RequestID:  a.RequestID,
			ElevatorID: a.ElevatorID,
			Origin:     a.Origin,
			Cost:       a.Cost,
			Journey:    a.Detail.Journey,
			Energy:     a.Detail.Energy,
			TieBroken:  a.TieBroken,
			At:         res.Now,
		})
	}
	for _, d := range res.Deferred {
		e.bus.Publish(events.DeferredEvent{TickID: res.TickID, RequestID: d.RequestID, Reason: d.Reason})
	}
	e.bus.Publish(events.TickEvent{
		TickID:       res.TickID,
		At:           res.Now,
		Candidates:   len(res.Candidates),
		Assigned:     len(res.Assignments),
		Deferred:     len(res.Deferred),
		Degraded:     res.Degraded,
		ModelVersion: res.ModelVersion,
		Duration:     res.Duration,
	})
}

func toOptions(quotes []Quote) []decisionlog.Option {
	out := make([]decisionlog.Option, len(quotes))
	for i, q := range quotes {
		out[i] = decisionlog.Option{ElevatorID: q.ElevatorID, Cost: q.Cost, Feasible: q.Feasible}
	}
	return out
}

func (e *Engine) record(res *TickResult) {
	if e.decisions == nil {
		return
	}
	ctx := context.Background()
	base := decisionlog.Record{Timestamp: res.Now, TickID: res.TickID, ModelVersion: res.ModelVersion, Degraded: res.Degraded}
	for _, a := range res.Assignments {
		rec := base
		rec.RequestID = a.RequestID
		rec.ElevatorID = a.ElevatorID
		rec.Origin = a.Origin
		rec.Cost = a.Cost
		rec.TieBroken = a.TieBroken
		rec.Options = toOptions(a.Quotes)
		if err := e.decisions.Append(ctx, rec); err != nil {
			e.log.Warnf("decision log: %v", err)
			return
		}
	}
	for _, d := range res.Deferred {
		rec := base
		rec.RequestID = d.RequestID
		rec.Deferred = true
		rec.Reason = d.Reason
		rec.Options = toOptions(d.Quotes)
		if err := e.decisions.Append(ctx, rec); err != nil {
			e.log.Warnf("decision log: %v", err)
			return
		}
	}
}
