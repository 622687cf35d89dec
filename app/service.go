package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/liftmpc/config"
	"github.com/kilianp07/liftmpc/core/decisionlog"
	"github.com/kilianp07/liftmpc/core/events"
	coremetrics "github.com/kilianp07/liftmpc/core/metrics"
	"github.com/kilianp07/liftmpc/core/model"
	coremon "github.com/kilianp07/liftmpc/core/monitoring"
	coremqtt "github.com/kilianp07/liftmpc/core/mqtt"
	"github.com/kilianp07/liftmpc/core/plan"
	"github.com/kilianp07/liftmpc/core/prediction"
	"github.com/kilianp07/liftmpc/core/queue"
	"github.com/kilianp07/liftmpc/core/scheduler"
	"github.com/kilianp07/liftmpc/infra/logger"
	"github.com/kilianp07/liftmpc/infra/metrics"
	"github.com/kilianp07/liftmpc/infra/mqtt"
	"github.com/kilianp07/liftmpc/internal/eventbus"
)

// Connector opens the controller link with the service's inbound handlers.
type Connector func(coremqtt.Handlers) (coremqtt.Client, error)

// PahoConnector connects to the configured broker.
func PahoConnector(cfg mqtt.Config) Connector {
	return func(h coremqtt.Handlers) (coremqtt.Client, error) {
		c, err := mqtt.NewPahoClient(cfg, h)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// MockConnector returns client regardless of handlers. Used when no broker
// is configured and in tests.
func MockConnector(client coremqtt.Client) Connector {
	return func(coremqtt.Handlers) (coremqtt.Client, error) { return client, nil }
}

type ackResult struct {
	requestID string
	accepted  bool
	err       error
}

// Service owns the scheduling loop. Transport callbacks only push into the
// inbox channels; everything else runs on the loop goroutine.
type Service struct {
	cfg     *config.Config
	engine  *scheduler.Engine
	est     plan.Estimator
	model   *prediction.Handle
	pending *queue.Pending
	fleet   []*model.Elevator
	// lastAssigned guards against car reports that predate our last command.
	lastAssigned map[string]time.Time
	inflight     map[string]*model.Request

	client coremqtt.Client
	bus    *eventbus.Bus[events.Event]
	sink   coremetrics.MetricsSink
	store  decisionlog.Store
	log    logger.Logger
	now    func() time.Time

	calls   chan coremqtt.HallCall
	states  chan coremqtt.CarState
	weights chan []byte
	acks    chan ackResult

	degraded  bool
	wg        sync.WaitGroup
	stop      chan struct{}
	closeOnce sync.Once
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSink overrides the metrics sink built from configuration.
func WithSink(sink coremetrics.MetricsSink) Option {
	return func(s *Service) { s.sink = sink }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, connect Connector, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New("service")
	s := &Service{
		cfg:          cfg,
		est:          plan.NewEstimator(cfg.Building),
		model:        prediction.NewHandle(cfg.Building.Floors),
		pending:      queue.New(),
		lastAssigned: make(map[string]time.Time),
		inflight:     make(map[string]*model.Request),
		bus:          eventbus.New[events.Event](),
		log:          log,
		now:          time.Now,
		calls:        make(chan coremqtt.HallCall, cfg.Service.InboxSize),
		states:       make(chan coremqtt.CarState, cfg.Service.InboxSize),
		weights:      make(chan []byte, 4),
		acks:         make(chan ackResult, cfg.Service.InboxSize),
		stop:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	for _, fc := range cfg.Fleet {
		s.fleet = append(s.fleet, &model.Elevator{ID: fc.ID, Capacity: fc.Capacity, Position: float64(fc.Floor)})
	}

	if s.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		s.sink = sink
	}
	store, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}
	s.store = store

	engineOpts := []scheduler.EngineOption{
		scheduler.WithLogger(logger.New("scheduler")),
		scheduler.WithEventBus(s.bus),
	}
	if store != nil {
		engineOpts = append(engineOpts, scheduler.WithDecisionLog(store))
	}
	s.engine, err = scheduler.NewEngine(cfg.Scheduler, s.est, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	if cfg.Prediction.Type != "uniform" {
		p, err := cfg.BuildPredictor()
		if err != nil {
			return nil, fmt.Errorf("destination model: %w", err)
		}
		s.model.Replace(p)
	}
	s.degraded = s.model.Load().Degraded

	client, err := connect(coremqtt.Handlers{
		OnHallCall: s.enqueueCall,
		OnCarState: s.enqueueState,
		OnWeights:  s.enqueueWeights,
	})
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *Service) enqueueCall(h coremqtt.HallCall) {
	select {
	case s.calls <- h:
	default:
		s.log.Warnf("hall call inbox full, dropping call at floor %d", h.Floor)
	}
}

func (s *Service) enqueueState(c coremqtt.CarState) {
	select {
	case s.states <- c:
	default:
		s.log.Warnf("car state inbox full, dropping report from %s", c.ElevatorID)
	}
}

func (s *Service) enqueueWeights(b []byte) {
	select {
	case s.weights <- b:
	default:
		s.log.Warnf("model inbox full, dropping weights update")
	}
}

// Bus exposes the scheduling event bus.
func (s *Service) Bus() *eventbus.Bus[events.Event] { return s.bus }

// Fleet returns the current elevator records.
func (s *Service) Fleet() []*model.Elevator { return s.fleet }

// Pending returns the pending queue.
func (s *Service) Pending() *queue.Pending { return s.pending }

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	collectorDone := metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.cfg.Metrics.PromEnabled() {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	interval := s.cfg.Service.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Infof("scheduling every %s with %d elevators", interval, len(s.fleet))
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			<-collectorDone
			return nil
		case <-ticker.C:
			err := coremon.Guard(map[string]string{"module": "service"}, func() error {
				_, err := s.Step(ctx)
				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Errorf("tick failed: %v", err)
			}
		}
	}
}

// Step drains the inboxes and runs one scheduling tick.
func (s *Service) Step(ctx context.Context) (scheduler.TickResult, error) {
	now := s.now()
	s.drain(now)

	snap := s.model.Load()
	if snap.Degraded != s.degraded {
		if snap.Degraded {
			s.log.Warnf("destination model unavailable, predicting uniformly")
		} else {
			s.log.Infof("destination model v%d active", snap.Version)
		}
		s.degraded = snap.Degraded
	}

	res, err := s.engine.Tick(ctx, scheduler.TickInput{
		Now:       now,
		Pending:   s.pending,
		Elevators: s.fleet,
		Model:     snap,
	})
	if err != nil {
		return res, err
	}
	s.dispatch(ctx, res)
	s.recordFleet(now)
	return res, nil
}

func (s *Service) drain(now time.Time) {
	for {
		select {
		case h := <-s.calls:
			s.addCall(h, now)
		case st := <-s.states:
			s.applyState(st)
		case b := <-s.weights:
			s.swapModel(b)
		case a := <-s.acks:
			s.handleAck(a)
		default:
			return
		}
	}
}

func (s *Service) addCall(h coremqtt.HallCall, now time.Time) {
	r := h.Request(now)
	if err := r.Validate(s.cfg.Building.Floors); err != nil {
		s.log.Warnf("rejecting hall call: %v", err)
		return
	}
	if err := s.pending.Push(r); err != nil {
		s.log.Debugf("hall call %s: %v", r.ID, err)
	}
}

func (s *Service) applyState(st coremqtt.CarState) {
	e, err := st.Elevator()
	if err != nil {
		s.log.Warnf("ignoring car state: %v", err)
		return
	}
	if st.Timestamp > 0 {
		if last, ok := s.lastAssigned[e.ID]; ok && time.UnixMilli(st.Timestamp).Before(last) {
			s.log.Debugf("ignoring stale state from %s", e.ID)
			return
		}
	}
	for i, cur := range s.fleet {
		if cur.ID == e.ID {
			s.fleet[i] = e
			return
		}
	}
	s.log.Infof("elevator %s joined the fleet", e.ID)
	s.fleet = append(s.fleet, e)
}

func (s *Service) swapModel(b []byte) {
	w, err := prediction.ReadWeights(bytes.NewReader(b))
	if err != nil {
		s.log.Errorf("decode model weights: %v", err)
		return
	}
	m, err := prediction.NewLogisticModel(w, s.cfg.Scheduler.TopK)
	if err != nil {
		s.log.Errorf("model weights rejected: %v", err)
		return
	}
	if err := prediction.CheckFloors(m, s.cfg.Building.Floors); err != nil {
		s.log.Errorf("model weights rejected: %v", err)
		return
	}
	v := s.model.Replace(m)
	s.log.Infof("destination model swapped to v%d", v)
	s.bus.Publish(events.ModelSwapEvent{Version: v})
}

func (s *Service) handleAck(a ackResult) {
	req, ok := s.inflight[a.requestID]
	if !ok {
		return
	}
	delete(s.inflight, a.requestID)
	if a.accepted && a.err == nil {
		return
	}
	s.log.Warnf("assignment of %s to %s not confirmed (accepted=%t, err=%v), requeueing", req.ID, req.ElevatorID, a.accepted, a.err)
	for _, e := range s.fleet {
		if e.ID != req.ElevatorID {
			continue
		}
		kept := e.Stops[:0]
		for _, st := range e.Stops {
			if st.RequestID != req.ID || st.Kind != model.StopPickup {
				kept = append(kept, st)
			}
		}
		e.Stops = kept
	}
	req.ElevatorID = ""
	if err := s.pending.Push(req); err != nil {
		s.log.Errorf("requeue %s: %v", req.ID, err)
	}
}

// dispatch sends one command per assignment. Ack results are delivered to the
// loop even when the inbox is momentarily full; only shutdown drops them.
func (s *Service) dispatch(ctx context.Context, res scheduler.TickResult) {
	byID := make(map[string]*model.Elevator, len(s.fleet))
	for _, e := range s.fleet {
		byID[e.ID] = e
	}
	for _, a := range res.Assignments {
		car := byID[a.ElevatorID]
		req := &model.Request{ID: a.RequestID, Origin: a.Origin, ElevatorID: a.ElevatorID, Status: model.StatusAssigned}
		for _, st := range car.Stops {
			if st.RequestID == a.RequestID && st.Kind == model.StopPickup {
				req.ArrivalTime = st.ReadyAt
				req.Load = st.Load
			}
		}
		s.inflight[a.RequestID] = req
		s.lastAssigned[a.ElevatorID] = res.Now

		cmd := coremqtt.AssignmentCommand{
			RequestID:  a.RequestID,
			ElevatorID: a.ElevatorID,
			Origin:     a.Origin,
			Cost:       a.Cost,
			Stops:      coremqtt.Stops(car.Stops),
			Timestamp:  res.Now.UnixMilli(),
		}
		id, err := s.client.SendAssignment(cmd)
		if err != nil {
			s.handleAck(ackResult{requestID: a.RequestID, err: err})
			continue
		}
		s.wg.Add(1)
		go func(reqID, cmdID string) {
			defer s.wg.Done()
			ok, err := s.client.WaitForAck(cmdID, s.cfg.Service.AckTimeout())
			select {
			case s.acks <- ackResult{requestID: reqID, accepted: ok, err: err}:
			case <-ctx.Done():
				s.log.Warnf("shutting down, dropping ack result for %s", reqID)
			case <-s.stop:
				s.log.Warnf("service closed, dropping ack result for %s", reqID)
			}
		}(a.RequestID, id)
	}
}

func (s *Service) recordFleet(now time.Time) {
	r, ok := s.sink.(coremetrics.ElevatorStateRecorder)
	if !ok {
		return
	}
	for _, e := range s.fleet {
		if err := r.RecordElevatorState(coremetrics.ElevatorStateRecord{
			ElevatorID: e.ID,
			Position:   e.Position,
			Direction:  e.Direction.String(),
			Load:       e.Load,
			Passengers: len(e.Passengers),
			Stops:      len(e.Stops),
			IdleTime:   e.IdleTime,
			Energy:     e.Energy,
			Time:       now,
		}); err != nil {
			s.log.Warnf("record elevator state: %v", err)
			return
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.client.Disconnect()
	s.bus.Close()
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	coremon.Flush(2 * time.Second)
	return err
}
