package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/liftmpc/core/events"
	coremetrics "github.com/kilianp07/liftmpc/core/metrics"
	"github.com/kilianp07/liftmpc/infra/logger"
	"github.com/kilianp07/liftmpc/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards scheduling
// events to sink. It stops when the context is canceled or the bus closes.
// The returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := forward(sink, ev); err != nil {
					log.Warnf("record %s event: %v", ev.Kind(), err)
				}
			}
		}
	}()
	return done
}

func forward(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.TickEvent:
		return sink.RecordTick(coremetrics.TickRecord{
			TickID:       e.TickID,
			Candidates:   e.Candidates,
			Assigned:     e.Assigned,
			Deferred:     e.Deferred,
			Degraded:     e.Degraded,
			ModelVersion: e.ModelVersion,
			Duration:     e.Duration,
			Time:         e.At,
		})
	case events.AssignmentEvent:
		if r, ok := sink.(coremetrics.AssignmentRecorder); ok {
			return r.RecordAssignments([]coremetrics.AssignmentRecord{{
				TickID:     e.TickID,
				RequestID:  e.RequestID,
				ElevatorID: e.ElevatorID,
				Origin:     e.Origin,
				Cost:       e.Cost,
				Journey:    e.Journey,
				Energy:     e.Energy,
				TieBroken:  e.TieBroken,
				Time:       e.At,
			}})
		}
	case events.DeferredEvent:
		if r, ok := sink.(coremetrics.DeferredRecorder); ok {
			return r.RecordDeferred(coremetrics.DeferredRecord{
				TickID:    e.TickID,
				RequestID: e.RequestID,
				Reason:    e.Reason,
				Time:      time.Now(),
			})
		}
	}
	return nil
}
