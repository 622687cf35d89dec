// Package motion advances elevators between scheduling ticks. Each car is a
// small state machine (idle, moving, doors_open) that travels its committed
// stop list, boards waiting passengers, inserts their realised destination
// and delivers them.
package motion

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/kilianp07/liftmpc/core/logger"
	"github.com/kilianp07/liftmpc/core/model"
)

const (
	StateIdle      = "idle"
	StateMoving    = "moving"
	StateDoorsOpen = "doors_open"

	eventDepart = "depart"
	eventArrive = "arrive"
	eventOpen   = "open"
	eventClose  = "close"
)

// Car wraps an elevator with its motion state.
type Car struct {
	Elevator *model.Elevator
	sm       *fsm.FSM

	from     float64
	target   int
	legTotal time.Duration
	legDone  time.Duration
	doorLeft time.Duration
}

func newCar(e *model.Elevator, log logger.Logger) *Car {
	c := &Car{Elevator: e}
	c.sm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventDepart, Src: []string{StateIdle}, Dst: StateMoving},
			{Name: eventArrive, Src: []string{StateMoving}, Dst: StateDoorsOpen},
			{Name: eventOpen, Src: []string{StateIdle}, Dst: StateDoorsOpen},
			{Name: eventClose, Src: []string{StateDoorsOpen}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, ev *fsm.Event) {
				log.Debugf("car %s: %s -> %s at %.2f", e.ID, ev.Src, ev.Dst, e.Position)
			},
		},
	)
	return c
}

// State returns the current motion state.
func (c *Car) State() string { return c.sm.Current() }

func (c *Car) fire(event string) error {
	return c.sm.Event(context.Background(), event)
}

// atFloor reports whether the car is level with floor.
func (c *Car) atFloor(floor int) bool {
	d := c.Elevator.Position - float64(floor)
	return d > -1e-9 && d < 1e-9
}
