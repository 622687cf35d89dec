// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - TickEvent: summary of one scheduling tick
//   - AssignmentEvent: a request committed to an elevator
//   - DeferredEvent: a request left pending because no car had room
//   - ModelSwapEvent: a destination model was loaded or cleared
package events
