// Package scheduler implements the rolling-horizon elevator assignment
// engine. At every tick it selects a bounded window of pending requests,
// prices every (request, elevator) pair in parallel against a snapshot of
// the fleet, then commits the cheapest elevator for each request in arrival
// order. Near-ties are broken by a rotating pointer owned by the Engine so
// load spreads evenly over the fleet.
package scheduler
