// Package metrics defines the sinks that record scheduling activity. Sinks
// like PromSink and InfluxSink (see infra/metrics) record ticks, assignments
// and car states and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when several sinks are configured.
package metrics
