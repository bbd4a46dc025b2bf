// Package workflow implements an event-driven workflow engine: typed events
// are routed by a per-run scheduler to registered steps, each step returning
// zero or more output events that are re-enqueued until a stop or error event
// resolves the run.
//
// The engine provides:
//
//   - Steps with a configurable concurrency bound (backpressure beyond it)
//   - A join barrier that collects a dynamically-sized set of expected events
//   - A per-run key/value context safe under concurrent step invocations
//   - An observability stream of events emitted during the run
//   - Nested child workflows whose events are relayed to the parent stream
//   - A single run-scoped watchdog timeout and cooperative cancellation
//
// State lives only for the lifetime of one run; the engine does not persist
// runs across process restarts.
package workflow
