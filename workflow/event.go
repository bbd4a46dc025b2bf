package workflow

// Event is the unit of communication inside a run. Implementations form a
// closed tagged set: every variant reports a stable kind string used for step
// routing, join-barrier matching and stream classification. Events should be
// treated as immutable after emission.
type Event interface {
	// Kind returns the stable tag identifying the event variant.
	Kind() string
}

// Kinds of the engine's built-in events. Domain packages define their own
// kinds alongside their event types.
const (
	KindStart     = "workflow.start"
	KindStop      = "workflow.stop"
	KindError     = "workflow.error"
	KindCollected = "workflow.collected"
)

// StartEvent is the synthetic event enqueued when a run starts. It carries
// the initial inputs as an opaque key/value map.
type StartEvent struct {
	Values map[string]any
}

// Kind implements Event.
func (StartEvent) Kind() string { return KindStart }

// Get returns the input value for key, or def when absent.
func (e StartEvent) Get(key string, def any) any {
	if v, ok := e.Values[key]; ok {
		return v
	}
	return def
}

// GetString returns the input value for key as a string, or def when absent
// or not a string.
func (e StartEvent) GetString(key, def string) string {
	if v, ok := e.Values[key].(string); ok {
		return v
	}
	return def
}

// StopEvent resolves the run's terminal result. Exactly one StopEvent or
// ErrorEvent ever resolves a run; later terminal events are no-ops.
type StopEvent struct {
	Result any
}

// Kind implements Event.
func (StopEvent) Kind() string { return KindStop }

// ErrorEvent resolves the run's terminal result as failed. The carried error
// is internal; consumer-facing surfaces must not forward its raw text.
type ErrorEvent struct {
	Err error
}

// Kind implements Event.
func (ErrorEvent) Kind() string { return KindError }

// CollectedEvent is synthesized by the scheduler when the run's join barrier
// completes. Events appear in the order of the barrier's expected tags.
type CollectedEvent struct {
	Events []Event
}

// Kind implements Event.
func (CollectedEvent) Kind() string { return KindCollected }

// ByKind returns the first collected event with the given kind, or nil.
func (e CollectedEvent) ByKind(kind string) Event {
	for _, ev := range e.Events {
		if ev.Kind() == kind {
			return ev
		}
	}
	return nil
}
