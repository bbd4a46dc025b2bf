package workflow

import (
	"context"
	"fmt"

	"github.com/trendwise/stylist/logging"
)

// RunContext carries per-run execution state into step handlers: the ambient
// cancellation context, a key/value store shared across steps (writes are
// serialized), event injection, the observability stream and the run's join
// barrier. A RunContext is owned by its scheduler and must not outlive the
// run.
type RunContext struct {
	run *run
}

// Context returns the run's cancellation context. Blocking work inside a
// step (model calls, searches, tool bodies) must honor it.
func (rc *RunContext) Context() context.Context { return rc.run.ctx }

// RunID returns the unique identifier of this run.
func (rc *RunContext) RunID() string { return rc.run.id }

// Logger returns the run-scoped logger.
func (rc *RunContext) Logger() logging.Logger { return rc.run.logger }

// Get returns the stored value for key, or def when absent.
func (rc *RunContext) Get(key string, def any) any {
	rc.run.stateMu.Lock()
	defer rc.run.stateMu.Unlock()
	if v, ok := rc.run.state[key]; ok {
		return v
	}
	return def
}

// Lookup returns the stored value and whether it was present.
func (rc *RunContext) Lookup(key string) (any, bool) {
	rc.run.stateMu.Lock()
	defer rc.run.stateMu.Unlock()
	v, ok := rc.run.state[key]
	return v, ok
}

// Set stores a key/value pair. Safe under concurrent step invocations.
func (rc *RunContext) Set(key string, v any) {
	rc.run.stateMu.Lock()
	defer rc.run.stateMu.Unlock()
	rc.run.state[key] = v
}

// SendEvent injects an event into the run's queue for dispatch. Events sent
// after the run resolved are dropped.
func (rc *RunContext) SendEvent(ev Event) {
	rc.run.enqueue(ev)
}

// WriteToStream emits an event on the run's observability stream. It returns
// the cancellation error when the run is already cancelled.
func (rc *RunContext) WriteToStream(ev Event) error {
	return rc.run.streamEmit(ev)
}

// MakeBarrier installs the run's join barrier with the full expected multiset
// of event tags. It must be called once, before any branch producing one of
// the tags can complete. Installing a second barrier is a logic error.
func (rc *RunContext) MakeBarrier(tags ...string) error {
	if len(tags) == 0 {
		return fmt.Errorf("workflow: barrier requires at least one expected tag")
	}

	rc.run.mu.Lock()
	defer rc.run.mu.Unlock()
	if rc.run.barrier != nil {
		return fmt.Errorf("workflow: join barrier already installed for run %s", rc.run.id)
	}
	rc.run.barrier = NewBarrier(tags...)
	return nil
}
