package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trendwise/stylist/logging"
)

// run is the mutable state of one workflow execution. Exactly one scheduler
// loop drives it; the loop owns dispatch and terminal-state detection.
type run struct {
	id     string
	wf     *Workflow
	ctx    context.Context
	cancel context.CancelFunc
	logger logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	inflight int
	resolved bool
	result   any
	err      error
	barrier  *Barrier

	stateMu sync.Mutex
	state   map[string]any

	stream chan Event
	done   chan struct{}
}

// RunHandle is the caller's view of a live run: a result future, the live
// observability stream, external event injection and cancellation.
type RunHandle struct {
	run *run
}

// RunID returns the unique run identifier.
func (h *RunHandle) RunID() string { return h.run.id }

// Events returns the live observability stream. It is closed when the run
// resolves and all in-flight work has drained.
func (h *RunHandle) Events() <-chan Event { return h.run.stream }

// Done returns a channel closed when the run has fully terminated.
func (h *RunHandle) Done() <-chan struct{} { return h.run.done }

// Result blocks until the run terminates and returns its terminal result.
func (h *RunHandle) Result() (any, error) {
	<-h.run.done
	return h.run.result, h.run.err
}

// Send injects an event into the running workflow. Used internally by steps
// and externally for out-of-band responses such as tool approvals. Events
// sent after the run resolved are dropped.
func (h *RunHandle) Send(ev Event) { h.run.enqueue(ev) }

// Cancel cooperatively cancels the run: dispatch stops, in-flight work is
// cancelled via context and its results are dropped, and the run resolves
// with ErrCancelled.
func (h *RunHandle) Cancel() {
	h.run.resolve(nil, ErrCancelled)
	h.run.cancel()
}

// loop is the single scheduler loop for the run.
func (r *run) loop() {
	for {
		ev, ok := r.next()
		if !ok {
			break
		}
		r.dispatch(ev)
	}
	r.finish()
}

// next dequeues the next event. It blocks while the queue is empty and work
// is in flight; a drained queue with nothing in flight resolves the run with
// ErrNoTerminalEvent. Returns ok=false once the run is resolved.
func (r *run) next() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.resolved {
			return nil, false
		}
		if len(r.queue) > 0 {
			ev := r.queue[0]
			r.queue = r.queue[1:]
			return ev, true
		}
		if r.inflight == 0 {
			r.resolveLocked(nil, ErrNoTerminalEvent)
			return nil, false
		}
		r.cond.Wait()
	}
}

// dispatch routes one event: terminal events resolve the run, events matching
// the join barrier are offered to it, everything else fans out to each
// accepting step.
func (r *run) dispatch(ev Event) {
	switch e := ev.(type) {
	case StopEvent:
		r.resolve(e.Result, nil)
		return
	case ErrorEvent:
		if err := r.streamEmit(e); err != nil {
			r.logger.Debug("error event not streamed", "error", err)
		}
		r.resolve(nil, e.Err)
		return
	}

	r.mu.Lock()
	barrier := r.barrier
	r.mu.Unlock()

	if barrier != nil && barrier.Expects(ev.Kind()) {
		collected, complete, accepted := barrier.Offer(ev)
		if !accepted {
			r.logger.Warn("join barrier already complete, dropping event", "kind", ev.Kind())
			return
		}
		if complete {
			r.enqueue(CollectedEvent{Events: collected})
		}
		return
	}

	matched := 0
	for _, st := range r.wf.steps {
		if !st.accepts(ev.Kind()) {
			continue
		}
		matched++
		r.mu.Lock()
		r.inflight++
		r.mu.Unlock()
		go r.invoke(st, ev)
	}
	if matched == 0 {
		r.logger.Debug("no step accepts event", "kind", ev.Kind())
	}
}

// invoke runs one step invocation: it waits for a worker slot (backpressure
// beyond the step's concurrency bound), executes the handler with panic
// safety and re-enqueues output events.
func (r *run) invoke(st *stepRuntime, ev Event) {
	defer r.taskDone()

	select {
	case st.sem <- struct{}{}:
	case <-r.ctx.Done():
		return
	}
	defer func() { <-st.sem }()

	if r.ctx.Err() != nil {
		return
	}

	start := time.Now()
	outs, err := r.safeHandle(st, ev)
	if err != nil {
		r.logger.Error("step failed", "step", st.name, "kind", ev.Kind(), "error", err.Error())
		r.enqueue(ErrorEvent{Err: &StepError{Step: st.name, Err: err}})
		return
	}
	r.logger.Debug("step completed", "step", st.name, "kind", ev.Kind(), "outputs", len(outs), "duration", time.Since(start))

	for _, out := range outs {
		if out == nil {
			continue
		}
		r.enqueue(out)
	}
}

// safeHandle executes the handler converting panics into errors so a broken
// step cannot take down the process.
func (r *run) safeHandle(st *stepRuntime, ev Event) (outs []Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return st.handler(&RunContext{run: r}, ev)
}

// enqueue appends an event to the run queue. Events arriving after the run
// resolved are dropped (terminal slot is set exactly once).
func (r *run) enqueue(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		r.logger.Debug("run already resolved, dropping event", "kind", ev.Kind())
		return
	}
	r.queue = append(r.queue, ev)
	r.cond.Broadcast()
}

// streamEmit publishes an event on the observability stream, honoring the
// run's cancellation.
func (r *run) streamEmit(ev Event) error {
	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	case r.stream <- ev:
		return nil
	}
}

func (r *run) taskDone() {
	r.mu.Lock()
	r.inflight--
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *run) resolve(result any, err error) {
	r.mu.Lock()
	r.resolveLocked(result, err)
	r.mu.Unlock()
}

func (r *run) resolveLocked(result any, err error) {
	if r.resolved {
		return
	}
	r.resolved = true
	r.result = result
	r.err = err
	r.cond.Broadcast()
}

// finish cancels outstanding work, waits for in-flight invocations to drain
// and closes the stream and done channels. Cancel-and-drop: results of
// in-flight work arriving after resolution are discarded.
func (r *run) finish() {
	r.cancel()

	r.mu.Lock()
	for r.inflight > 0 {
		r.cond.Wait()
	}
	r.mu.Unlock()

	close(r.stream)
	close(r.done)
}

// watchdog enforces the single run-scoped deadline. There are no per-step
// timeouts; a join still pending at the deadline surfaces as a join timeout.
func (r *run) watchdog(timeout time.Duration) {
	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-r.done:
	case <-r.ctx.Done():
		r.resolve(nil, ErrCancelled)
	case <-timerC:
		var pending []string
		r.mu.Lock()
		if r.barrier != nil {
			pending = r.barrier.Pending()
		}
		r.mu.Unlock()
		r.resolve(nil, &TimeoutError{After: timeout, Pending: pending})
		r.cancel()
	}
}
