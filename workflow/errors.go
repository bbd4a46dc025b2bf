package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCancelled resolves a run that was cancelled by its consumer (explicit
// Cancel call or client disconnect). Cancellation is not an error condition
// for the consumer-facing stream.
var ErrCancelled = errors.New("workflow: run cancelled")

// ErrNoTerminalEvent resolves a run whose queue drained with no step in
// flight before any stop or error event was produced. Surfacing this
// explicitly beats hanging until the watchdog fires.
var ErrNoTerminalEvent = errors.New("workflow: run finished without a stop event")

// TimeoutError resolves a run whose watchdog deadline elapsed. When a join
// barrier was still waiting, Pending lists the outstanding event tags so the
// failure reads as a join timeout.
type TimeoutError struct {
	After   time.Duration
	Pending []string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if len(e.Pending) > 0 {
		return fmt.Sprintf("workflow: join timed out after %s waiting for [%s]", e.After, strings.Join(e.Pending, ", "))
	}
	return fmt.Sprintf("workflow: run timed out after %s", e.After)
}

// StepError wraps a failure raised inside a step invocation. The scheduler
// converts it to an ErrorEvent; raw detail stays on the server side.
type StepError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("workflow: step %s failed: %v", e.Step, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StepError) Unwrap() error { return e.Err }
