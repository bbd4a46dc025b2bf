package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trendwise/stylist/logging"
)

const (
	// DefaultTimeout bounds a whole run unless overridden.
	DefaultTimeout = 60 * time.Second

	// DefaultStreamBuffer is the observability stream channel capacity.
	DefaultStreamBuffer = 64
)

// Options configures a Workflow.
type Options struct {
	// Timeout is the run-scoped deadline. Zero disables the watchdog.
	Timeout time.Duration

	// StreamBuffer is the capacity of the observability stream channel.
	StreamBuffer int

	// Logger receives scheduler and step diagnostics.
	Logger logging.Logger
}

// Workflow wires steps to the event kinds they consume. It is immutable once
// running; each call to Run spawns an independent run with its own queue,
// shared state and stream.
type Workflow struct {
	opts  Options
	mu    sync.Mutex
	steps []*stepRuntime
}

// New creates a Workflow with the given options.
func New(optFns ...func(o *Options)) *Workflow {
	opts := Options{
		Timeout:      DefaultTimeout,
		StreamBuffer: DefaultStreamBuffer,
		Logger:       logging.NewDefaultSlogLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = DefaultStreamBuffer
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Workflow{opts: opts}
}

// AddStep registers a step. Multiple steps may accept the same event kind;
// each receives its own invocation.
func (w *Workflow) AddStep(s Step) error {
	rt, err := newStepRuntime(s)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.steps {
		if existing.name == rt.name {
			return fmt.Errorf("workflow: step %q already registered", rt.name)
		}
	}
	w.steps = append(w.steps, rt)
	return nil
}

// Run starts a new run seeded with the start event and returns immediately.
// The run terminates on the first StopEvent or ErrorEvent, on timeout, on
// cancellation, or with ErrNoTerminalEvent when the queue drains with nothing
// in flight.
func (w *Workflow) Run(ctx context.Context, start StartEvent) (*RunHandle, error) {
	w.mu.Lock()
	if len(w.steps) == 0 {
		w.mu.Unlock()
		return nil, errors.New("workflow: no steps registered")
	}
	w.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	runID := uuid.New().String()
	r := &run{
		id:     runID,
		wf:     w,
		ctx:    runCtx,
		cancel: cancel,
		logger: logging.WithRun(w.opts.Logger, start.GetString("session_id", ""), runID),
		state:  make(map[string]any),
		stream: make(chan Event, w.opts.StreamBuffer),
		done:   make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	r.enqueue(start)

	go r.watchdog(w.opts.Timeout)
	go r.loop()

	return &RunHandle{run: r}, nil
}
