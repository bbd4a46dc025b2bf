package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/trendwise/stylist/logging"
)

// DefaultWorkers bounds concurrent tool executions per pool.
const DefaultWorkers = 4

// Result is the outcome of one invocation run through the pool. Failures are
// reported as text, never as an error: the conversation continues and the
// model sees what went wrong.
type Result struct {
	Invocation *Invocation
	Text       string
	Failed     bool
}

// ProgressFunc observes every completed invocation (tool name, arguments and
// result text), typically to publish an observability event.
type ProgressFunc func(inv *Invocation, text string, failed bool)

// WorkerPool executes tool invocations with bounded parallelism. Submissions
// beyond the bound block until a worker slot frees up. A pool carries no
// state other than the semaphore and is safe for concurrent use.
type WorkerPool struct {
	registry *Registry
	sem      chan struct{}
	logger   logging.Logger
	progress ProgressFunc
}

// PoolOptions configures a WorkerPool.
type PoolOptions struct {
	// Workers is the maximum number of concurrently executing tools.
	Workers int

	// Logger receives execution diagnostics.
	Logger logging.Logger

	// Progress is called after every completed invocation.
	Progress ProgressFunc
}

// NewWorkerPool creates a pool over the given registry.
func NewWorkerPool(registry *Registry, optFns ...func(o *PoolOptions)) *WorkerPool {
	opts := PoolOptions{
		Workers: DefaultWorkers,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &WorkerPool{
		registry: registry,
		sem:      make(chan struct{}, opts.Workers),
		logger:   opts.Logger,
		progress: opts.Progress,
	}
}

// Submit executes one invocation, blocking for a worker slot first. A missing
// tool, a tool error or a panic all produce a failed Result with explanatory
// text; the only non-Result outcome is context cancellation.
func (p *WorkerPool) Submit(ctx context.Context, inv *Invocation) Result {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		inv.SetResult(ctx.Err().Error())
		_ = inv.Transition(StatusFailed)
		return Result{Invocation: inv, Text: ctx.Err().Error(), Failed: true}
	}
	defer func() { <-p.sem }()

	return p.execute(ctx, inv)
}

// SubmitAll executes a batch in parallel (still bounded by the pool) and
// returns results in submission order.
func (p *WorkerPool) SubmitAll(ctx context.Context, invs []*Invocation) []Result {
	results := make([]Result, len(invs))
	var wg sync.WaitGroup
	for i, inv := range invs {
		wg.Add(1)
		go func(idx int, inv *Invocation) {
			defer wg.Done()
			results[idx] = p.Submit(ctx, inv)
		}(i, inv)
	}
	wg.Wait()
	return results
}

func (p *WorkerPool) execute(ctx context.Context, inv *Invocation) Result {
	// Terminal invocations (rejected included) never reach a tool body;
	// their recorded result stands.
	if st := inv.Status(); st.terminal() {
		return Result{Invocation: inv, Text: inv.Result(), Failed: st != StatusDone}
	}
	if err := inv.Transition(StatusExecuting); err != nil {
		inv.SetResult(err.Error())
		_ = inv.Transition(StatusFailed)
		return Result{Invocation: inv, Text: err.Error(), Failed: true}
	}

	impl, ok := p.registry.Lookup(inv.Name)
	if !ok {
		text := fmt.Sprintf("tool %q is not available", inv.Name)
		p.logger.Warn("tool not found", "tool", inv.Name, "invocation_id", inv.ID)
		return p.complete(inv, text, true)
	}

	start := time.Now()
	var (
		value any
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool %q panicked: %v", inv.Name, r)
				p.logger.Error("tool panic", "tool", inv.Name, "recover", r, "stack", string(debug.Stack()))
			}
		}()
		value, err = impl.Call(ctx, inv.Args)
	}()
	logging.LogToolCall(p.logger, inv.Name, time.Since(start), err)

	if err != nil {
		return p.complete(inv, fmt.Sprintf("tool %q failed: %v", inv.Name, err), true)
	}
	return p.complete(inv, resultText(value), false)
}

func (p *WorkerPool) complete(inv *Invocation, text string, failed bool) Result {
	inv.SetResult(text)
	if failed {
		_ = inv.Transition(StatusFailed)
	} else {
		_ = inv.Transition(StatusDone)
	}
	if p.progress != nil {
		p.progress(inv, text, failed)
	}
	return Result{Invocation: inv, Text: text, Failed: failed}
}

// resultText renders a tool return value for the model.
func resultText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
