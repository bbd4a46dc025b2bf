package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string, optFns ...FunctionToolOption) *FunctionTool {
	return NewFunctionTool(
		name,
		"Echo the message back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["message"], nil
		},
		optFns...,
	)
}

func TestFunctionToolValidatesArguments(t *testing.T) {
	tl := echoTool("echo")

	_, err := tl.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionToolWrapsExecutionErrors(t *testing.T) {
	tl := NewFunctionTool("broken", "Always fails", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("downstream unavailable")
		})

	_, err := tl.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "downstream unavailable")
}

func TestFunctionToolPreservesCustomToolError(t *testing.T) {
	custom := NewToolError("custom", "rate limited", "RATE_LIMITED")
	tl := NewFunctionTool("custom", "Custom failure", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, custom
		})

	_, err := tl.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r, err := NewRegistry(echoTool("echo"))
	require.NoError(t, err)
	assert.Error(t, r.Register(echoTool("echo")))

	_, ok := r.Lookup("echo")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestInvocationTransitionsAreMonotonic(t *testing.T) {
	inv := NewInvocation("echo", nil)
	assert.Equal(t, StatusPending, inv.Status())

	require.NoError(t, inv.Transition(StatusAwaitingApproval))
	require.NoError(t, inv.Transition(StatusApproved))
	require.NoError(t, inv.Transition(StatusExecuting))
	require.NoError(t, inv.Transition(StatusDone))

	// Terminal states accept no further transitions.
	assert.Error(t, inv.Transition(StatusFailed))

	// Backward moves are rejected.
	inv2 := NewInvocation("echo", nil)
	require.NoError(t, inv2.Transition(StatusExecuting))
	assert.Error(t, inv2.Transition(StatusAwaitingApproval))
}

func TestPoolMissingToolProducesFailureText(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	pool := NewWorkerPool(r)

	inv := NewInvocation("nonexistent", nil)
	res := pool.Submit(context.Background(), inv)

	assert.True(t, res.Failed)
	assert.Contains(t, res.Text, "nonexistent")
	assert.Equal(t, StatusFailed, inv.Status())
}

func TestPoolRecoversToolPanic(t *testing.T) {
	panicky := NewFunctionTool("panicky", "Panics", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			panic("nope")
		})
	r, err := NewRegistry(panicky)
	require.NoError(t, err)
	pool := NewWorkerPool(r)

	res := pool.Submit(context.Background(), NewInvocation("panicky", map[string]any{}))
	assert.True(t, res.Failed)
	assert.Contains(t, res.Text, "panicked")
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 2
	const tasks = 8

	var current, peak atomic.Int32
	slow := NewFunctionTool("slow", "Sleeps briefly", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return "ok", nil
		})
	r, err := NewRegistry(slow)
	require.NoError(t, err)
	pool := NewWorkerPool(r, func(o *PoolOptions) { o.Workers = workers })

	invs := make([]*Invocation, tasks)
	for i := range invs {
		invs[i] = NewInvocation("slow", map[string]any{})
	}
	results := pool.SubmitAll(context.Background(), invs)

	require.Len(t, results, tasks)
	for _, res := range results {
		assert.False(t, res.Failed)
		assert.Equal(t, "ok", res.Text)
	}
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestPoolEmitsProgressPerCompletion(t *testing.T) {
	r, err := NewRegistry(echoTool("echo"))
	require.NoError(t, err)

	var completions atomic.Int32
	pool := NewWorkerPool(r, func(o *PoolOptions) {
		o.Progress = func(inv *Invocation, text string, failed bool) {
			completions.Add(1)
		}
	})

	pool.Submit(context.Background(), NewInvocation("echo", map[string]any{"message": "hi"}))
	pool.Submit(context.Background(), NewInvocation("missing", nil))
	assert.Equal(t, int32(2), completions.Load())
}

func TestApprovalGateApproveThenExecute(t *testing.T) {
	gate := NewApprovalGate(nil)
	inv := NewInvocation("reserve_item", map[string]any{"sku": "SKU-1"})

	done := make(chan Decision, 1)
	go func() {
		dec, err := gate.Await(context.Background(), inv)
		require.NoError(t, err)
		done <- dec
	}()

	// Wait until the invocation is actually suspended before resolving.
	require.Eventually(t, func() bool {
		return inv.Status() == StatusAwaitingApproval && len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.True(t, gate.Resolve(inv.ID, true, ""))
	dec := <-done
	assert.True(t, dec.Approved)
	assert.Equal(t, StatusApproved, inv.Status())
}

func TestApprovalGateRejectionNeverExecutes(t *testing.T) {
	var executed atomic.Bool
	guarded := NewFunctionTool("guarded", "Must be approved", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			executed.Store(true)
			return "done", nil
		},
		WithApproval())
	r, err := NewRegistry(guarded)
	require.NoError(t, err)
	pool := NewWorkerPool(r)
	gate := NewApprovalGate(nil)

	inv := NewInvocation("guarded", map[string]any{})
	done := make(chan Decision, 1)
	go func() {
		dec, err := gate.Await(context.Background(), inv)
		require.NoError(t, err)
		done <- dec
	}()

	require.Eventually(t, func() bool {
		return inv.Status() == StatusAwaitingApproval
	}, time.Second, 5*time.Millisecond)

	require.True(t, gate.Resolve(inv.ID, false, ""))
	dec := <-done

	assert.False(t, dec.Approved)
	assert.Equal(t, DefaultRejectMessage, dec.Reason)
	assert.Equal(t, StatusRejected, inv.Status())
	assert.Equal(t, DefaultRejectMessage, inv.Result())

	// A rejected invocation submitted anyway keeps its synthesized result
	// and the tool body never runs.
	res := pool.Submit(context.Background(), inv)
	assert.True(t, res.Failed)
	assert.Equal(t, DefaultRejectMessage, res.Text)
	assert.False(t, executed.Load())
}

func TestApprovalGateIgnoresUnknownIDs(t *testing.T) {
	gate := NewApprovalGate(nil)
	assert.False(t, gate.Resolve("no-such-id", true, ""))
}

func TestApprovalGateHonorsContextDeadline(t *testing.T) {
	gate := NewApprovalGate(nil)
	inv := NewInvocation("guarded", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := gate.Await(ctx, inv)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
