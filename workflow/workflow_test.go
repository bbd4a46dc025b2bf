package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendwise/stylist/logging"
)

type pingEvent struct{ N int }

func (pingEvent) Kind() string { return "test.ping" }

type pongEvent struct{ N int }

func (pongEvent) Kind() string { return "test.pong" }

func newTestWorkflow(t *testing.T, optFns ...func(o *Options)) *Workflow {
	t.Helper()
	opts := append([]func(o *Options){func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Timeout = 5 * time.Second
	}}, optFns...)
	return New(opts...)
}

func drain(h *RunHandle) []Event {
	var events []Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	return events
}

func TestRunResolvesOnStopEvent(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "start",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return []Event{StopEvent{Result: "done"}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	result, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestFirstTerminalEventWins(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "fanout",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return []Event{pingEvent{N: 1}, pingEvent{N: 2}}, nil
		},
	}))
	require.NoError(t, wf.AddStep(Step{
		Name:    "stopper",
		Inputs:  []string{"test.ping"},
		Workers: 2,
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return []Event{StopEvent{Result: ev.(pingEvent).N}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	result, err := handle.Result()
	require.NoError(t, err)
	n, ok := result.(int)
	require.True(t, ok)
	assert.Contains(t, []int{1, 2}, n)

	// Terminal slot is set exactly once; Result is stable across calls.
	again, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestStepErrorResolvesRunAsFailed(t *testing.T) {
	wf := newTestWorkflow(t)
	boom := errors.New("boom")
	require.NoError(t, wf.AddStep(Step{
		Name:   "failing",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return nil, boom
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	events := drain(handle)
	_, err = handle.Result()
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "failing", stepErr.Step)
	assert.ErrorIs(t, err, boom)

	// The failure is also visible on the observability stream.
	var sawError bool
	for _, ev := range events {
		if ev.Kind() == KindError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestStepPanicIsConvertedToError(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "panicking",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			panic("kaboom")
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	_, err = handle.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestQueueDrainWithoutTerminalEvent(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "dead-end",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return nil, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	_, err = handle.Result()
	assert.ErrorIs(t, err, ErrNoTerminalEvent)
}

func TestWorkerBoundLimitsConcurrency(t *testing.T) {
	const workers = 3
	const tasks = 12

	var current, peak atomic.Int32

	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "fanout",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			out := make([]Event, 0, tasks)
			for i := 0; i < tasks; i++ {
				out = append(out, pingEvent{N: i})
			}
			return out, nil
		},
	}))
	require.NoError(t, wf.AddStep(Step{
		Name:    "bounded",
		Inputs:  []string{"test.ping"},
		Workers: workers,
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return []Event{pongEvent{N: ev.(pingEvent).N}}, nil
		},
	}))
	var seen atomic.Int32
	require.NoError(t, wf.AddStep(Step{
		Name:    "collector",
		Inputs:  []string{"test.pong"},
		Workers: tasks,
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			if seen.Add(1) == tasks {
				return []Event{StopEvent{Result: "all"}}, nil
			}
			return nil, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	result, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, "all", result)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestJoinBarrierCollectsFanOut(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "plan",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			// Barrier installed before the fan-out events are emitted.
			if err := rc.MakeBarrier("test.ping", "test.pong"); err != nil {
				return nil, err
			}
			return []Event{pingEvent{N: 1}, pongEvent{N: 2}}, nil
		},
	}))
	require.NoError(t, wf.AddStep(Step{
		Name:   "finalize",
		Inputs: []string{KindCollected},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			collected := ev.(CollectedEvent)
			sum := 0
			sum += collected.ByKind("test.ping").(pingEvent).N
			sum += collected.ByKind("test.pong").(pongEvent).N
			return []Event{StopEvent{Result: sum}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	result, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestJoinBarrierIsOrderIndependent(t *testing.T) {
	for _, delayPing := range []bool{false, true} {
		name := fmt.Sprintf("delayPing=%v", delayPing)
		t.Run(name, func(t *testing.T) {
			delay := delayPing
			wf := newTestWorkflow(t)
			require.NoError(t, wf.AddStep(Step{
				Name:   "plan",
				Inputs: []string{KindStart},
				Handle: func(rc *RunContext, ev Event) ([]Event, error) {
					if err := rc.MakeBarrier("test.ping", "test.pong"); err != nil {
						return nil, err
					}
					go func() {
						if delay {
							time.Sleep(30 * time.Millisecond)
						}
						rc.SendEvent(pingEvent{N: 1})
					}()
					go func() {
						if !delay {
							time.Sleep(30 * time.Millisecond)
						}
						rc.SendEvent(pongEvent{N: 2})
					}()
					return nil, nil
				},
			}))
			require.NoError(t, wf.AddStep(Step{
				Name:   "finalize",
				Inputs: []string{KindCollected},
				Handle: func(rc *RunContext, ev Event) ([]Event, error) {
					collected := ev.(CollectedEvent)
					// Collected order follows the expected tag order,
					// not arrival order.
					require.Len(t, collected.Events, 2)
					assert.Equal(t, "test.ping", collected.Events[0].Kind())
					assert.Equal(t, "test.pong", collected.Events[1].Kind())
					return []Event{StopEvent{Result: "joined"}}, nil
				},
			}))

			handle, err := wf.Run(context.Background(), StartEvent{})
			require.NoError(t, err)

			go drain(handle)
			result, err := handle.Result()
			require.NoError(t, err)
			assert.Equal(t, "joined", result)
		})
	}
}

func TestRunTimeoutReportsPendingJoin(t *testing.T) {
	wf := newTestWorkflow(t, func(o *Options) {
		o.Timeout = 100 * time.Millisecond
	})
	require.NoError(t, wf.AddStep(Step{
		Name:   "plan",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			if err := rc.MakeBarrier("test.ping", "test.pong"); err != nil {
				return nil, err
			}
			// Only half of the expected branches ever report back.
			return []Event{pingEvent{N: 1}}, nil
		},
	}))
	require.NoError(t, wf.AddStep(Step{
		Name:   "blocked",
		Inputs: []string{KindCollected},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return []Event{StopEvent{Result: "never"}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	_, err = handle.Result()
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Contains(t, timeoutErr.Pending, "test.pong")
}

func TestCancelResolvesRunAndClosesStream(t *testing.T) {
	started := make(chan struct{})
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "slow",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			close(started)
			<-rc.Context().Done()
			return nil, rc.Context().Err()
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	<-started
	handle.Cancel()

	drain(handle) // must not block; stream closes after in-flight drains
	_, err = handle.Result()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestWriteToStreamDeliversProgressEvents(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "chatty",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			for i := 0; i < 3; i++ {
				if err := rc.WriteToStream(pingEvent{N: i}); err != nil {
					return nil, err
				}
			}
			return []Event{StopEvent{Result: nil}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	var pings int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range handle.Events() {
			if ev.Kind() == "test.ping" {
				pings++
			}
		}
	}()

	_, err = handle.Result()
	require.NoError(t, err)
	wg.Wait()
	assert.Equal(t, 3, pings)
}

func TestSharedStateAcrossSteps(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "writer",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			rc.Set("greeting", "hello")
			return []Event{pingEvent{N: 0}}, nil
		},
	}))
	require.NoError(t, wf.AddStep(Step{
		Name:   "reader",
		Inputs: []string{"test.ping"},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return []Event{StopEvent{Result: rc.Get("greeting", "")}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	go drain(handle)
	result, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestRunChildRelaysChildStream(t *testing.T) {
	child := newTestWorkflow(t)
	require.NoError(t, child.AddStep(Step{
		Name:   "child-step",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			if err := rc.WriteToStream(pongEvent{N: 42}); err != nil {
				return nil, err
			}
			return []Event{StopEvent{Result: "child-result"}}, nil
		},
	}))

	parent := newTestWorkflow(t)
	require.NoError(t, parent.AddStep(Step{
		Name:   "parent-step",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			result, err := RunChild(rc, child, StartEvent{})
			if err != nil {
				return nil, err
			}
			return []Event{StopEvent{Result: result}}, nil
		},
	}))

	handle, err := parent.Run(context.Background(), StartEvent{})
	require.NoError(t, err)

	var relayed int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range handle.Events() {
			if ev.Kind() == "test.pong" {
				relayed++
			}
		}
	}()

	result, err := handle.Result()
	require.NoError(t, err)
	wg.Wait()
	assert.Equal(t, "child-result", result)
	assert.Equal(t, 1, relayed)
}

func TestBarrierInstallTwiceFails(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep(Step{
		Name:   "double",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			require.NoError(t, rc.MakeBarrier("test.ping"))
			err := rc.MakeBarrier("test.pong")
			require.Error(t, err)
			return []Event{StopEvent{Result: nil}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{})
	require.NoError(t, err)
	go drain(handle)
	_, err = handle.Result()
	require.NoError(t, err)
}

func TestRunLogsCarryRunAndSessionIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	wf := newTestWorkflow(t, func(o *Options) {
		o.Logger = logger
	})
	require.NoError(t, wf.AddStep(Step{
		Name:   "start",
		Inputs: []string{KindStart},
		Handle: func(rc *RunContext, ev Event) ([]Event, error) {
			return []Event{StopEvent{Result: "done"}}, nil
		},
	}))

	handle, err := wf.Run(context.Background(), StartEvent{Values: map[string]any{"session_id": "sess-42"}})
	require.NoError(t, err)
	go drain(handle)
	_, err = handle.Result()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "run_id="+handle.RunID())
	assert.Contains(t, out, "session_id=sess-42")
}
