package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/trendwise/stylist/logging"
)

// DefaultRejectMessage is the synthesized tool result when a human rejects an
// invocation without giving a reason. It is phrased for the model, which sees
// it in place of real tool output.
const DefaultRejectMessage = "The tool call was not approved. Do not retry it; ask the customer how they would like to proceed instead."

// Decision is a human verdict on a suspended invocation.
type Decision struct {
	Approved bool
	Reason   string
}

// ApprovalGate suspends approval-required invocations until a human resolves
// them. Each invocation id has at most one outstanding wait; resolutions for
// unknown ids are ignored with a log line.
type ApprovalGate struct {
	mu      sync.Mutex
	waiting map[string]chan Decision
	logger  logging.Logger
}

// NewApprovalGate creates an empty gate.
func NewApprovalGate(logger logging.Logger) *ApprovalGate {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ApprovalGate{
		waiting: make(map[string]chan Decision),
		logger:  logger,
	}
}

// Await suspends the calling branch until the invocation is resolved or ctx
// is cancelled (the run deadline covers approvals left hanging). On approval
// the invocation moves to Approved and execution may proceed; on rejection it
// moves to Rejected and carries a synthesized result, the tool body never
// runs.
func (g *ApprovalGate) Await(ctx context.Context, inv *Invocation) (Decision, error) {
	if err := inv.Transition(StatusAwaitingApproval); err != nil {
		return Decision{}, err
	}

	ch := make(chan Decision, 1)
	g.mu.Lock()
	if _, exists := g.waiting[inv.ID]; exists {
		g.mu.Unlock()
		return Decision{}, fmt.Errorf("tool: approval already pending for invocation %s", inv.ID)
	}
	g.waiting[inv.ID] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.waiting, inv.ID)
		g.mu.Unlock()
	}()

	g.logger.Info("awaiting tool approval", "tool", inv.Name, "invocation_id", inv.ID)

	select {
	case <-ctx.Done():
		return Decision{}, fmt.Errorf("tool: approval for %s: %w", inv.ID, ctx.Err())
	case dec := <-ch:
		if dec.Approved {
			if err := inv.Transition(StatusApproved); err != nil {
				return Decision{}, err
			}
			return dec, nil
		}
		if err := inv.Transition(StatusRejected); err != nil {
			return Decision{}, err
		}
		reason := dec.Reason
		if reason == "" {
			reason = DefaultRejectMessage
		}
		inv.SetResult(reason)
		return Decision{Approved: false, Reason: reason}, nil
	}
}

// Resolve delivers a verdict for a suspended invocation. Unknown or already
// resolved ids are ignored; the return value reports whether a waiter was
// found.
func (g *ApprovalGate) Resolve(invocationID string, approved bool, reason string) bool {
	g.mu.Lock()
	ch, ok := g.waiting[invocationID]
	if ok {
		delete(g.waiting, invocationID)
	}
	g.mu.Unlock()

	if !ok {
		g.logger.Warn("approval for unknown invocation ignored", "invocation_id", invocationID)
		return false
	}
	ch <- Decision{Approved: approved, Reason: reason}
	return true
}

// Pending returns the ids of invocations currently awaiting approval.
func (g *ApprovalGate) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.waiting))
	for id := range g.waiting {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
