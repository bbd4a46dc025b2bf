package tool

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status describes where a tool invocation sits in its lifecycle.
type Status string

// Invocation lifecycle states. Transitions only move forward; rank enforces
// the ordering.
const (
	StatusPending          Status = "pending"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusExecuting        Status = "executing"
	StatusDone             Status = "done"
	StatusFailed           Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:          0,
	StatusAwaitingApproval: 1,
	StatusApproved:         2,
	StatusRejected:         2,
	StatusExecuting:        3,
	StatusDone:             4,
	StatusFailed:           4,
}

// terminal statuses accept no further transitions.
func (s Status) terminal() bool {
	return s == StatusRejected || s == StatusDone || s == StatusFailed
}

// Invocation is one requested tool call moving through the lifecycle from
// Pending to a terminal state. Safe for concurrent use.
type Invocation struct {
	ID   string
	Name string
	Args map[string]any

	mu     sync.Mutex
	status Status
	result string
}

// NewInvocation creates a Pending invocation for the named tool.
func NewInvocation(name string, args map[string]any) *Invocation {
	return &Invocation{
		ID:     uuid.New().String(),
		Name:   name,
		Args:   args,
		status: StatusPending,
	}
}

// Status returns the current lifecycle state.
func (inv *Invocation) Status() Status {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.status
}

// Transition advances the invocation to next. Backward or repeated
// transitions are rejected, as is any transition out of a terminal state.
func (inv *Invocation) Transition(next Status) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	nextRank, ok := statusRank[next]
	if !ok {
		return fmt.Errorf("tool: unknown invocation status %q", next)
	}
	if inv.status.terminal() {
		return fmt.Errorf("tool: invocation %s already %s", inv.ID, inv.status)
	}
	if nextRank <= statusRank[inv.status] {
		return fmt.Errorf("tool: invocation %s cannot move %s -> %s", inv.ID, inv.status, next)
	}
	inv.status = next
	return nil
}

// SetResult records the textual outcome of the invocation.
func (inv *Invocation) SetResult(text string) {
	inv.mu.Lock()
	inv.result = text
	inv.mu.Unlock()
}

// Result returns the recorded textual outcome.
func (inv *Invocation) Result() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.result
}
