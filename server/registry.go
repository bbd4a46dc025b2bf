package server

import (
	"sync"

	"github.com/trendwise/stylist/workflow"
)

// runRegistry tracks live runs so out-of-band requests (tool approvals) can
// be routed to them. Entries are removed as soon as the run's stream ends.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*workflow.RunHandle
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*workflow.RunHandle)}
}

func (r *runRegistry) add(handle *workflow.RunHandle) {
	r.mu.Lock()
	r.runs[handle.RunID()] = handle
	r.mu.Unlock()
}

func (r *runRegistry) remove(runID string) {
	r.mu.Lock()
	delete(r.runs, runID)
	r.mu.Unlock()
}

func (r *runRegistry) get(runID string) (*workflow.RunHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.runs[runID]
	return handle, ok
}
