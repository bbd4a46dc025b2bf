package workflow

import "sync"

// Barrier accumulates events against a fixed expected multiset of event tags
// and releases the full ordered collection exactly once, when every expected
// slot has a received event. The expected set is immutable after creation; it
// must be installed before any branch producing one of the tags can complete,
// so a fast branch cannot finish before the required set is known.
//
// Offers are serialized; arrival order does not affect the collected set.
type Barrier struct {
	mu       sync.Mutex
	expected []string // ordered tags, duplicates allowed
	buffer   map[string][]Event
	received int
	fired    bool
}

// NewBarrier creates a barrier expecting one event per tag. Tags may repeat
// for N parallel branches of the same kind.
func NewBarrier(tags ...string) *Barrier {
	expected := make([]string, len(tags))
	copy(expected, tags)
	return &Barrier{
		expected: expected,
		buffer:   make(map[string][]Event, len(tags)),
	}
}

// Expects reports whether kind belongs to the expected set.
func (b *Barrier) Expects(kind string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tag := range b.expected {
		if tag == kind {
			return true
		}
	}
	return false
}

// Offer stores ev under its tag. When the final expected slot fills it
// returns the collected events in expected-tag order and complete=true,
// exactly once. Offers after completion (or of unexpected kinds) return
// accepted=false and must be treated as no-ops by the caller.
func (b *Barrier) Offer(ev Event) (collected []Event, complete, accepted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fired {
		return nil, false, false
	}

	kind := ev.Kind()
	want := 0
	for _, tag := range b.expected {
		if tag == kind {
			want++
		}
	}
	if want == 0 || len(b.buffer[kind]) >= want {
		return nil, false, false
	}

	b.buffer[kind] = append(b.buffer[kind], ev)
	b.received++

	if b.received < len(b.expected) {
		return nil, false, true
	}

	b.fired = true
	taken := make(map[string]int, len(b.buffer))
	collected = make([]Event, 0, len(b.expected))
	for _, tag := range b.expected {
		collected = append(collected, b.buffer[tag][taken[tag]])
		taken[tag]++
	}
	return collected, true, true
}

// Pending returns the tags still waiting for an event, preserving expected
// order. Used for join-timeout diagnostics.
func (b *Barrier) Pending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fired {
		return nil
	}

	seen := make(map[string]int, len(b.buffer))
	var pending []string
	for _, tag := range b.expected {
		if seen[tag] < len(b.buffer[tag]) {
			seen[tag]++
			continue
		}
		pending = append(pending, tag)
	}
	return pending
}

// Fired reports whether the barrier already released its collection.
func (b *Barrier) Fired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fired
}
