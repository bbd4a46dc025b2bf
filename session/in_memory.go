package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long an idle session survives before eviction.
const DefaultTTL = 30 * time.Minute

// InMemoryStore is a volatile Store implementation keeping sessions in a
// process-local map. Safe for concurrent access; best suited for tests and
// ephemeral demo servers. Returned sessions are clones to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryOptions configures the in-memory store.
type InMemoryOptions struct {
	TTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{TTL: DefaultTTL, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &InMemoryStore{
		ttl:      opts.TTL,
		now:      opts.Now,
		sessions: make(map[string]*Session),
	}
}

// Get implements Store. Expired sessions are evicted lazily.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().Sub(sess.LastSeenAt) > s.ttl {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Create implements Store.
func (s *InMemoryStore) Create(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{ID: id, CreatedAt: now, LastSeenAt: now}
	s.sessions[id] = sess
	return sess.Clone(), nil
}

// Save implements Store; the TTL window restarts from now.
func (s *InMemoryStore) Save(ctx context.Context, sess *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := sess.Clone()
	cp.LastSeenAt = s.now()
	s.sessions[cp.ID] = cp
	return nil
}

// Evict implements Store.
func (s *InMemoryStore) Evict(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
