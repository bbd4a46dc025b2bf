// Package session keeps per-conversation state: chat history, the resolved
// customer token and activity timestamps. The Store interface is backed by a
// volatile in-memory map here and by Redis in the redis sub-package; only the
// wiring layer decides which implementation to instantiate.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/trendwise/stylist/model"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session: not found")

// Session is one conversation's state.
type Session struct {
	ID            string          `json:"id"`
	CustomerToken string          `json:"customer_token,omitempty"`
	History       []model.Message `json:"history,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	LastSeenAt    time.Time       `json:"last_seen_at"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	cp := *s
	cp.History = make([]model.Message, len(s.History))
	copy(cp.History, s.History)
	return &cp
}

// AppendHistory adds conversation turns.
func (s *Session) AppendHistory(msgs ...model.Message) {
	s.History = append(s.History, msgs...)
}

// Store persists sessions with a TTL refreshed on every save.
type Store interface {
	// Get returns the session or ErrNotFound when unknown or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Create stores a fresh session under the given id, overwriting any
	// previous one.
	Create(ctx context.Context, id string) (*Session, error)

	// Save persists the session snapshot and refreshes its TTL.
	Save(ctx context.Context, sess *Session) error

	// Evict removes the session.
	Evict(ctx context.Context, id string) error
}
