// Package redis backs session.Store with Redis, giving sessions a TTL that
// Redis enforces server-side.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trendwise/stylist/session"
)

const keyPrefix = "stylist:session:"

// Store implements session.Store on Redis.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ session.Store = (*Store)(nil)

// Options configures the Redis session store.
type Options struct {
	TTL time.Duration
}

// NewStore wraps an existing Redis client.
func NewStore(client redis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{TTL: session.DefaultTTL}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TTL <= 0 {
		opts.TTL = session.DefaultTTL
	}
	return &Store{client: client, ttl: opts.TTL}
}

func key(id string) string { return keyPrefix + id }

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &sess, nil
}

// Create implements session.Store.
func (s *Store) Create(ctx context.Context, id string) (*session.Session, error) {
	now := time.Now()
	sess := &session.Session{ID: id, CreatedAt: now, LastSeenAt: now}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save implements session.Store; the key TTL restarts on every save.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	cp := sess.Clone()
	cp.LastSeenAt = time.Now()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.client.Set(ctx, key(cp.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Evict implements session.Store.
func (s *Store) Evict(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
