package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendwise/stylist/model"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "sess-1")
	require.NoError(t, err)

	sess.CustomerToken = "tok-1"
	sess.AppendHistory(model.User("Привет"), model.Assistant("Здравствуйте!"))
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.CustomerToken)
	require.Len(t, got.History, 2)
	assert.Equal(t, model.RoleUser, got.History[0].Role)
}

func TestInMemoryStoreClonesState(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "sess-2")
	require.NoError(t, err)
	sess.AppendHistory(model.User("один"))
	require.NoError(t, store.Save(ctx, sess))

	got, _ := store.Get(ctx, "sess-2")
	got.AppendHistory(model.User("два"))

	again, _ := store.Get(ctx, "sess-2")
	assert.Len(t, again.History, 1)
}

func TestInMemoryStoreExpiresSessions(t *testing.T) {
	now := time.Now()
	store := NewInMemoryStore(func(o *InMemoryOptions) {
		o.TTL = time.Minute
		o.Now = func() time.Time { return now }
	})
	ctx := context.Background()

	_, err := store.Create(ctx, "sess-3")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "sess-3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreEvict(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Create(ctx, "sess-4")
	require.NoError(t, err)
	require.NoError(t, store.Evict(ctx, "sess-4"))

	_, err = store.Get(ctx, "sess-4")
	assert.ErrorIs(t, err, ErrNotFound)
}
