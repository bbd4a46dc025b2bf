package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierDuplicateTagsFormMultiset(t *testing.T) {
	b := NewBarrier("test.ping", "test.ping", "test.pong")

	_, complete, accepted := b.Offer(pingEvent{N: 1})
	require.True(t, accepted)
	require.False(t, complete)

	_, complete, accepted = b.Offer(pongEvent{N: 2})
	require.True(t, accepted)
	require.False(t, complete)

	collected, complete, accepted := b.Offer(pingEvent{N: 3})
	require.True(t, accepted)
	require.True(t, complete)
	require.Len(t, collected, 3)

	// Expected-tag order, arrival order within a tag.
	assert.Equal(t, 1, collected[0].(pingEvent).N)
	assert.Equal(t, 3, collected[1].(pingEvent).N)
	assert.Equal(t, 2, collected[2].(pongEvent).N)
}

func TestBarrierRejectsAfterCompletion(t *testing.T) {
	b := NewBarrier("test.ping")

	_, complete, accepted := b.Offer(pingEvent{N: 1})
	require.True(t, accepted)
	require.True(t, complete)
	assert.True(t, b.Fired())

	_, _, accepted = b.Offer(pingEvent{N: 2})
	assert.False(t, accepted)
}

func TestBarrierRejectsOverCount(t *testing.T) {
	b := NewBarrier("test.ping", "test.pong")

	_, _, accepted := b.Offer(pingEvent{N: 1})
	require.True(t, accepted)

	// Second ping exceeds the expected count for its tag.
	_, complete, accepted := b.Offer(pingEvent{N: 2})
	assert.False(t, accepted)
	assert.False(t, complete)

	assert.Equal(t, []string{"test.pong"}, b.Pending())
}
