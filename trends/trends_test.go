package trends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticReturnsCannedReply(t *testing.T) {
	s := &Static{Reply: "Белые кеды снова в моде."}

	got, err := s.Fetch(context.Background(), "кеды тренды")
	require.NoError(t, err)
	assert.Equal(t, "Белые кеды снова в моде.", got)
}

func TestStaticEchoesQueryWhenUnset(t *testing.T) {
	s := &Static{}

	got, err := s.Fetch(context.Background(), "кеды тренды")
	require.NoError(t, err)
	assert.Contains(t, got, "кеды тренды")
}

func TestStaticHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Static{}).Fetch(ctx, "кеды")
	assert.ErrorIs(t, err, context.Canceled)
}
