package stylist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendwise/stylist/catalog"
	"github.com/trendwise/stylist/model"
)

func TestChatRunsTurnAndRecordsHistory(t *testing.T) {
	mock := model.NewMock()
	mock.Queue(model.MockReply{
		Content: `{"request_summary":"greeting","right_away_answer":"Привет! Чем помочь?","catalog_search_required":false,"trends_search_required":false,"sku_lookup_required":false}`,
	})

	s, err := New(mock, catalog.NewInMemorySearcher())
	require.NoError(t, err)

	ctx := context.Background()
	reply, err := s.Chat(ctx, "s1", "", "Привет")
	require.NoError(t, err)
	assert.Equal(t, "Привет! Чем помочь?", reply.Text)

	sess, err := s.Assistant().Session(ctx, "s1", "")
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, "Привет", sess.History[0].Content)
	assert.Equal(t, "Привет! Чем помочь?", sess.History[1].Content)
}
