package notifications

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics_Memory(t *testing.T) {
	ctx := context.Background()
	topics := NewTopics(nil, "install-1", nil)

	ok, err := topics.IsSubscribed(ctx, "campaigns")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, topics.Subscribe(ctx, "campaigns"))
	ok, err = topics.IsSubscribed(ctx, "campaigns")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, topics.Unsubscribe(ctx, "campaigns"))
	ok, err = topics.IsSubscribed(ctx, "campaigns")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTopics_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	a := NewTopics(rdb, "install-a", nil)
	b := NewTopics(rdb, "install-b", nil)
	require.NoError(t, a.Subscribe(ctx, "campaigns"))
	require.NoError(t, b.Subscribe(ctx, "campaigns"))

	members, err := a.Members(ctx, "campaigns")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"install-a", "install-b"}, members)

	require.NoError(t, a.Unsubscribe(ctx, "campaigns"))
	ok, err := a.IsSubscribed(ctx, "campaigns")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = b.IsSubscribed(ctx, "campaigns")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTopics_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := NewTopics(rdb, "install-a", nil).Subscribe(context.Background(), "campaigns")
	assert.Error(t, err)
}
