package topics

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRegistry(rdb), mr
}

func TestRegistry_SubscribeUnsubscribe(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRegistry(t)

	require.NoError(t, reg.Subscribe(ctx, "tok1", "venue_v1", "venue_v2"))
	require.NoError(t, reg.Subscribe(ctx, "tok2", "venue_v1"))

	subs, err := reg.Subscribers(ctx, "venue_v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok1", "tok2"}, subs)

	topics, err := reg.TopicsFor(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, []string{"venue_v1", "venue_v2"}, topics)

	require.NoError(t, reg.Unsubscribe(ctx, "tok1", "venue_v1"))
	subs, err = reg.Subscribers(ctx, "venue_v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok2"}, subs)

	members, err := mr.SMembers("tokens:tok1:topics")
	require.NoError(t, err)
	assert.Equal(t, []string{"venue_v2"}, members)

	// no-ops
	require.NoError(t, reg.Subscribe(ctx, "", "venue_v1"))
	require.NoError(t, reg.Unsubscribe(ctx, "tok1"))
}

func TestRegistry_Sync(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Subscribe(ctx, "tok", "venue_v1", "venue_v2", "admins"))

	t.Run("adds and removes venue topics", func(t *testing.T) {
		require.NoError(t, reg.Sync(ctx, "tok", []string{"venue_v2", "venue_v3"}))

		topics, err := reg.TopicsFor(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "venue_v2", "venue_v3"}, topics)

		subs, err := reg.Subscribers(ctx, "venue_v1")
		require.NoError(t, err)
		assert.Empty(t, subs)
		subs, err = reg.Subscribers(ctx, "venue_v3")
		require.NoError(t, err)
		assert.Equal(t, []string{"tok"}, subs)
	})

	t.Run("empty favourites clear venue topics only", func(t *testing.T) {
		require.NoError(t, reg.Sync(ctx, "tok", nil))

		topics, err := reg.TopicsFor(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{"admins"}, topics)

		subs, err := reg.Subscribers(ctx, "admins")
		require.NoError(t, err)
		assert.Equal(t, []string{"tok"}, subs)
	})

	t.Run("converged state is stable", func(t *testing.T) {
		require.NoError(t, reg.Sync(ctx, "tok", []string{"venue_v1"}))
		require.NoError(t, reg.Sync(ctx, "tok", []string{"venue_v1"}))

		topics, err := reg.TopicsFor(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "venue_v1"}, topics)
	})
}

func TestRegistry_Move(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRegistry(t)

	require.NoError(t, reg.Subscribe(ctx, "old", "venue_v1", "admins"))
	require.NoError(t, reg.Subscribe(ctx, "other", "venue_v1"))

	require.NoError(t, reg.Move(ctx, "old", "new"))

	topics, err := reg.TopicsFor(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, []string{"admins", "venue_v1"}, topics)

	topics, err = reg.TopicsFor(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, topics)
	assert.False(t, mr.Exists("tokens:old:topics"))

	subs, err := reg.Subscribers(ctx, "venue_v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "other"}, subs)

	require.NoError(t, reg.Move(ctx, "new", "new"))
	topics, err = reg.TopicsFor(ctx, "new")
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}

func TestRegistry_RedisDown(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRegistry(t)
	require.NoError(t, reg.Ping(ctx))

	mr.Close()
	assert.Error(t, reg.Ping(ctx))
	assert.Error(t, reg.Subscribe(ctx, "tok", "venue_v1"))
	_, err := reg.Subscribers(ctx, "venue_v1")
	assert.Error(t, err)
}
