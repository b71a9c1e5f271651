package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "community:dogs", CommunityKey("dogs"))
	assert.Equal(t, "trending:24h:5", TrendingKey("24h", 5))
	assert.Equal(t, "communities:popular:10", PopularKey(10))
}

func TestAsideLoadsOnceThenServesFromCache(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]int, error) {
		calls++
		return []int{8, 5}, nil
	}

	got, err := Aside(ctx, TrendingKey("1h", 2), TrendingTTL, load)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 5}, got)

	got, err = Aside(ctx, TrendingKey("1h", 2), TrendingTTL, load)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 5}, got)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * TrendingTTL)
	_, err = Aside(ctx, TrendingKey("1h", 2), TrendingTTL, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAsideWithoutRedis(t *testing.T) {
	SetClient(nil)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	}

	for i := 0; i < 2; i++ {
		got, err := Aside(context.Background(), "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "fresh", got)
	}
	assert.Equal(t, 2, calls)
}

func TestAsideDoesNotCacheErrors(t *testing.T) {
	mr := withMiniredis(t)
	boom := errors.New("boom")

	_, err := Aside(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestInvalidateCommunity(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, CommunityKey("dogs"), map[string]int{"memberCount": 10}, CommunityTTL))
	require.NoError(t, SetJSON(ctx, PopularKey(5), []string{"dogs"}, PopularTTL))
	require.NoError(t, SetJSON(ctx, CommunityKey("cats"), map[string]int{"memberCount": 3}, CommunityTTL))

	InvalidateCommunity(ctx, "dogs")

	assert.False(t, mr.Exists(CommunityKey("dogs")))
	assert.False(t, mr.Exists(PopularKey(5)))
	assert.True(t, mr.Exists(CommunityKey("cats")))

	var dest map[string]int
	assert.ErrorIs(t, GetJSON(ctx, CommunityKey("dogs"), &dest), ErrMiss)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	rdb, err = Connect(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	_, err = Connect(ctx, "redis://:bad url")
	assert.ErrorContains(t, err, "invalid REDIS_URL")

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(ctx, addr)
	assert.ErrorContains(t, err, "ping redis")
}

func TestInitRedisFallsBackToNil(t *testing.T) {
	t.Cleanup(func() { SetClient(nil) })

	InitRedis("redis://:bad url")
	assert.Nil(t, GetClient())

	mr := miniredis.RunT(t)
	InitRedis(mr.Addr())
	require.NotNil(t, GetClient())
	_ = GetClient().Close()
}
