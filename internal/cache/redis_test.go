package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedRepo struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mr
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	var got cachedRepo
	found, err := c.GetJSON(ctx, "repository:1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "repository:1", cachedRepo{ID: 1, Name: "engine"}))
	assert.True(t, mr.Exists("repohub:repository:1"))
	assert.Equal(t, time.Minute, mr.TTL("repohub:repository:1"))

	found, err = c.GetJSON(ctx, "repository:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedRepo{ID: 1, Name: "engine"}, got)

	require.NoError(t, c.Delete(ctx, "repository:1"))
	found, err = c.GetJSON(ctx, "repository:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := setupCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "user:1", cachedRepo{ID: 1}))
	mr.FastForward(2 * time.Second)

	var got cachedRepo
	found, err := c.GetJSON(ctx, "user:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	c, mr := setupCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "repository:1", cachedRepo{ID: 1}))
	require.NoError(t, c.SetJSON(ctx, "repository:2", cachedRepo{ID: 2}))
	require.NoError(t, c.SetJSON(ctx, "user:1", cachedRepo{ID: 1}))

	require.NoError(t, c.DeletePrefix(ctx, "repository:"))
	assert.False(t, mr.Exists("repohub:repository:1"))
	assert.False(t, mr.Exists("repohub:repository:2"))
	assert.True(t, mr.Exists("repohub:user:1"))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	c, mr := setupCache(t, 0)
	require.NoError(t, mr.Set("repohub:user:9", "{not json"))

	var got cachedRepo
	found, err := c.GetJSON(context.Background(), "user:9", &got)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestRedisCache_NilIsNoop(t *testing.T) {
	var c *RedisCache
	ctx := context.Background()

	var got cachedRepo
	found, err := c.GetJSON(ctx, "user:1", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "user:1", got))
	assert.NoError(t, c.Delete(ctx, "user:1"))
	assert.NoError(t, c.DeletePrefix(ctx, "user:"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestConnect_EmptyAddressDisablesCache(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), "", time.Minute))
}

func TestConnect_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Connect(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })
	assert.NoError(t, c.Ping(context.Background()))
}
