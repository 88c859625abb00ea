package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(store.Close)
	return store, mr
}

func TestIncrementSpaceCounter(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2022, 4, 15, 23, 59, 0, 0, time.UTC)

	v, err := store.IncrementSpaceCounter(ctx, "polygon", "7", "visits", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = store.IncrementSpaceCounter(ctx, "polygon", "7", "visits", day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	key := "space:polygon:7:visits:2022-04-15"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, CounterTTL, mr.TTL(key))

	got, err := store.SpaceCounter(ctx, "polygon", "7", "visits", day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestSpaceCounterUnset(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.SpaceCounter(context.Background(), "polygon", "7", "clicks", time.Now())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestInitRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := InitRedis(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
