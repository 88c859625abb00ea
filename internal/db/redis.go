package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CounterTTL is applied to a daily space counter when it is first created.
const CounterTTL = 7 * 24 * time.Hour

// RedisStore wraps a redis client holding per-space event counters.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis connects to Redis at addr and returns a RedisStore.
func InitRedis(ctx context.Context, addr string) (*RedisStore, error) {
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func spaceCounterKey(network, space, event string, day time.Time) string {
	return fmt.Sprintf("space:%s:%s:%s:%s", network, space, event, day.UTC().Format("2006-01-02"))
}

// IncrementSpaceCounter increments the daily counter for an event on a space.
// CounterTTL is applied on first set. Returns the current count.
func (r *RedisStore) IncrementSpaceCounter(ctx context.Context, network, space, event string, day time.Time) (int64, error) {
	key := spaceCounterKey(network, space, event, day)
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		r.Client.Expire(ctx, key, CounterTTL)
	}
	return val, nil
}

// SpaceCounter returns the daily counter for an event on a space, or 0 when unset.
func (r *RedisStore) SpaceCounter(ctx context.Context, network, space, event string, day time.Time) (int64, error) {
	val, err := r.Client.Get(ctx, spaceCounterKey(network, space, event, day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
