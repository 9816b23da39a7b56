package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "modelgate:cache:"

// Redis is a shared cache tier. Redis enforces the TTL itself. Errors are
// logged and reported as misses; a broken Redis never fails a request.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis connects using a redis:// URL.
func NewRedis(url string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis_cache: parse url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: redis.NewClient(opts), logger: logger}, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	v, _, ok := r.lookup(ctx, key)
	return v, ok
}

// lookup returns the value with its remaining TTL.
func (r *Redis) lookup(ctx context.Context, key string) ([]byte, time.Duration, bool) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, redisKeyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, redisKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache get failed", zap.Error(err))
		}
		return nil, 0, false
	}

	val, err := getCmd.Bytes()
	if err != nil {
		return nil, 0, false
	}
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return nil, 0, false
	}
	return val, ttl, true
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.Error(err))
	}
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
