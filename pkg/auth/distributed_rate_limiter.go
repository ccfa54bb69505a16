package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per fixed window in Redis, so every
// instance behind a load balancer shares the same budget.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
}

// NewRedisRateLimiter allows limit requests per window for each key.
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
	}
}

// Allow increments the key's counter for the current window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().Truncate(r.window)
	redisKey := fmt.Sprintf("%sratelimit:%s:%d", r.keyPrefix, key, windowStart.Unix())

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, r.window+time.Second)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return incr.Val() <= int64(r.limit), nil
}
