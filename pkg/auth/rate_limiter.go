package auth

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucketLimiter keeps one token bucket per key. Idle buckets expire so
// the map does not grow with every client ever seen.
type TokenBucketLimiter struct {
	buckets *gocache.Cache
	limit   rate.Limit
	burst   int
}

// NewTokenBucketLimiter allows burst requests at once, refilled at limit
// per second.
func NewTokenBucketLimiter(limit rate.Limit, burst int, idle time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		buckets: gocache.New(idle, idle),
		limit:   limit,
		burst:   burst,
	}
}

// Allow checks if a request is allowed
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, error) {
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.buckets.Add(key, lim, gocache.DefaultExpiration); err != nil {
		existing, ok := l.buckets.Get(key)
		if ok {
			lim = existing.(*rate.Limiter)
		}
	}
	return lim.Allow(), nil
}

// IPRateLimiter limits requests per client IP.
type IPRateLimiter struct {
	limiter RateLimiter
	perMin  int
}

// NewIPRateLimiter allows requestsPerMinute per IP with the same burst.
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return NewIPRateLimiterWith(
		NewTokenBucketLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute, 10*time.Minute),
		requestsPerMinute,
	)
}

// NewIPRateLimiterWith limits IPs with an existing limiter, for example a
// RedisRateLimiter shared by every instance.
func NewIPRateLimiterWith(limiter RateLimiter, requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{limiter: limiter, perMin: requestsPerMinute}
}

// Allow checks if a request from an IP is allowed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, fmt.Sprintf("ip:%s", ip))
}

// RequestsPerMinute is the configured limit, for error messages.
func (l *IPRateLimiter) RequestsPerMinute() int {
	return l.perMin
}
