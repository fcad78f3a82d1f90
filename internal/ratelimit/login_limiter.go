package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited signals the caller exceeded the login attempt budget.
var ErrRateLimited = errors.New("rate limited")

// LoginLimiter throttles login attempts. Implementations must be safe for
// concurrent use.
type LoginLimiter interface {
	Allow(ctx context.Context, identifier, ip string) error
}

// RedisLoginLimiter applies a fixed-window counter per identifier and per IP.
type RedisLoginLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisLoginLimiter builds a limiter backed by the shared redis client.
func NewRedisLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLoginLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

// Allow records one attempt and returns ErrRateLimited once the window
// budget is exhausted for either key. Redis unavailability fails open so an
// outage does not lock every account out.
func (l *RedisLoginLimiter) Allow(ctx context.Context, identifier, ip string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if err := l.allowKey(ctx, "login:id:"+identifier); err != nil {
		return err
	}
	if ip != "" {
		return l.allowKey(ctx, "login:ip:"+ip)
	}
	return nil
}

func (l *RedisLoginLimiter) allowKey(ctx context.Context, key string) error {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return nil
		}
	}
	if count > int64(l.maxAttempts) {
		return fmt.Errorf("%w: too many login attempts", ErrRateLimited)
	}
	return nil
}

// NopLimiter disables throttling; used when redis is not configured.
type NopLimiter struct{}

// Allow always permits the attempt.
func (NopLimiter) Allow(context.Context, string, string) error { return nil }
