package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts attempts in fixed windows shared by every instance
// of the service.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	rate   int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing rate attempts per window for each key
func NewRedisLimiter(client redis.UniversalClient, prefix string, rate int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, rate: rate, window: window}
}

// Allow increments the counter for key and reports whether it is within budget
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment attempt counter: %w", err)
	}

	// The TTL is set on the first hit only, so the window does not slide.
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set attempt window: %w", err)
		}
	}

	return count <= int64(l.rate), nil
}

// Reset clears the counter for key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset attempt counter: %w", err)
	}
	return nil
}
