package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginFailurePrefix = "login:fail:"

// LoginLimiter counts failed logins per identifier in a fixed window. A nil
// limiter, or one without a client, allows everything.
type LoginLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewLoginLimiter(client *redis.Client, limit int, window time.Duration) *LoginLimiter {
	if client == nil || limit <= 0 || window <= 0 {
		return nil
	}
	return &LoginLimiter{client: client, limit: limit, window: window}
}

func failureKey(identifier string) string {
	return loginFailurePrefix + strings.ToLower(strings.TrimSpace(identifier))
}

// Allow reports whether another attempt for identifier may proceed.
func (l *LoginLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	if l == nil {
		return true, nil
	}
	count, err := l.client.Get(ctx, failureKey(identifier)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("read login failures: %w", err)
	}
	return count < l.limit, nil
}

func (l *LoginLimiter) RecordFailure(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	key := failureKey(identifier)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("count login failure: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("expire login failures: %w", err)
		}
	}
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return l.client.Del(ctx, failureKey(identifier)).Err()
}
