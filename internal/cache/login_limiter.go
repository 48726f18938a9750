package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts failed logins per email in a fixed window. The window
// starts at the first failure and is not extended by later ones.
type LoginLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewLoginLimiter(client *redis.Client, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "login:failures:",
	}
}

// key hashes the email so addresses never appear in Redis.
func (l *LoginLimiter) key(email string) string {
	sum := sha256.Sum256([]byte(email))
	return l.prefix + hex.EncodeToString(sum[:])
}

func (l *LoginLimiter) Allow(ctx context.Context, email string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	count, err := l.client.Get(ctx, l.key(email)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return count < l.limit, nil
}

func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) error {
	key := l.key(email)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("expire login failures: %w", err)
		}
	}
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.client.Del(ctx, l.key(email)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
