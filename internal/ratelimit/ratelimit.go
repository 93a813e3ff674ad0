// Package ratelimit implements a distributed fixed-window rate limiter over
// Redis, adapted from the existing cache client's counter primitives
// (Increment/Expire) for the one HTTP-facing surface in this domain that
// benefits from a shared limiter: the admin endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config mirrors the existing Redis cache client's connection shape.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Limiter enforces a fixed-window request cap per key. A disabled or
// unreachable Limiter allows every request, the same fail-open posture the
// admin channel takes toward Redis outages elsewhere in this codebase.
type Limiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// New builds a Limiter allowing at most limit requests per window, per key.
func New(cfg Config, limit int, window time.Duration) (*Limiter, error) {
	if !cfg.Enabled {
		return &Limiter{limit: int64(limit), window: window}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Limiter{client: client, limit: int64(limit), window: window}, nil
}

// Close releases the underlying Redis connection, if one was opened.
func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Allow increments key's counter in the current window and reports whether
// the caller is still under the configured limit. The counter's TTL is set
// only on the window's first increment, so the window slides forward from
// each key's first request rather than from a shared clock boundary.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open: a Redis hiccup should not take down the admin surface.
		return true, nil
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return count <= l.limit, nil
}
