// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit throttles code requests per email address.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether another request for key is allowed. When it is
// not, retryAfter tells the caller how long the current window still runs.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Nop allows every request. It is used when no Redis URL is configured.
type Nop struct{}

// Allow always allows.
func (Nop) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}

// Redis is a fixed-window counter stored in Redis.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedis allows limit requests per key within each window.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: int64(limit), window: window, prefix: "rl:otp:"}
}

// Allow counts the request. When Redis fails the request is allowed and
// the error is returned for the caller to log.
func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key
	cnt, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, fmt.Errorf("count request: %w", err)
	}
	if cnt == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			slog.WarnContext(ctx, "rate limiter expire failed", "error", err)
		}
	}
	if cnt <= r.limit {
		return true, 0, nil
	}

	ttl, err := r.client.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		// A key without expiry would block forever; restart the window.
		_ = r.client.Expire(ctx, k, r.window).Err()
		ttl = r.window
	}
	return false, ttl, nil
}
