// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/cinelog/internal/breaker"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int

	// DialTimeout and OpTimeout bound connection setup and each command.
	DialTimeout time.Duration
	OpTimeout   time.Duration

	// Breaker overrides the circuit breaker settings. Zero value uses
	// breaker.DefaultSettings with a shorter open timeout.
	Breaker *breaker.Settings
}

// RedisBackend stores entries in Redis behind a circuit breaker. While the
// breaker is open every call fails fast and the cache layer degrades to
// always-miss without waiting on network timeouts.
type RedisBackend struct {
	client  *redis.Client
	breaker *breaker.Breaker[[]byte]
}

// NewRedisBackend creates a Redis backend. The connection is lazy; an
// unreachable server surfaces as errors from individual operations.
func NewRedisBackend(opts RedisOptions) *RedisBackend {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 500 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
		MaxRetries:   1,
	})

	settings := breaker.DefaultSettings()
	settings.Timeout = 15 * time.Second
	settings.MinRequests = 5
	settings.FailureRatio = 0.5
	if opts.Breaker != nil {
		settings = *opts.Breaker
	}
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrMiss) || isCallerAbort(err)
	}

	return &RedisBackend{
		client:  client,
		breaker: breaker.New[[]byte]("redis-cache", settings),
	}
}

// isCallerAbort reports whether err comes from the caller giving up. Those
// say nothing about Redis health. A context that is already done skips the
// breaker entirely; one that ends mid-command is not counted as a failure.
func isCallerAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// opError wraps a failed command. When the caller's context is done its
// error wins over whatever the network layer reported.
func opError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("redis %s: %w", op, ctxErr)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

// Name implements Backend.
func (r *RedisBackend) Name() string { return "redis" }

// Get implements Backend. redis.Nil maps to ErrMiss.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, opError(ctx, "get", err)
	}
	return r.breaker.Execute(func() ([]byte, error) {
		value, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		if err != nil {
			return nil, opError(ctx, "get", err)
		}
		return value, nil
	})
}

// Set implements Backend.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return opError(ctx, "set", err)
	}
	_, err := r.breaker.Execute(func() ([]byte, error) {
		if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return nil, opError(ctx, "set", err)
		}
		return nil, nil
	})
	return err
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return opError(ctx, "del", err)
	}
	_, err := r.breaker.Execute(func() ([]byte, error) {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return nil, opError(ctx, "del", err)
		}
		return nil, nil
	})
	return err
}

// Ping implements Backend.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// BreakerState exposes the breaker state for health reporting.
func (r *RedisBackend) BreakerState() string {
	return r.breaker.State()
}
