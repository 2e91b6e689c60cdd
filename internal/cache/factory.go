// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"time"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/logging"
)

// NewFromConfig builds the cache selected by cfg. An unreachable Redis is
// logged and kept: the breaker degrades it to always-miss until it recovers.
func NewFromConfig(ctx context.Context, cfg config.CacheConfig) *Cache {
	var backend Backend
	switch cfg.ResolvedBackend() {
	case config.CacheBackendRedis:
		redisBackend := NewRedisBackend(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisBackend.Ping(pingCtx); err != nil {
			logging.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable at startup, cache will miss until it recovers")
		}
		cancel()
		backend = redisBackend
	case config.CacheBackendMemory:
		backend = NewMemoryBackend(time.Minute)
	default:
		backend = NewNoopBackend()
	}

	opts := []Option{
		WithKeyPrefix(cfg.KeyPrefix),
		WithDefaultTTL(cfg.DefaultTTL),
	}
	if cfg.SingleFlight {
		opts = append(opts, WithSingleFlight())
	}

	logging.Info().
		Str("backend", backend.Name()).
		Bool("single_flight", cfg.SingleFlight).
		Dur("default_ttl", cfg.DefaultTTL).
		Msg("Cache initialized")

	return New(backend, opts...)
}
