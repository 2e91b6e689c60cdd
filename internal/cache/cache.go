// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
)

// DefaultTTL applies when Set is called with a non-positive TTL and no
// WithDefaultTTL option was given.
const DefaultTTL = 5 * time.Minute

// Cache is the read-through/invalidation layer used by the services. It
// never returns backend errors: failures are logged, counted and reported
// as a miss (Get) or false (Set, Delete). A nil *Cache behaves like a cache
// with the no-op backend.
type Cache struct {
	backend      Backend
	prefix       string
	defaultTTL   time.Duration
	singleFlight bool
	group        singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithKeyPrefix prepends prefix and ':' to every key.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithDefaultTTL sets the TTL used when Set receives ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithSingleFlight makes concurrent CacheWithFallback misses for the same key
// share one compute call.
func WithSingleFlight() Option {
	return func(c *Cache) {
		c.singleFlight = true
	}
}

// New creates a cache over backend.
func New(backend Backend, opts ...Option) *Cache {
	if backend == nil {
		backend = NewNoopBackend()
	}
	c := &Cache{
		backend:    backend,
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BackendName returns the active backend name ("redis", "memory", "none").
func (c *Cache) BackendName() string {
	if c == nil {
		return "none"
	}
	return c.backend.Name()
}

// Enabled reports whether values can actually be stored.
func (c *Cache) Enabled() bool {
	return c != nil && c.backend.Name() != "none"
}

func (c *Cache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get decodes the value stored under key into dst. It returns false on a
// miss, a backend failure or an undecodable value.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	name := c.backend.Name()

	raw, err := c.backend.Get(ctx, c.key(key))
	if err != nil {
		switch {
		case errors.Is(err, ErrMiss), errors.Is(err, ErrDisabled):
		default:
			metrics.CacheErrors.WithLabelValues(name, "get").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Str("backend", name).Msg("Cache read failed, treating as miss")
		}
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.CacheErrors.WithLabelValues(name, "decode").Inc()
		metrics.CacheMisses.WithLabelValues(name).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Cache value undecodable, treating as miss")
		return false
	}

	metrics.CacheHits.WithLabelValues(name).Inc()
	return true
}

// Set encodes value and stores it for ttl (the default TTL when ttl <= 0).
// It reports whether the value was stored.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c == nil {
		return false
	}
	name := c.backend.Name()
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		metrics.CacheErrors.WithLabelValues(name, "encode").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Cache value unencodable, skipping")
		return false
	}

	if err := c.backend.Set(ctx, c.key(key), raw, ttl); err != nil {
		if !errors.Is(err, ErrDisabled) {
			metrics.CacheErrors.WithLabelValues(name, "set").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Str("backend", name).Msg("Cache write failed")
		}
		return false
	}
	return true
}

// Delete invalidates key. It reports whether the backend acknowledged it.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	if c == nil {
		return false
	}
	name := c.backend.Name()

	if err := c.backend.Delete(ctx, c.key(key)); err != nil {
		if !errors.Is(err, ErrDisabled) {
			metrics.CacheErrors.WithLabelValues(name, "delete").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Str("backend", name).Msg("Cache invalidation failed")
		}
		return false
	}
	return true
}

// Ping checks backend reachability.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.backend.Ping(ctx)
}

// Close releases the backend.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.backend.Close()
}

// CacheWithFallback returns the cached value for key, or runs compute,
// caches its result for ttl and returns it.
//
// A hit never calls compute. Errors from compute are returned unchanged and
// nothing is cached. Without WithSingleFlight there is no cross-caller
// coordination: N concurrent misses for one key run compute N times.
func CacheWithFallback[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	if c == nil || !c.singleFlight {
		value, err := compute(ctx)
		if err != nil {
			return value, err
		}
		c.Set(ctx, key, value, ttl)
		return value, nil
	}

	shared, err, _ := c.group.Do(key, func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return shared.(T), nil
}
