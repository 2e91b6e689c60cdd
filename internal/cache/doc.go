// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package cache provides the read-through/invalidation cache used across the API.

The Cache type wraps a Backend and never surfaces backend failures: a broken
or unreachable backend makes every read a miss and every write a no-op, so
callers fall through to the source of truth.

# Backends

  - RedisBackend: go-redis v9 behind a gobreaker circuit breaker
  - MemoryBackend: in-process TTL map with a periodic cleanup goroutine
  - NoopBackend: always misses (selected when no Redis address is configured)

# Read-through

	convs, err := cache.CacheWithFallback(ctx, c, cache.Key("conversations", userID, "list"), time.Minute,
	    func(ctx context.Context) ([]models.ConversationSummary, error) {
	        return store.ListConversations(ctx, userID)
	    })

Writers invalidate with Delete after changing the source of truth.

# Stampedes

CacheWithFallback does not coordinate concurrent misses unless the cache was
built with WithSingleFlight (CACHE_SINGLE_FLIGHT=true), in which case
golang.org/x/sync/singleflight collapses them into one compute call per key.

# Keys

Key joins domain, subject and qualifiers with ':'; GenerateKey hashes
arbitrary parameters into a bounded key.
*/
package cache
