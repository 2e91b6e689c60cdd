// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package testinfra provides container helpers for integration tests.
//
// It uses testcontainers-go to run the real services the cache layer talks
// to, so the Redis backend is exercised against a production-equivalent
// server instead of a mock.
//
// # Redis Container
//
//	func TestRedisBackend(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redis, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redis)
//
//	    backend := cache.NewRedisBackend(cache.RedisOptions{Addr: redis.Addr})
//	    // ...
//	}
//
// # CI Considerations
//
// All files carry the integration build tag. Run them with
// go test -tags integration ./...; tests skip when Docker is unavailable.
package testinfra
