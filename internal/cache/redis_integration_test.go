// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/testinfra"
)

func TestRedisBackend_Integration(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	redis, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, redis.Container)

	backend := NewRedisBackend(RedisOptions{Addr: redis.Addr})
	defer backend.Close()

	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	t.Run("miss maps to ErrMiss", func(t *testing.T) {
		if _, err := backend.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
			t.Errorf("err = %v, want ErrMiss", err)
		}
	})

	t.Run("read-through and invalidation", func(t *testing.T) {
		c := New(backend, WithKeyPrefix("cinelog-test"))
		key := Key("conversations", "alice", "list")
		calls := 0
		compute := func(context.Context) ([]string, error) {
			calls++
			return []string{"c1", "c2"}, nil
		}

		for i := 0; i < 2; i++ {
			if _, err := CacheWithFallback(ctx, c, key, time.Minute, compute); err != nil {
				t.Fatal(err)
			}
		}
		if calls != 1 {
			t.Fatalf("compute calls = %d, want 1", calls)
		}

		if !c.Delete(ctx, key) {
			t.Fatal("Delete should succeed against a live server")
		}
		if _, err := CacheWithFallback(ctx, c, key, time.Minute, compute); err != nil {
			t.Fatal(err)
		}
		if calls != 2 {
			t.Errorf("compute calls after invalidation = %d, want 2", calls)
		}
	})

	t.Run("ttl expires", func(t *testing.T) {
		if err := backend.Set(ctx, "short", []byte("x"), time.Second); err != nil {
			t.Fatal(err)
		}
		time.Sleep(1500 * time.Millisecond)
		if _, err := backend.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
			t.Errorf("err = %v, want ErrMiss after TTL", err)
		}
	})

	t.Run("outage degrades to miss", func(t *testing.T) {
		c := New(backend)
		if err := redis.Stop(ctx); err != nil {
			t.Fatalf("stop redis: %v", err)
		}

		calls := 0
		got, err := CacheWithFallback(ctx, c, "films:1", time.Minute, func(context.Context) (string, error) {
			calls++
			return "Andrei Rublev", nil
		})
		if err != nil || got != "Andrei Rublev" || calls != 1 {
			t.Errorf("got %q, err %v, calls %d", got, err, calls)
		}
	})
}
