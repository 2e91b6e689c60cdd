// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/breaker"
)

func TestRedisBackend_UnreachableDegradesToMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewRedisBackend(RedisOptions{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		OpTimeout:   100 * time.Millisecond,
		Breaker: &breaker.Settings{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			MinRequests:  2,
			FailureRatio: 0.5,
		},
	})
	defer backend.Close()

	c := New(backend)
	calls := 0
	for i := 0; i < 5; i++ {
		got, err := CacheWithFallback(ctx, c, "films:9", time.Minute, func(context.Context) (string, error) {
			calls++
			return "Ivan's Childhood", nil
		})
		if err != nil || got != "Ivan's Childhood" {
			t.Fatalf("call %d = %q, %v", i, got, err)
		}
	}

	if calls != 5 {
		t.Errorf("compute calls = %d, want 5", calls)
	}
	if state := backend.BreakerState(); state != "open" {
		t.Errorf("breaker state = %q, want open after repeated failures", state)
	}
}

func TestRedisBackend_CallerAbortsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	backend := NewRedisBackend(RedisOptions{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		OpTimeout:   100 * time.Millisecond,
		Breaker: &breaker.Settings{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			MinRequests:  2,
			FailureRatio: 0.5,
		},
	})
	defer backend.Close()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		if _, err := backend.Get(canceled, "films:9"); !errors.Is(err, context.Canceled) {
			t.Fatalf("Get with canceled context = %v, want context.Canceled", err)
		}
		if err := backend.Set(canceled, "films:9", []byte("x"), time.Minute); !errors.Is(err, context.Canceled) {
			t.Fatalf("Set with canceled context = %v, want context.Canceled", err)
		}
	}
	if state := backend.BreakerState(); state != "closed" {
		t.Fatalf("breaker state = %q after caller aborts, want closed", state)
	}

	// Real failures still open it.
	for i := 0; i < 3; i++ {
		_, _ = backend.Get(context.Background(), "films:9")
	}
	if state := backend.BreakerState(); state != "open" {
		t.Errorf("breaker state = %q, want open", state)
	}
}

func TestIsCallerAbort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("redis get: %w", context.Canceled), true},
		{fmt.Errorf("redis get: %w", context.DeadlineExceeded), true},
		{errors.New("dial tcp 127.0.0.1:1: connection refused"), false},
		{ErrMiss, false},
	}
	for _, tt := range tests {
		if got := isCallerAbort(tt.err); got != tt.want {
			t.Errorf("isCallerAbort(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
