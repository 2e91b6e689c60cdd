// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/cinelog/internal/metrics"
)

// failingBackend fails every operation like an unreachable server.
type failingBackend struct {
	calls atomic.Int64
}

var errBackendDown = errors.New("connection refused")

func (f *failingBackend) Name() string { return "failing" }
func (f *failingBackend) Get(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	return nil, errBackendDown
}
func (f *failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	f.calls.Add(1)
	return errBackendDown
}
func (f *failingBackend) Delete(context.Context, string) error {
	f.calls.Add(1)
	return errBackendDown
}
func (f *failingBackend) Ping(context.Context) error { return errBackendDown }
func (f *failingBackend) Close() error               { return nil }

type film struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func newMemoryCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	backend := NewMemoryBackend(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })
	return New(backend, opts...)
}

func TestCache_SetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newMemoryCache(t)

	var got film
	if c.Get(ctx, "films:603", &got) {
		t.Fatal("expected miss on empty cache")
	}
	if !c.Set(ctx, "films:603", film{ID: 603, Title: "The Matrix"}, time.Minute) {
		t.Fatal("Set should succeed on memory backend")
	}
	if !c.Get(ctx, "films:603", &got) || got.Title != "The Matrix" {
		t.Fatalf("Get = %+v, want The Matrix", got)
	}
	if !c.Delete(ctx, "films:603") {
		t.Fatal("Delete should succeed")
	}
	if c.Get(ctx, "films:603", &got) {
		t.Error("expected miss after Delete")
	}
}

func TestCacheWithFallback_HitSkipsCompute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newMemoryCache(t)
	calls := 0
	compute := func(context.Context) (film, error) {
		calls++
		return film{ID: 1, Title: "Solaris"}, nil
	}

	first, err := CacheWithFallback(ctx, c, "films:1", time.Minute, compute)
	if err != nil || first.Title != "Solaris" {
		t.Fatalf("first call = %+v, %v", first, err)
	}
	second, err := CacheWithFallback(ctx, c, "films:1", time.Minute, compute)
	if err != nil || second.Title != "Solaris" {
		t.Fatalf("second call = %+v, %v", second, err)
	}

	if calls != 1 {
		t.Errorf("compute calls = %d, want 1 (miss then hit)", calls)
	}
}

func TestCacheWithFallback_ErrorNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newMemoryCache(t)
	errUpstream := errors.New("upstream 503")
	calls := 0

	_, err := CacheWithFallback(ctx, c, "films:2", time.Minute, func(context.Context) (film, error) {
		calls++
		return film{}, errUpstream
	})
	if !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v, want upstream error", err)
	}

	got, err := CacheWithFallback(ctx, c, "films:2", time.Minute, func(context.Context) (film, error) {
		calls++
		return film{ID: 2, Title: "Mirror"}, nil
	})
	if err != nil || got.Title != "Mirror" {
		t.Fatalf("retry = %+v, %v", got, err)
	}
	if calls != 2 {
		t.Errorf("compute calls = %d, want 2", calls)
	}
}

func TestCache_FailingBackendAlwaysMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &failingBackend{}
	c := New(backend)
	errorsBefore := testutil.ToFloat64(metrics.CacheErrors.WithLabelValues("failing", "get"))

	calls := 0
	for i := 0; i < 3; i++ {
		got, err := CacheWithFallback(ctx, c, "films:3", time.Minute, func(context.Context) (film, error) {
			calls++
			return film{ID: 3, Title: "Stalker"}, nil
		})
		if err != nil || got.Title != "Stalker" {
			t.Fatalf("call %d = %+v, %v", i, got, err)
		}
	}

	if calls != 3 {
		t.Errorf("compute calls = %d, want 3 with a failing backend", calls)
	}
	if c.Delete(ctx, "films:3") {
		t.Error("Delete should report false on backend failure")
	}
	if got := testutil.ToFloat64(metrics.CacheErrors.WithLabelValues("failing", "get")) - errorsBefore; got != 3 {
		t.Errorf("cache_errors_total{get} delta = %v, want 3", got)
	}
}

func TestCache_NoopAndNil(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, c := range map[string]*Cache{"noop": New(NewNoopBackend()), "nil": nil} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if c.Set(ctx, "k", "v", 0) {
				t.Error("Set should report false")
			}
			var v string
			if c.Get(ctx, "k", &v) {
				t.Error("Get should miss")
			}
			if c.Enabled() {
				t.Error("Enabled should be false")
			}
			calls := 0
			for i := 0; i < 2; i++ {
				_, _ = CacheWithFallback(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
					calls++
					return "v", nil
				})
			}
			if calls != 2 {
				t.Errorf("compute calls = %d, want 2 (pass-through)", calls)
			}
		})
	}
}

func TestCache_UndecodableValueIsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })
	c := New(backend)

	_ = backend.Set(ctx, "films:4", []byte("not json"), time.Minute)

	var got film
	if c.Get(ctx, "films:4", &got) {
		t.Error("undecodable value should be reported as a miss")
	}
}

func TestCache_KeyPrefixAndDefaultTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })
	c := New(backend, WithKeyPrefix("cinelog"), WithDefaultTTL(time.Hour))

	c.Set(ctx, "films:5", film{ID: 5}, 0)

	if _, err := backend.Get(ctx, "cinelog:films:5"); err != nil {
		t.Errorf("expected prefixed key in backend, got %v", err)
	}
}

func TestCacheWithFallback_WithoutSingleFlightComputesPerCaller(t *testing.T) {
	t.Parallel()

	const callers = 5
	ctx := context.Background()
	c := newMemoryCache(t)

	var calls atomic.Int64
	var entered sync.WaitGroup
	entered.Add(callers)
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = CacheWithFallback(ctx, c, "films:6", time.Minute, func(context.Context) (film, error) {
				calls.Add(1)
				entered.Done()
				<-release
				return film{ID: 6}, nil
			})
		}()
	}

	entered.Wait()
	close(release)
	wg.Wait()

	if got := calls.Load(); got != callers {
		t.Errorf("compute calls = %d, want %d", got, callers)
	}
}

func TestCacheWithFallback_SingleFlightCollapsesMisses(t *testing.T) {
	t.Parallel()

	const callers = 10
	ctx := context.Background()
	c := newMemoryCache(t, WithSingleFlight())

	var calls atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]film, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = CacheWithFallback(ctx, c, "films:7", time.Minute, func(context.Context) (film, error) {
				calls.Add(1)
				<-release
				return film{ID: 7, Title: "Nostalghia"}, nil
			})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("compute calls = %d, want 1", got)
	}
	for i, r := range results {
		if r.Title != "Nostalghia" {
			t.Errorf("result[%d] = %+v", i, r)
		}
	}
}
