// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryBackend_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryBackend(time.Hour)
	defer m.Close()

	_ = m.Set(ctx, "short", []byte("1"), 20*time.Millisecond)
	if _, err := m.Get(ctx, "short"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := m.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after expiry err = %v, want ErrMiss", err)
	}
	if stats := m.GetStats(); stats.Evictions != 1 || stats.TotalKeys != 0 {
		t.Errorf("stats = %+v, want 1 eviction and 0 keys", stats)
	}
}

func TestMemoryBackend_CleanupLoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryBackend(10 * time.Millisecond)
	defer m.Close()

	for _, k := range []string{"a", "b", "c"} {
		_ = m.Set(ctx, k, []byte(k), time.Millisecond)
	}
	_ = m.Set(ctx, "keep", []byte("x"), time.Hour)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.GetStats().TotalKeys == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := m.GetStats().TotalKeys; got != 1 {
		t.Errorf("TotalKeys = %d, want 1 after cleanup", got)
	}
}

func TestMemoryBackend_HitRate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryBackend(time.Hour)
	defer m.Close()

	if m.HitRate() != 0 {
		t.Error("empty backend hit rate should be 0")
	}

	_ = m.Set(ctx, "k", []byte("v"), time.Minute)
	_, _ = m.Get(ctx, "k")
	_, _ = m.Get(ctx, "missing")

	if got := m.HitRate(); got != 50 {
		t.Errorf("HitRate() = %v, want 50", got)
	}
}

func TestMemoryBackend_CloseIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMemoryBackend(time.Millisecond)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}
