// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/chat"
	"github.com/tomtom215/cinelog/internal/config"
)

type countingGC struct {
	runs atomic.Int32
	err  error
}

func (c *countingGC) RunGC() error {
	c.runs.Add(1)
	return c.err
}

func TestNewStoreGCService_DefaultInterval(t *testing.T) {
	svc := NewStoreGCService(&countingGC{}, 0)
	if svc.interval != DefaultGCInterval {
		t.Errorf("interval = %v", svc.interval)
	}
	if svc.String() != "store-gc" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestStoreGCService_RunsOnInterval(t *testing.T) {
	gc := &countingGC{}
	svc := NewStoreGCService(gc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for gc.runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("runs = %d", gc.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
}

func TestStoreGCService_ReturnsGCError(t *testing.T) {
	gc := &countingGC{err: chat.ErrStoreClosed}
	err := NewStoreGCService(gc, time.Millisecond).Serve(context.Background())
	if !errors.Is(err, chat.ErrStoreClosed) {
		t.Errorf("Serve = %v", err)
	}
	if gc.runs.Load() != 1 {
		t.Errorf("runs = %d", gc.runs.Load())
	}
}

func TestStoreGCService_InMemoryStore(t *testing.T) {
	store, err := chat.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var _ GarbageCollector = store

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewStoreGCService(store, 5*time.Millisecond).Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want deadline", err)
	}
}
