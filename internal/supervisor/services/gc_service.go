// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/cinelog/internal/logging"
)

// DefaultGCInterval is used when NewStoreGCService gets a non-positive interval.
const DefaultGCInterval = 5 * time.Minute

// GarbageCollector is satisfied by *chat.Service and *chat.Store.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService reclaims BadgerDB value-log space on a fixed interval.
//
// A GC error is returned so the supervisor restarts the loop with backoff;
// the next run begins a full interval later.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewStoreGCService wraps gc.
func NewStoreGCService(gc GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	return &StoreGCService{gc: gc, interval: interval, name: "store-gc"}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(); err != nil {
				return fmt.Errorf("store gc: %w", err)
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Store GC pass complete")
		}
	}
}

func (s *StoreGCService) String() string {
	return s.name
}
