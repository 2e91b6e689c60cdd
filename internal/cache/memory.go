// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/cinelog/internal/metrics"
)

// memoryEntry represents a cached item with expiration
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend is a thread-safe in-process TTL map. Expired entries are
// dropped lazily on read and periodically by a cleanup goroutine.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stats   Stats

	stopOnce sync.Once
	stop     chan struct{}
}

// Stats tracks in-process cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// NewMemoryBackend creates a memory backend whose cleanup loop runs every
// cleanupInterval until Close is called.
//
//	backend := cache.NewMemoryBackend(time.Minute)
//	defer backend.Close()
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	m := &MemoryBackend{
		entries: make(map[string]memoryEntry),
		stats:   Stats{LastCleanup: time.Now()},
		stop:    make(chan struct{}),
	}

	go m.cleanupLoop(cleanupInterval)

	return m
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return "memory" }

// Get returns the stored bytes or ErrMiss. An expired entry is removed and
// counted as an eviction.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		m.record(func(s *Stats) { s.Misses++ })
		return nil, ErrMiss
	}

	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, ok := m.entries[key]; ok && time.Now().After(current.expiresAt) {
			delete(m.entries, key)
			m.stats.Evictions++
			m.stats.TotalKeys = int64(len(m.entries))
			metrics.CacheEvictions.WithLabelValues(m.Name()).Inc()
		}
		m.stats.Misses++
		m.mu.Unlock()
		return nil, ErrMiss
	}

	m.record(func(s *Stats) { s.Hits++ })
	return entry.data, nil
}

// Set stores value until ttl elapses.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}
	m.stats.TotalKeys = int64(len(m.entries))
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.stats.Evictions++
		m.stats.TotalKeys = int64(len(m.entries))
	}
	return nil
}

// Ping implements Backend.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutine. Safe to call more than once.
func (m *MemoryBackend) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// GetStats returns a snapshot of the backend counters.
func (m *MemoryBackend) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// HitRate returns the cache hit rate as a percentage
func (m *MemoryBackend) HitRate() float64 {
	stats := m.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (m *MemoryBackend) record(fn func(*Stats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

// cleanupLoop periodically removes expired entries
func (m *MemoryBackend) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes all expired entries
func (m *MemoryBackend) cleanup() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	evictions := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			evictions++
		}
	}

	m.stats.Evictions += int64(evictions)
	m.stats.TotalKeys = int64(len(m.entries))
	m.stats.LastCleanup = now
	if evictions > 0 {
		metrics.CacheEvictions.WithLabelValues(m.Name()).Add(float64(evictions))
	}
}
