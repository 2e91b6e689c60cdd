// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by a Backend when the key is absent or expired.
	ErrMiss = errors.New("cache: miss")

	// ErrDisabled is returned by the no-op backend for every operation.
	ErrDisabled = errors.New("cache: disabled")
)

// Backend stores opaque values with a TTL. Implementations return ErrMiss for
// absent keys; any other error is a backend failure.
type Backend interface {
	// Name identifies the backend in metrics and logs.
	Name() string

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Ping reports backend reachability for readiness checks.
	Ping(ctx context.Context) error

	Close() error
}

// NoopBackend is the pass-through backend used when no cache is configured.
type NoopBackend struct{}

// NewNoopBackend returns a backend that never stores anything.
func NewNoopBackend() *NoopBackend {
	return &NoopBackend{}
}

// Name implements Backend.
func (NoopBackend) Name() string { return "none" }

// Get implements Backend.
func (NoopBackend) Get(context.Context, string) ([]byte, error) { return nil, ErrDisabled }

// Set implements Backend.
func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return ErrDisabled }

// Delete implements Backend.
func (NoopBackend) Delete(context.Context, string) error { return ErrDisabled }

// Ping implements Backend.
func (NoopBackend) Ping(context.Context) error { return nil }

// Close implements Backend.
func (NoopBackend) Close() error { return nil }
