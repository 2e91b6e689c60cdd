// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/realtime"
)

var (
	_ ContextHub     = (*realtime.Hub)(nil)
	_ StreamRegistry = (*realtime.Registry)(nil)
)

type blockingLoop struct {
	ran chan struct{}
}

func (b *blockingLoop) run(ctx context.Context) error {
	close(b.ran)
	<-ctx.Done()
	return ctx.Err()
}

type fakeHub struct{ blockingLoop }

func (f *fakeHub) RunWithContext(ctx context.Context) error { return f.run(ctx) }

type fakeRegistry struct{ blockingLoop }

func (f *fakeRegistry) Serve(ctx context.Context) error { return f.run(ctx) }

func TestRealtimeServices_DelegateAndStop(t *testing.T) {
	hub := &fakeHub{blockingLoop{ran: make(chan struct{})}}
	registry := &fakeRegistry{blockingLoop{ran: make(chan struct{})}}

	tests := []struct {
		name string
		svc  interface {
			Serve(context.Context) error
			String() string
		}
		ran chan struct{}
	}{
		{"realtime-hub", NewHubService(hub), hub.ran},
		{"event-stream-registry", NewRegistryService(registry), registry.ran},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.svc.String() != tt.name {
				t.Errorf("String() = %q", tt.svc.String())
			}

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- tt.svc.Serve(ctx) }()

			select {
			case <-tt.ran:
			case <-time.After(time.Second):
				t.Fatal("wrapped loop not started")
			}
			cancel()
			if err := <-errCh; !errors.Is(err, context.Canceled) {
				t.Errorf("Serve = %v", err)
			}
		})
	}
}

func TestRegistryService_ClosesRealRegistry(t *testing.T) {
	broker := realtime.NewLocalBroker(16)
	defer broker.Close()

	registry := realtime.NewRegistry(realtime.RegistryConfig{Broker: broker, HeartbeatInterval: time.Second})
	stream, err := registry.Register("alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewRegistryService(registry).Serve(ctx) }()
	cancel()
	<-errCh

	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("stream still open after registry shutdown")
	}
}
