// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/realtime"
)

func roundTrip(t *testing.T, broker realtime.Broker) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := broker.Subscribe(ctx, realtime.UserRoom("bob"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	// NATS subscriptions propagate asynchronously; publish until one lands.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := broker.Broadcast(ctx, realtime.UserRoom("bob"), realtime.NewTypingEvent("c1", "alice", true)); err != nil {
			t.Fatalf("Broadcast: %v", err)
		}
		select {
		case env := <-events:
			if env.Event.Type != realtime.EventTypingStart {
				t.Errorf("event type = %q", env.Event.Type)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("event not delivered")
		}
	}
}

func TestInitBroker_Local(t *testing.T) {
	cfg := &config.Config{Realtime: config.RealtimeConfig{BufferSize: 8}}

	components, err := InitBroker(cfg)
	if err != nil {
		t.Fatalf("InitBroker: %v", err)
	}
	defer components.Shutdown()

	if components.embedded != nil {
		t.Error("embedded server started with NATS disabled")
	}
	roundTrip(t, components.Broker)
}

func TestInitBroker_EmbeddedNATS(t *testing.T) {
	cfg := &config.Config{
		Realtime: config.RealtimeConfig{BufferSize: 8},
		NATS: config.NATSConfig{
			Enabled:        true,
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           -1,
			SubjectPrefix:  "cinelog.test",
			MaxReconnects:  1,
			ReconnectWait:  100 * time.Millisecond,
		},
	}

	components, err := InitBroker(cfg)
	if err != nil {
		t.Fatalf("InitBroker: %v", err)
	}
	defer components.Shutdown()

	if components.embedded == nil || !components.embedded.IsRunning() {
		t.Fatal("embedded server not running")
	}
	roundTrip(t, components.Broker)
}

func TestBrokerComponents_ShutdownNil(t *testing.T) {
	var c *BrokerComponents
	c.Shutdown()
}
