// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/api"
	"github.com/tomtom215/cinelog/internal/cache"
	"github.com/tomtom215/cinelog/internal/chat"
	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/delivery"
	"github.com/tomtom215/cinelog/internal/realtime"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := chat.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	broker := realtime.NewLocalBroker(64)
	svc := chat.NewService(store, cache.New(cache.NewNoopBackend()), broker)

	hub := realtime.NewHub(realtime.HubConfig{Broker: broker, Chat: svc, Announcer: svc})
	registry := realtime.NewRegistry(realtime.RegistryConfig{Broker: broker, Announcer: svc, HeartbeatInterval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	go func() { _ = registry.Serve(ctx) }()

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.RateLimitDisabled = true
	mw := api.NewChiMiddleware(mwConfig)
	router := api.NewRouter(api.NewHandler(svc, nil), mw, api.RouterConfig{
		Socket: hub,
		Events: realtime.NewStreamHandler(registry),
	})
	server := httptest.NewServer(router.SetupChi())

	t.Cleanup(func() {
		server.Close()
		cancel()
		_ = broker.Close()
		_ = store.Close()
	})
	return server
}

func newClient(server *httptest.Server, userID, transport string) *delivery.Client {
	return delivery.New(&config.ClientConfig{
		BaseURL:              server.URL,
		UserID:               userID,
		Transport:            transport,
		SocketPath:           "/socket",
		EventsPath:           "/events",
		HeartbeatInterval:    time.Second,
		MaxReconnectAttempts: 2,
		InitialBackoff:       10 * time.Millisecond,
		MaxBackoff:           50 * time.Millisecond,
		RequestTimeout:       5 * time.Second,
	})
}

func TestRun_SendsLinesAndQuits(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	in := strings.NewReader("hello bob\n/bogus\n/history\n/quit\n")
	if err := run(ctx, newClient(server, "alice", config.TransportWebSocket), "alice", "bob", in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !strings.Contains(out.String(), "alice: hello bob") {
		t.Errorf("history not printed:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "! unknown command /bogus") {
		t.Errorf("unknown command not reported:\n%s", out.String())
	}

	bob := newClient(server, "bob", config.TransportStream)
	list, err := bob.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(list) != 1 || list[0].UnreadCount != 1 {
		t.Fatalf("bob's conversations = %+v", list)
	}
	page, err := bob.History(ctx, list[0].ID, 0, 0)
	if err != nil || len(page.Messages) != 1 || page.Messages[0].Content != "hello bob" {
		t.Fatalf("bob's history = %+v, %v", page, err)
	}
}

func TestRun_PrintsPushedMessages(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bob := newClient(server, "bob", config.TransportStream)
	conv, err := bob.StartConversation(ctx, "alice")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}

	alice := newClient(server, "alice", config.TransportStream)
	connected := make(chan struct{})
	var once bool
	alice.OnConnectionChange(func(s delivery.ConnectionState) {
		if s == delivery.StateConnected && !once {
			once = true
			close(connected)
		}
	})

	reader, writer := newBlockingInput()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, alice, "alice", "bob", reader, out) }()

	select {
	case <-connected:
	case <-ctx.Done():
		t.Fatal("alice never connected")
	}

	if _, err := bob.Send(ctx, conv.ID, "are you watching tonight?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "bob: are you watching tonight?") {
		if time.Now().After(deadline) {
			t.Fatalf("pushed message not printed:\n%s", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	writer("/quit\n")
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
}
