// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/cache"
	"github.com/tomtom215/cinelog/internal/models"
	"github.com/tomtom215/cinelog/internal/realtime"
)

type serviceFixture struct {
	svc    *Service
	store  *Store
	broker *realtime.WatermillBroker
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := newTestStore(t)
	backend := cache.NewMemoryBackend(time.Minute)
	c := cache.New(backend, cache.WithKeyPrefix("test"))
	broker := realtime.NewLocalBroker(64)
	t.Cleanup(func() {
		_ = broker.Close()
		_ = c.Close()
	})

	return &serviceFixture{
		svc:    NewService(store, c, broker),
		store:  store,
		broker: broker,
	}
}

func (f *serviceFixture) subscribe(t *testing.T, room string) <-chan realtime.Envelope {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := f.broker.Subscribe(ctx, room)
	if err != nil {
		t.Fatalf("Subscribe(%s): %v", room, err)
	}
	return ch
}

func receive(t *testing.T, ch <-chan realtime.Envelope) realtime.Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return realtime.Envelope{}
}

func TestService_SendMessageBroadcasts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	conv, _, err := f.svc.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	chatRoom := f.subscribe(t, realtime.ChatRoom(conv.ID))
	bobRoom := f.subscribe(t, realtime.UserRoom("bob"))
	aliceRoom := f.subscribe(t, realtime.UserRoom("alice"))

	msg, err := f.svc.SendMessage(ctx, conv.ID, "alice", "hello", models.MessageKindText)
	if err != nil {
		t.Fatal(err)
	}

	for name, ch := range map[string]<-chan realtime.Envelope{
		"chat":  chatRoom,
		"bob":   bobRoom,
		"alice": aliceRoom,
	} {
		env := receive(t, ch)
		if env.Event.Type != realtime.EventNewMessage {
			t.Errorf("%s room got %s, want new-message", name, env.Event.Type)
			continue
		}
		if env.Event.Message == nil || env.Event.Message.ID != msg.ID {
			t.Errorf("%s room got message %+v, want %s", name, env.Event.Message, msg.ID)
		}
		if env.Event.ConversationID != conv.ID {
			t.Errorf("%s room conversationId = %s", name, env.Event.ConversationID)
		}
	}
}

func TestService_SendMessageRejectsNonParticipant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	conv, _, _ := f.svc.FindOrCreateConversation(ctx, "alice", "bob")

	if _, err := f.svc.SendMessage(ctx, conv.ID, "mallory", "hi", ""); err == nil {
		t.Fatal("expected error for non-participant sender")
	}
}

func TestService_BroadcastTypingReachesCounterpartUserRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	conv, _, err := f.svc.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	chatRoom := f.subscribe(t, realtime.ChatRoom(conv.ID))
	bobRoom := f.subscribe(t, realtime.UserRoom("bob"))
	aliceRoom := f.subscribe(t, realtime.UserRoom("alice"))

	if err := f.svc.BroadcastTyping(ctx, conv.ID, "alice", true); err != nil {
		t.Fatal(err)
	}
	for name, ch := range map[string]<-chan realtime.Envelope{"chat": chatRoom, "bob": bobRoom} {
		env := receive(t, ch)
		if env.Event.Type != realtime.EventTypingStart || env.Event.UserID != "alice" || env.Event.ConversationID != conv.ID {
			t.Errorf("%s room got %+v", name, env.Event)
		}
	}

	select {
	case env := <-aliceRoom:
		t.Errorf("typist's own user room got %+v", env.Event)
	case <-time.After(100 * time.Millisecond):
	}

	if err := f.svc.BroadcastTyping(ctx, conv.ID, "mallory", true); err == nil {
		t.Error("expected error for non-participant")
	}
}

func TestService_ConcurrentSendsBroadcastInPersistedOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	conv, _, _ := f.svc.FindOrCreateConversation(ctx, "alice", "bob")
	room := f.subscribe(t, realtime.ChatRoom(conv.ID))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 1 {
				sender = "bob"
			}
			if _, err := f.svc.SendMessage(ctx, conv.ID, sender, fmt.Sprintf("m%d", i), ""); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}

	var received []time.Time
	for i := 0; i < n; i++ {
		env := receive(t, room)
		received = append(received, env.Event.Message.CreatedAt)
	}
	wg.Wait()

	for i := 1; i < len(received); i++ {
		if !received[i].After(received[i-1]) {
			t.Fatalf("event %d createdAt %v not after %v", i, received[i], received[i-1])
		}
	}
}

func TestService_ConversationListCacheInvalidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	conv, _, _ := f.svc.FindOrCreateConversation(ctx, "alice", "bob")

	list, err := f.svc.ListConversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].UnreadCount != 0 {
		t.Fatalf("initial list = %+v", list)
	}

	// Writes that bypass the service leave the cached list in place.
	if _, err := f.store.AppendMessage(ctx, conv.ID, "alice", "direct", ""); err != nil {
		t.Fatal(err)
	}
	list, _ = f.svc.ListConversations(ctx, "bob")
	if list[0].UnreadCount != 0 {
		t.Fatalf("expected cached list, got unread %d", list[0].UnreadCount)
	}

	if _, err := f.svc.SendMessage(ctx, conv.ID, "alice", "through service", ""); err != nil {
		t.Fatal(err)
	}
	list, _ = f.svc.ListConversations(ctx, "bob")
	if list[0].UnreadCount != 2 {
		t.Errorf("unread after send = %d, want 2", list[0].UnreadCount)
	}
	if list[0].LastMessage == nil || list[0].LastMessage.Content != "through service" {
		t.Errorf("lastMessage = %+v", list[0].LastMessage)
	}

	if _, err := f.svc.ListMessages(ctx, conv.ID, "bob", 1, 10); err != nil {
		t.Fatal(err)
	}
	list, _ = f.svc.ListConversations(ctx, "bob")
	if list[0].UnreadCount != 0 {
		t.Errorf("unread after history fetch = %d, want 0", list[0].UnreadCount)
	}

	if err := f.svc.DeleteConversation(ctx, conv.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	list, _ = f.svc.ListConversations(ctx, "bob")
	if len(list) != 0 {
		t.Errorf("list after delete has %d entries", len(list))
	}
}

func TestService_AnnouncePresence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	_, _, _ = f.svc.FindOrCreateConversation(ctx, "alice", "bob")
	_, _, _ = f.svc.FindOrCreateConversation(ctx, "alice", "carol")

	bobRoom := f.subscribe(t, realtime.UserRoom("bob"))
	carolRoom := f.subscribe(t, realtime.UserRoom("carol"))

	lastSeen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.AnnouncePresence(ctx, "alice", false, lastSeen)

	for name, ch := range map[string]<-chan realtime.Envelope{"bob": bobRoom, "carol": carolRoom} {
		env := receive(t, ch)
		if env.Event.Type != realtime.EventUserOffline || env.Event.UserID != "alice" {
			t.Errorf("%s got %s for %s", name, env.Event.Type, env.Event.UserID)
		}
		if env.Event.LastSeen == nil || !env.Event.LastSeen.Equal(lastSeen) {
			t.Errorf("%s lastSeen = %v", name, env.Event.LastSeen)
		}
	}
}

func TestService_NilCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := realtime.NewLocalBroker(8)
	t.Cleanup(func() { _ = broker.Close() })
	svc := NewService(newTestStore(t), nil, broker)

	conv, _, err := svc.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SendMessage(ctx, conv.ID, "bob", "hi", ""); err != nil {
		t.Fatal(err)
	}
	list, err := svc.ListConversations(ctx, "alice")
	if err != nil || len(list) != 1 || list[0].UnreadCount != 1 {
		t.Errorf("list = %+v, %v", list, err)
	}
}
