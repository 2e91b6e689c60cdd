// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cinelog/internal/models"
)

// fakeChat stands in for the chat service: fixed participants, and sends
// broadcast the same rooms the real service does.
type fakeChat struct {
	broker       Broker
	participants map[string][]string

	mu   sync.Mutex
	sent []models.Message
}

func (f *fakeChat) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	return slices.Contains(f.participants[conversationID], userID), nil
}

func (f *fakeChat) SendMessage(ctx context.Context, conversationID, senderID, content string, kind models.MessageKind) (*models.Message, error) {
	members, ok := f.participants[conversationID]
	if !ok || !slices.Contains(members, senderID) {
		return nil, errors.New("conversation not found")
	}
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		ReadBy:         []string{senderID},
		CreatedAt:      time.Now().UTC(),
	}
	f.mu.Lock()
	f.sent = append(f.sent, *msg)
	f.mu.Unlock()

	ev := NewMessageEvent(msg)
	_ = f.broker.Broadcast(ctx, ChatRoom(conversationID), ev)
	for _, p := range members {
		_ = f.broker.Broadcast(ctx, UserRoom(p), ev)
	}
	return msg, nil
}

func (f *fakeChat) BroadcastTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	members := f.participants[conversationID]
	if !slices.Contains(members, userID) {
		return errors.New("conversation not found")
	}
	ev := NewTypingEvent(conversationID, userID, typing)
	_ = f.broker.Broadcast(ctx, ChatRoom(conversationID), ev)
	for _, p := range members {
		if p != userID {
			_ = f.broker.Broadcast(ctx, UserRoom(p), ev)
		}
	}
	return nil
}

type hubFixture struct {
	hub       *Hub
	srv       *httptest.Server
	broker    Broker
	announcer *recordingAnnouncer
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	broker := newLocalBroker(t)
	announcer := &recordingAnnouncer{}
	hub := NewHub(HubConfig{
		Broker:    broker,
		Chat:      &fakeChat{broker: broker, participants: map[string][]string{"c1": {"alice", "bob"}}},
		Announcer: announcer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &hubFixture{hub: hub, srv: srv, broker: broker, announcer: announcer}
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func (f *hubFixture) dial(t *testing.T) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	tc := &testConn{t: t, conn: conn}
	ev := tc.read()
	if ev.Type != EventConnection || ev.ConnectionID == "" {
		t.Fatalf("first frame = %+v", ev)
	}
	tc.id = ev.ConnectionID
	return tc
}

func (c *testConn) send(cmd Command) {
	c.t.Helper()
	if err := c.conn.WriteJSON(cmd); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testConn) read() Event {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev Event
	if err := c.conn.ReadJSON(&ev); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return ev
}

// barrier returns once every earlier command on this connection has been
// handled. Commands run in order, and an unknown one is answered with an
// error frame.
func (c *testConn) barrier() {
	c.t.Helper()
	c.send(Command{Type: "sync"})
	for {
		if ev := c.read(); ev.Type == EventError && ev.Error == "unknown command type" {
			return
		}
	}
}

func (c *testConn) joinUser(userID string) {
	c.t.Helper()
	c.send(Command{Type: CommandJoinUser, UserID: userID})
	c.barrier()
}

func (c *testConn) joinChat(conversationID string) {
	c.t.Helper()
	c.send(Command{Type: CommandJoinChat, ConversationID: conversationID})
	c.barrier()
}

func TestHub_ConnectAndPresence(t *testing.T) {
	t.Parallel()

	f := newHubFixture(t)
	alice := f.dial(t)
	alice.joinUser("alice")

	if f.hub.GetClientCount() != 1 {
		t.Errorf("client count = %d", f.hub.GetClientCount())
	}
	if user, ok := f.hub.Presence().UserOf(alice.id); !ok || user != "alice" {
		t.Errorf("UserOf = %s, %v", user, ok)
	}
	waitFor(t, "online announcement", func() bool { return len(f.announcer.snapshot()) == 1 })

	_ = alice.conn.Close()
	waitFor(t, "offline announcement", func() bool { return len(f.announcer.snapshot()) == 2 })
	calls := f.announcer.snapshot()
	if calls[1].userID != "alice" || calls[1].online {
		t.Errorf("announcements = %+v", calls)
	}
	waitFor(t, "client removal", func() bool { return f.hub.GetClientCount() == 0 })
}

func TestHub_CommandErrors(t *testing.T) {
	t.Parallel()

	f := newHubFixture(t)
	c := f.dial(t)

	c.send(Command{Type: CommandJoinChat, ConversationID: "c1"})
	if ev := c.read(); ev.Type != EventError || ev.Error != errNotJoined.Error() {
		t.Errorf("join-chat before join-user = %+v", ev)
	}

	c.send(Command{Type: CommandJoinUser, UserID: "bad.id"})
	if ev := c.read(); ev.Type != EventError {
		t.Errorf("invalid user id = %+v", ev)
	}

	c.joinUser("mallory")
	c.send(Command{Type: CommandJoinChat, ConversationID: "c1"})
	if ev := c.read(); ev.Type != EventError || ev.Error != errUnknownChat.Error() {
		t.Errorf("non-participant join-chat = %+v", ev)
	}

	c.send(Command{Type: CommandJoinUser, UserID: "alice"})
	if ev := c.read(); ev.Type != EventError || ev.Error != errUserMismatch.Error() {
		t.Errorf("rebinding = %+v", ev)
	}

	c.send(Command{Type: CommandTypingStart, ConversationID: "c1"})
	if ev := c.read(); ev.Type != EventError {
		t.Errorf("typing outside chat = %+v", ev)
	}
}

func TestHub_SendMessageReachesBothParticipants(t *testing.T) {
	t.Parallel()

	f := newHubFixture(t)
	alice := f.dial(t)
	alice.joinUser("alice")
	alice.joinChat("c1")

	bob := f.dial(t)
	bob.joinUser("bob")

	alice.send(Command{Type: CommandSendMessage, ConversationID: "c1", Content: "hello"})

	for name, c := range map[string]*testConn{"alice": alice, "bob": bob} {
		ev := c.read()
		if ev.Type != EventNewMessage || ev.Message == nil || ev.Message.Content != "hello" {
			t.Errorf("%s got %+v", name, ev)
		}
	}
}

func TestHub_TypingSkipsOrigin(t *testing.T) {
	t.Parallel()

	f := newHubFixture(t)
	alice := f.dial(t)
	alice.joinUser("alice")
	alice.joinChat("c1")
	bob := f.dial(t)
	bob.joinUser("bob")
	bob.joinChat("c1")

	alice.send(Command{Type: CommandTypingStart, ConversationID: "c1"})
	if ev := bob.read(); ev.Type != EventTypingStart || ev.UserID != "alice" {
		t.Fatalf("bob got %+v", ev)
	}

	// Room order is preserved, so alice's next frame would be her own
	// typing-start if it had not been skipped.
	bob.send(Command{Type: CommandTypingStop, ConversationID: "c1"})
	if ev := alice.read(); ev.Type != EventTypingStop || ev.UserID != "bob" {
		t.Fatalf("alice got %+v", ev)
	}
}

func TestHub_TypingReachesStreamParticipant(t *testing.T) {
	t.Parallel()

	f := newHubFixture(t)
	registry := newTestRegistry(t, RegistryConfig{Broker: f.broker})
	stream, err := registry.Register("bob")
	if err != nil {
		t.Fatal(err)
	}

	alice := f.dial(t)
	alice.joinUser("alice")
	alice.joinChat("c1")

	alice.send(Command{Type: CommandTypingStart, ConversationID: "c1"})
	if ev := recvEvent(t, stream); ev.Type != EventTypingStart || ev.UserID != "alice" || ev.ConversationID != "c1" {
		t.Fatalf("bob's stream got %+v", ev)
	}
	alice.send(Command{Type: CommandTypingStop, ConversationID: "c1"})
	if ev := recvEvent(t, stream); ev.Type != EventTypingStop || ev.UserID != "alice" {
		t.Fatalf("bob's stream got %+v", ev)
	}
}

func newBareClient(h *Hub, id string, seq uint64) *Client {
	return &Client{id: id, seq: seq, hub: h, send: make(chan Event, 8), rooms: make(map[string]struct{})}
}

func (h *Hub) addMember(c *Client, room string) {
	r, ok := h.rooms[room]
	if !ok {
		r = &hubRoom{members: make(map[*Client]struct{}), cancel: func() {}, ready: make(chan struct{})}
		h.rooms[room] = r
	}
	r.members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func TestHub_DeliverSkipsDuplicateUserRoomCopies(t *testing.T) {
	t.Parallel()

	h := NewHub(HubConfig{Broker: newLocalBroker(t)})
	inChat := newBareClient(h, "in-chat", 1)
	userOnly := newBareClient(h, "user-only", 2)
	for _, c := range []*Client{inChat, userOnly} {
		h.clients[c] = struct{}{}
	}
	h.addMember(inChat, ChatRoom("c1"))
	h.addMember(inChat, UserRoom("alice"))
	h.addMember(userOnly, UserRoom("alice"))

	ev := NewMessageEvent(&models.Message{ID: "m1", ConversationID: "c1", SenderID: "bob"})
	h.deliverToRoom(Envelope{Room: ChatRoom("c1"), Event: ev})
	h.deliverToRoom(Envelope{Room: UserRoom("alice"), Event: ev})

	if n := len(inChat.send); n != 1 {
		t.Errorf("in-chat client got %d copies, want 1", n)
	}
	if n := len(userOnly.send); n != 1 {
		t.Errorf("user-only client got %d copies, want 1", n)
	}

	h.deliverToRoom(Envelope{Room: UserRoom("alice"), Event: NewPresenceEvent("bob", true, time.Time{})})
	if len(inChat.send) != 2 || len(userOnly.send) != 2 {
		t.Error("presence should reach every member of the user room")
	}

	typing := NewTypingEvent("c1", "bob", true)
	h.deliverToRoom(Envelope{Room: ChatRoom("c1"), Event: typing})
	h.deliverToRoom(Envelope{Room: UserRoom("alice"), Event: typing})
	if n := len(inChat.send); n != 3 {
		t.Errorf("in-chat client holds %d events after typing, want 3", n)
	}
	if n := len(userOnly.send); n != 3 {
		t.Errorf("user-only client holds %d events after typing, want 3", n)
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	t.Parallel()

	h := NewHub(HubConfig{Broker: newLocalBroker(t)})
	slow := newBareClient(h, "slow", 1)
	slow.send = make(chan Event, 1)
	h.clients[slow] = struct{}{}
	h.addMember(slow, ChatRoom("c1"))

	h.deliverToRoom(Envelope{Room: ChatRoom("c1"), Event: NewErrorEvent("one")})
	h.deliverToRoom(Envelope{Room: ChatRoom("c1"), Event: NewErrorEvent("two")})

	if _, ok := h.clients[slow]; ok {
		t.Error("slow client still registered")
	}
	if _, ok := h.rooms[ChatRoom("c1")]; ok {
		t.Error("empty room not released")
	}
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	check := originChecker([]string{"https://cinelog.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !check(req) {
		t.Error("request without Origin should pass")
	}
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Error("foreign origin accepted")
	}
	req.Header.Set("Origin", "https://cinelog.example")
	if !check(req) {
		t.Error("allowed origin rejected")
	}
	if !originChecker(nil)(req) || !originChecker([]string{"*"})(req) {
		t.Error("wildcard should allow all")
	}
}
