// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
	"github.com/tomtom215/cinelog/internal/models"
)

const transportWebSocket = "websocket"

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ChatBackend is what socket commands need from the chat service.
type ChatBackend interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string, kind models.MessageKind) (*models.Message, error)
	BroadcastTyping(ctx context.Context, conversationID, userID string, typing bool) error
}

// HubConfig configures a Hub.
type HubConfig struct {
	Broker    Broker
	Chat      ChatBackend
	Presence  *Presence
	Announcer PresenceAnnouncer

	// AllowedOrigins restricts the socket upgrade. Empty or "*" allows all.
	AllowedOrigins []string
	BufferSize     int
}

type joinRequest struct {
	client *Client
	room   string
	reply  chan *hubRoom
}

type directMessage struct {
	client *Client
	event  Event
}

type hubRoom struct {
	members map[*Client]struct{}
	cancel  context.CancelFunc
	ready   chan struct{}
}

// Hub owns the socket connections and their room memberships. One event
// loop mutates all state; broker subscriptions run in their own goroutines
// and feed the loop through the deliver channel.
type Hub struct {
	broker    Broker
	chat      ChatBackend
	presence  *Presence
	announcer PresenceAnnouncer
	upgrader  websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	direct     chan directMessage
	deliver    chan Envelope

	clients map[*Client]struct{}
	rooms   map[string]*hubRoom

	mu    sync.RWMutex
	quit  chan struct{}
	count int
}

// NewHub creates a new Hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Presence == nil {
		cfg.Presence = NewPresence()
	}

	h := &Hub{
		broker:     cfg.Broker,
		chat:       cfg.Chat,
		presence:   cfg.Presence,
		announcer:  cfg.Announcer,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		direct:     make(chan directMessage, cfg.BufferSize),
		deliver:    make(chan Envelope, cfg.BufferSize),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]*hubRoom),
		quit:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *Hub) quitChan() chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quit
}

// RunWithContext runs the event loop until ctx is canceled, then closes
// every client and room subscription and returns ctx.Err(). It can be
// called again after returning.
//
// Priority order: shutdown, then lifecycle (register, unregister, join),
// then delivery.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	select {
	case <-h.quit:
		h.quit = make(chan struct{})
	default:
	}
	quit := h.quit
	h.mu.Unlock()
	defer close(quit)

	for {
		// Priority 1: shutdown
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle
		select {
		case c := <-h.register:
			h.addClient(c)
			continue
		case c := <-h.unregister:
			h.removeClient(c)
			continue
		case req := <-h.join:
			h.joinRoom(ctx, req)
			continue
		default:
		}

		// Priority 3: delivery, or wait for anything
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case req := <-h.join:
			h.joinRoom(ctx, req)
		case dm := <-h.direct:
			if _, ok := h.clients[dm.client]; ok {
				h.sendTo(dm.client, dm.event)
			}
		case env := <-h.deliver:
			h.deliverToRoom(env)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clients[c] = struct{}{}
	h.setCount(len(h.clients))
	metrics.RealtimeConnections.WithLabelValues(transportWebSocket).Inc()
	logging.Debug().Str("connection_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client connected")

	h.sendTo(c, Event{Type: EventConnection, ConnectionID: c.id, Timestamp: time.Now().UTC()})
}

// removeClient drops c from the hub and its rooms and settles presence.
// It is safe to call more than once.
func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.setCount(len(h.clients))
	metrics.RealtimeConnections.WithLabelValues(transportWebSocket).Dec()

	for room := range c.rooms {
		h.leaveRoom(c, room)
	}

	h.detachPresence(c.id)
	logging.Debug().Str("connection_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client disconnected")
}

// detachPresence settles presence for a closed connection and announces
// user-offline when it was the user's last one. Safe to call twice.
func (h *Hub) detachPresence(connectionID string) {
	h.presence.disconnect(h.announcer, connectionID)
}

func (h *Hub) joinRoom(ctx context.Context, req joinRequest) {
	c := req.client
	if _, ok := h.clients[c]; !ok {
		close(req.reply)
		return
	}

	r, ok := h.rooms[req.room]
	if !ok {
		subCtx, cancel := context.WithCancel(ctx)
		r = &hubRoom{
			members: make(map[*Client]struct{}),
			cancel:  cancel,
			ready:   make(chan struct{}),
		}
		h.rooms[req.room] = r
		go h.subscribeRoom(subCtx, req.room, r.ready)
	}
	r.members[c] = struct{}{}
	c.rooms[req.room] = struct{}{}

	req.reply <- r
}

// subscribeRoom forwards the room's broker events into the loop until the
// room's last member leaves.
func (h *Hub) subscribeRoom(ctx context.Context, room string, ready chan struct{}) {
	events, err := h.broker.Subscribe(ctx, room)
	close(ready)
	if err != nil {
		if ctx.Err() == nil {
			logging.Error().Err(err).Str("room", room).Msg("Room subscription failed")
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			select {
			case h.deliver <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) leaveRoom(c *Client, room string) {
	delete(c.rooms, room)
	r, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(r.members, c)
	if len(r.members) == 0 {
		r.cancel()
		delete(h.rooms, room)
	}
}

// deliverToRoom writes env to every member in connection-id order. Typing
// events skip the originating connection. A new-message or typing event
// arriving through a user room skips members that already get it through
// the chat room.
func (h *Hub) deliverToRoom(env Envelope) {
	r, ok := h.rooms[env.Room]
	if !ok {
		return
	}

	members := make([]*Client, 0, len(r.members))
	for c := range r.members {
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].seq < members[j].seq
	})

	ev := env.Event
	isTyping := ev.Type == EventTypingStart || ev.Type == EventTypingStop
	viaUserRoom := !IsChatRoom(env.Room)

	for _, c := range members {
		if isTyping && c.id == env.Origin {
			continue
		}
		if viaUserRoom && (isTyping || ev.Type == EventNewMessage) && ev.ConversationID != "" {
			if _, inChat := c.rooms[ChatRoom(ev.ConversationID)]; inChat {
				continue
			}
		}
		h.sendTo(c, ev)
	}
}

// sendTo queues ev for c. A client whose buffer is full is dropped.
func (h *Hub) sendTo(c *Client, ev Event) {
	select {
	case c.send <- ev:
		metrics.RealtimeEventsDelivered.WithLabelValues(transportWebSocket).Inc()
	default:
		metrics.RealtimeDeliveryMisses.WithLabelValues(transportWebSocket, "buffer_full").Inc()
		logging.Warn().Str("connection_id", c.id).Msg("websocket client too slow, disconnecting")
		h.removeClient(c)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].seq < clients[j].seq
	})
	for _, c := range clients {
		h.removeClient(c)
	}
	for room, r := range h.rooms {
		r.cancel()
		delete(h.rooms, room)
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Presence returns the side-table the hub attributes connections with.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := NewClient(h, conn)
	select {
	case h.register <- c:
	case <-h.quitChan():
		_ = conn.Close()
		return
	}
	c.Start()
}

// requestJoin asks the loop to add c to room and waits until the room's
// broker subscription is live.
func (h *Hub) requestJoin(c *Client, room string) bool {
	req := joinRequest{client: c, room: room, reply: make(chan *hubRoom, 1)}
	select {
	case h.join <- req:
	case <-h.quitChan():
		return false
	}

	r, ok := <-req.reply
	if !ok {
		return false
	}
	select {
	case <-r.ready:
		return true
	case <-time.After(5 * time.Second):
		logging.Warn().Str("room", room).Msg("Room subscription not ready, continuing")
		return true
	}
}

// reply queues ev for c through the loop, which owns c.send.
func (h *Hub) reply(c *Client, ev Event) {
	select {
	case h.direct <- directMessage{client: c, event: ev}:
	case <-h.quitChan():
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quitChan():
	}
}
