// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
	"github.com/tomtom215/cinelog/internal/validation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB

	commandTimeout = 10 * time.Second
)

// clientSeq orders clients for deterministic delivery.
var clientSeq atomic.Uint64

// Client is a middleman between the websocket connection and the hub.
// The read pump executes commands; the write pump drains send.
type Client struct {
	id   string
	seq  uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Event

	// rooms is owned by the hub loop.
	rooms map[string]struct{}

	// userID is owned by the read pump.
	userID string
}

// NewClient creates a new Client with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.NewString(),
		seq:   clientSeq.Add(1),
		hub:   hub,
		conn:  conn,
		send:  make(chan Event, cap(hub.deliver)),
		rooms: make(map[string]struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// readPump pumps commands from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		// Covers a join-user that raced with the hub dropping this client.
		c.hub.detachPresence(c.id)
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		err := c.conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("connection_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.RealtimeCommandsReceived.WithLabelValues(string(cmd.Type)).Inc()
		c.handleCommand(cmd)
	}
}

var (
	errNotJoined     = errors.New("join-user must come first")
	errUnknownChat   = errors.New("conversation not found")
	errUserMismatch  = errors.New("connection is bound to another user")
	errInvalidUserID = errors.New("invalid userId")
)

func (c *Client) handleCommand(cmd Command) {
	ctx, cancel := context.WithTimeout(ContextWithOrigin(context.Background(), c.id), commandTimeout)
	defer cancel()

	var err error
	switch cmd.Type {
	case CommandJoinUser:
		err = c.joinUser(cmd.UserID)
	case CommandJoinChat:
		err = c.joinChat(ctx, cmd.ConversationID)
	case CommandSendMessage:
		err = c.sendMessage(ctx, cmd)
	case CommandTypingStart, CommandTypingStop:
		err = c.typing(ctx, cmd.ConversationID, cmd.Type == CommandTypingStart)
	default:
		err = errors.New("unknown command type")
	}

	if err != nil {
		logging.Debug().Err(err).Str("connection_id", c.id).Str("command", string(cmd.Type)).Msg("websocket command rejected")
		c.hub.reply(c, NewErrorEvent(err.Error()))
	}
}

func (c *Client) joinUser(userID string) error {
	if !validation.IsEntityID(userID) {
		return errInvalidUserID
	}
	if c.userID != "" && c.userID != userID {
		return errUserMismatch
	}
	if c.userID == userID {
		return nil
	}

	c.userID = userID
	c.hub.presence.connect(c.hub.announcer, c.id, userID)
	c.hub.requestJoin(c, UserRoom(userID))
	return nil
}

func (c *Client) joinChat(ctx context.Context, conversationID string) error {
	if c.userID == "" {
		return errNotJoined
	}
	ok, err := c.hub.chat.IsParticipant(ctx, conversationID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return errUnknownChat
	}
	c.hub.presence.JoinChat(c.id, conversationID)
	c.hub.requestJoin(c, ChatRoom(conversationID))
	return nil
}

// sendMessage persists through the chat backend, which broadcasts the
// new-message event to the room.
func (c *Client) sendMessage(ctx context.Context, cmd Command) error {
	if c.userID == "" {
		return errNotJoined
	}
	_, err := c.hub.chat.SendMessage(ctx, cmd.ConversationID, c.userID, cmd.Content, cmd.Kind)
	return err
}

func (c *Client) typing(ctx context.Context, conversationID string, typing bool) error {
	if c.userID == "" {
		return errNotJoined
	}
	if !c.hub.presence.InChat(c.id, conversationID) {
		return errUnknownChat
	}
	return c.hub.chat.BroadcastTyping(ctx, conversationID, c.userID, typing)
}

// writePump pumps events from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(ev); err != nil {
				logging.Debug().Err(err).Str("connection_id", c.id).Msg("failed to write websocket event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
