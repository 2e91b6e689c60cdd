// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"strings"
	"time"

	"github.com/tomtom215/cinelog/internal/models"
)

// EventType names a server-to-client event. The same vocabulary is used by
// the socket rooms, the event stream and the broker.
type EventType string

// Server-to-client events
const (
	EventConnection  EventType = "connection"
	EventHeartbeat   EventType = "heartbeat"
	EventNewMessage  EventType = "new-message"
	EventTypingStart EventType = "typing-start"
	EventTypingStop  EventType = "typing-stop"
	EventUserOnline  EventType = "user-online"
	EventUserOffline EventType = "user-offline"
	EventError       EventType = "error"
)

// CommandType names a client-to-server socket command. Disconnect is
// implicit in the connection closing.
type CommandType string

// Client-to-server commands
const (
	CommandJoinUser    CommandType = "join-user"
	CommandJoinChat    CommandType = "join-chat"
	CommandSendMessage CommandType = "send-message"
	CommandTypingStart CommandType = "typing-start"
	CommandTypingStop  CommandType = "typing-stop"
)

// Event is the single frame format written to sockets and streams.
type Event struct {
	Type           EventType       `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	ConnectionID   string          `json:"connectionId,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
	LastSeen       *time.Time      `json:"lastSeen,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Command is a frame read from a socket.
type Command struct {
	Type           CommandType        `json:"type"`
	UserID         string             `json:"userId,omitempty"`
	ConversationID string             `json:"conversationId,omitempty"`
	Content        string             `json:"content,omitempty"`
	Kind           models.MessageKind `json:"kind,omitempty"`
}

// Envelope is an event received from the broker together with the
// connection that originated it, if any.
type Envelope struct {
	Room   string
	Origin string
	Event  Event
}

// NewMessageEvent wraps a persisted message.
func NewMessageEvent(msg *models.Message) Event {
	return Event{
		Type:           EventNewMessage,
		ConversationID: msg.ConversationID,
		UserID:         msg.SenderID,
		Message:        msg,
		Timestamp:      time.Now().UTC(),
	}
}

// NewTypingEvent builds a typing-start or typing-stop event.
func NewTypingEvent(conversationID, userID string, typing bool) Event {
	t := EventTypingStop
	if typing {
		t = EventTypingStart
	}
	return Event{
		Type:           t,
		ConversationID: conversationID,
		UserID:         userID,
		Timestamp:      time.Now().UTC(),
	}
}

// NewPresenceEvent builds user-online, or user-offline with lastSeen.
func NewPresenceEvent(userID string, online bool, lastSeen time.Time) Event {
	ev := Event{
		Type:      EventUserOnline,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if !online {
		ev.Type = EventUserOffline
		seen := lastSeen.UTC()
		ev.LastSeen = &seen
	}
	return ev
}

// NewErrorEvent builds an error frame for a single connection.
func NewErrorEvent(msg string) Event {
	return Event{
		Type:      EventError,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}

// Room prefixes
const (
	userRoomPrefix = "user."
	chatRoomPrefix = "chat."
)

// UserRoom is the room every connection of userID joins.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// ChatRoom is the room of a conversation.
func ChatRoom(conversationID string) string {
	return chatRoomPrefix + conversationID
}

// IsChatRoom reports whether room is a conversation room.
func IsChatRoom(room string) bool {
	return strings.HasPrefix(room, chatRoomPrefix)
}
