// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package models

import (
	"slices"
	"time"
)

// MessageKind classifies message content.
type MessageKind string

// Message kinds.
const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	default:
		return false
	}
}

// Message is a single chat message. After creation it only changes by
// appending readers to ReadBy.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Content        string      `json:"content"`
	Kind           MessageKind `json:"kind"`
	ReadBy         []string    `json:"readBy"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// IsReadBy reports whether userID is in the reader set.
func (m *Message) IsReadBy(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}

// MarkRead adds userID to the reader set. It reports whether the set changed.
func (m *Message) MarkRead(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// IsUnreadFor reports whether the message counts as unread for userID:
// someone else sent it and userID has not read it.
func (m *Message) IsUnreadFor(userID string) bool {
	return m.SenderID != userID && !m.IsReadBy(userID)
}

// MessagePage is one window of a conversation's history, oldest first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	HasMore  bool      `json:"hasMore"`
}
