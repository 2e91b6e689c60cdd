// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package models

import (
	"slices"
	"time"
)

// LastMessage is the snapshot of the newest message kept on the conversation.
type LastMessage struct {
	ID        string      `json:"id"`
	SenderID  string      `json:"senderId"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Conversation is a direct chat. Participants is sorted and immutable after
// creation.
type Conversation struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	IsGroup      bool         `json:"isGroup"`
	GroupName    string       `json:"groupName,omitempty"`
	GroupPhoto   string       `json:"groupPhoto,omitempty"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Counterparts returns every participant except userID.
func (c *Conversation) Counterparts(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}

// ConversationSummary is a conversation as listed for one user.
type ConversationSummary struct {
	Conversation
	UnreadCount int `json:"unreadCount"`
}
