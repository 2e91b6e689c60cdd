// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package delivery

import (
	"slices"
	"sync"

	"github.com/tomtom215/cinelog/internal/models"
)

// LocalStore is the client's copy of conversation history. Messages are
// keyed by id, so a message seen over push and again in history is kept
// once.
type LocalStore struct {
	mu     sync.RWMutex
	byConv map[string][]models.Message
	ids    map[string]struct{}
}

// NewLocalStore creates an empty store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		byConv: make(map[string][]models.Message),
		ids:    make(map[string]struct{}),
	}
}

// Has reports whether the message id is known.
func (s *LocalStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add inserts msg in createdAt order. It returns false for a duplicate.
func (s *LocalStore) Add(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(msg)
}

func (s *LocalStore) add(msg models.Message) bool {
	if _, dup := s.ids[msg.ID]; dup {
		return false
	}
	s.ids[msg.ID] = struct{}{}

	list := s.byConv[msg.ConversationID]
	// Usually newest, so scan from the end.
	i := len(list)
	for i > 0 && list[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	s.byConv[msg.ConversationID] = slices.Insert(list, i, msg)
	return true
}

// Merge adds every message not yet known and returns the ones added.
func (s *LocalStore) Merge(msgs []models.Message) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []models.Message
	for _, m := range msgs {
		if s.add(m) {
			added = append(added, m)
		}
	}
	return added
}

// Messages returns a copy of the conversation's messages, oldest first.
func (s *LocalStore) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byConv[conversationID])
}

// Len returns the number of known messages.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
