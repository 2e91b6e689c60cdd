// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package chat

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/cinelog/internal/cache"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/models"
	"github.com/tomtom215/cinelog/internal/realtime"
)

const (
	sendLockStripes = 64

	// DefaultListTTL bounds how stale a cached conversation list can be if
	// an invalidation is lost.
	DefaultListTTL = time.Minute
)

// Service composes the store with the cache and the broker. Sends are
// serialized per conversation, so broadcast order matches persistence order.
type Service struct {
	store   *Store
	cache   *cache.Cache
	broker  realtime.Broker
	listTTL time.Duration

	locks [sendLockStripes]sync.Mutex
}

// NewService creates a chat service. c may be nil (no caching).
func NewService(store *Store, c *cache.Cache, broker realtime.Broker) *Service {
	return &Service{
		store:   store,
		cache:   c,
		broker:  broker,
		listTTL: DefaultListTTL,
	}
}

func (s *Service) lockFor(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	return &s.locks[h.Sum32()%sendLockStripes]
}

func conversationListKey(userID string) string {
	return cache.Key("conversations", userID, "list")
}

func (s *Service) invalidateLists(ctx context.Context, userIDs ...string) {
	for _, u := range userIDs {
		s.cache.Delete(ctx, conversationListKey(u))
	}
}

// FindOrCreateConversation returns the direct conversation between
// requesterID and participantID, creating it if needed.
func (s *Service) FindOrCreateConversation(ctx context.Context, requesterID, participantID string) (*models.Conversation, bool, error) {
	conv, created, err := s.store.FindOrCreateConversation(ctx, requesterID, participantID)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.invalidateLists(ctx, conv.Participants...)
	}
	return conv, created, nil
}

// GetConversation returns the conversation if userID participates.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID, userID)
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.store.IsParticipant(ctx, conversationID, userID)
}

// SendMessage persists a message and broadcasts new-message to the
// conversation room and to every participant's user room. A broadcast
// failure is logged; the message stays persisted and is readable through
// history.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, content string, kind models.MessageKind) (*models.Message, error) {
	mu := s.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.store.GetConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, conversationID, senderID, content, kind)
	if err != nil {
		return nil, err
	}

	ev := realtime.NewMessageEvent(msg)
	rooms := []string{realtime.ChatRoom(conversationID)}
	for _, p := range conv.Participants {
		rooms = append(rooms, realtime.UserRoom(p))
	}
	for _, room := range rooms {
		if err := s.broker.Broadcast(ctx, room, ev); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("room", room).
				Str("message_id", msg.ID).
				Msg("Broadcast of new message failed")
		}
	}

	s.invalidateLists(ctx, conv.Participants...)
	return msg, nil
}

// BroadcastTyping sends typing-start or typing-stop to the conversation
// room and to the user room of every other participant, so stream
// connections see it too. Nothing is persisted.
func (s *Service) BroadcastTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	ev := realtime.NewTypingEvent(conversationID, userID, typing)
	rooms := []string{realtime.ChatRoom(conversationID)}
	for _, p := range conv.Counterparts(userID) {
		rooms = append(rooms, realtime.UserRoom(p))
	}
	for _, room := range rooms {
		if err := s.broker.Broadcast(ctx, room, ev); err != nil {
			return fmt.Errorf("broadcast typing to %s: %w", room, err)
		}
	}
	return nil
}

// ListMessages returns a page of history and marks it read for requesterID.
func (s *Service) ListMessages(ctx context.Context, conversationID, requesterID string, page, limit int) (*models.MessagePage, error) {
	result, err := s.store.ListMessages(ctx, conversationID, requesterID, page, limit)
	if err != nil {
		return nil, err
	}
	// Unread counts in the requester's list changed.
	s.invalidateLists(ctx, requesterID)
	return result, nil
}

// UnreadCount returns requesterID's unread count in the conversation.
func (s *Service) UnreadCount(ctx context.Context, conversationID, requesterID string) (int, error) {
	return s.store.UnreadCount(ctx, conversationID, requesterID)
}

// ListConversations returns userID's conversations through the cache.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	return cache.CacheWithFallback(ctx, s.cache, conversationListKey(userID), s.listTTL,
		func(ctx context.Context) ([]models.ConversationSummary, error) {
			return s.store.ListConversations(ctx, userID)
		})
}

// DeleteConversation deletes the conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, requesterID string) error {
	mu := s.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.store.DeleteConversation(ctx, conversationID, requesterID)
	if conv != nil {
		s.invalidateLists(ctx, conv.Participants...)
	}
	return err
}

// AnnouncePresence broadcasts user-online or user-offline to the user room
// of everyone userID has a conversation with.
func (s *Service) AnnouncePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Presence announcement skipped")
		return
	}

	var counterparts []string
	for i := range convs {
		counterparts = append(counterparts, convs[i].Counterparts(userID)...)
	}
	slices.Sort(counterparts)
	counterparts = slices.Compact(counterparts)

	ev := realtime.NewPresenceEvent(userID, online, lastSeen)
	for _, cp := range counterparts {
		if err := s.broker.Broadcast(ctx, realtime.UserRoom(cp), ev); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("user_id", cp).Msg("Presence broadcast failed")
		}
	}
}

// Ping reports whether the underlying store is open.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// RunGC runs store garbage collection.
func (s *Service) RunGC() error {
	return s.store.RunGC()
}
