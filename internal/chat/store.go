// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
	"github.com/tomtom215/cinelog/internal/models"
	"github.com/tomtom215/cinelog/internal/validation"
)

// Key prefixes for BadgerDB storage
const (
	conversationKeyPrefix = "conv:"
	pairKeyPrefix         = "pair:"
	userConvKeyPrefix     = "uconv:"
	messageKeyPrefix      = "msg:"
)

// Paging and content limits.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	MaxContentLength = 4000

	maxTxnRetries  = 8
	gcDiscardRatio = 0.5
)

// Store persists conversations and messages in BadgerDB.
//
// Every operation taking a requester returns ErrNotFound when the requester
// is not a participant.
type Store struct {
	db     *badger.DB
	ownsDB bool
	closed atomic.Bool
	now    func() time.Time
}

// Open opens (or creates) the store described by cfg.
func Open(cfg config.StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Chat store opened")

	s := NewStore(db)
	s.ownsDB = true
	return s, nil
}

// NewStore wraps an already open database. The caller keeps ownership of db.
func NewStore(db *badger.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the underlying database when the store opened it.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func conversationKey(id string) []byte {
	return []byte(conversationKeyPrefix + id)
}

func pairKey(a, b string) []byte {
	return []byte(pairKeyPrefix + a + "|" + b)
}

func userConvKey(userID, conversationID string) []byte {
	return []byte(userConvKeyPrefix + userID + ":" + conversationID)
}

func userConvPrefix(userID string) []byte {
	return []byte(userConvKeyPrefix + userID + ":")
}

func messagePrefix(conversationID string) []byte {
	return []byte(messageKeyPrefix + conversationID + ":")
}

// messageKey orders lexicographically by creation time within a conversation.
func messageKey(conversationID string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", messageKeyPrefix, conversationID, createdAt.UnixNano(), id))
}

// Ping reports whether the store can serve requests.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return ctx.Err()
}

// updateWithRetry runs fn in a read-write transaction, retrying on
// optimistic-concurrency conflicts.
func (s *Store) updateWithRetry(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction conflict after %d attempts: %w", maxTxnRetries, err)
}

func (s *Store) begin(ctx context.Context, operation string) (func(), error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	return func() {
		metrics.RecordStoreOperation(operation, time.Since(start))
	}, nil
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// loadForParticipant loads a conversation and hides it from non-participants.
func loadForParticipant(txn *badger.Txn, conversationID, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := getJSON(txn, conversationKey(conversationID), &conv)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotFound
	}
	return &conv, nil
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if !validation.IsEntityID(id) {
			return fmt.Errorf("%w: malformed id %q", ErrInvalidArgument, id)
		}
	}
	return nil
}

// FindOrCreateConversation returns the direct conversation between a and b,
// creating it if needed. created reports whether this call created it.
// Concurrent calls for the same pair resolve to one conversation.
func (s *Store) FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, bool, error) {
	done, err := s.begin(ctx, "find_or_create_conversation")
	if err != nil {
		return nil, false, err
	}
	defer done()

	if err := validateIDs(a, b); err != nil {
		return nil, false, err
	}
	if a == b {
		return nil, false, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidArgument)
	}

	participants := []string{a, b}
	slices.Sort(participants)

	var conv models.Conversation
	var created bool
	err = s.updateWithRetry(func(txn *badger.Txn) error {
		created = false
		pk := pairKey(participants[0], participants[1])

		item, err := txn.Get(pk)
		if err == nil {
			var id string
			if err := item.Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			return getJSON(txn, conversationKey(id), &conv)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get pair index: %w", err)
		}

		now := s.now()
		conv = models.Conversation{
			ID:           uuid.NewString(),
			Participants: participants,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := setJSON(txn, conversationKey(conv.ID), &conv); err != nil {
			return err
		}
		if err := txn.Set(pk, []byte(conv.ID)); err != nil {
			return fmt.Errorf("set pair index: %w", err)
		}
		for _, p := range participants {
			if err := txn.Set(userConvKey(p, conv.ID), nil); err != nil {
				return fmt.Errorf("set user index: %w", err)
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.ChatConversationsCreated.Inc()
		logging.Ctx(ctx).Debug().Str("conversation_id", conv.ID).Strs("participants", participants).Msg("Conversation created")
	}
	return &conv, created, nil
}

// GetConversation returns the conversation if userID participates in it.
func (s *Store) GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	done, err := s.begin(ctx, "get_conversation")
	if err != nil {
		return nil, err
	}
	defer done()

	var conv *models.Conversation
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = loadForParticipant(txn, conversationID, userID)
		return err
	})
	return conv, err
}

// IsParticipant reports whether userID belongs to the conversation. An
// absent conversation reports false without error.
func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := s.GetConversation(ctx, conversationID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// AppendMessage persists a message from senderID. The sender is the first
// reader, the conversation's last-message snapshot is updated, and createdAt
// is strictly greater than that of the previous message.
func (s *Store) AppendMessage(ctx context.Context, conversationID, senderID, content string, kind models.MessageKind) (*models.Message, error) {
	done, err := s.begin(ctx, "append_message")
	if err != nil {
		return nil, err
	}
	defer done()

	if kind == "" {
		kind = models.MessageKindText
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown message kind %q", ErrInvalidArgument, kind)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidArgument, MaxContentLength)
	}

	var msg models.Message
	err = s.updateWithRetry(func(txn *badger.Txn) error {
		conv, err := loadForParticipant(txn, conversationID, senderID)
		if err != nil {
			return err
		}

		createdAt := s.now()
		if conv.LastMessage != nil && !createdAt.After(conv.LastMessage.CreatedAt) {
			createdAt = conv.LastMessage.CreatedAt.Add(time.Nanosecond)
		}

		msg = models.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			Kind:           kind,
			ReadBy:         []string{senderID},
			CreatedAt:      createdAt,
		}
		if err := setJSON(txn, messageKey(conversationID, createdAt, msg.ID), &msg); err != nil {
			return err
		}

		conv.LastMessage = &models.LastMessage{
			ID:        msg.ID,
			SenderID:  senderID,
			Content:   content,
			Kind:      kind,
			CreatedAt: createdAt,
		}
		conv.UpdatedAt = createdAt
		return setJSON(txn, conversationKey(conversationID), conv)
	})
	if err != nil {
		return nil, err
	}

	metrics.ChatMessagesSent.WithLabelValues(string(kind)).Inc()
	return &msg, nil
}

// ListMessages returns one page of history in chronological order. Page 1
// is the newest window. Every returned message sent by someone else is
// marked as read by requesterID as part of the same transaction.
func (s *Store) ListMessages(ctx context.Context, conversationID, requesterID string, page, limit int) (*models.MessagePage, error) {
	done, err := s.begin(ctx, "list_messages")
	if err != nil {
		return nil, err
	}
	defer done()

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	result := &models.MessagePage{Page: page, Limit: limit}
	err = s.updateWithRetry(func(txn *badger.Txn) error {
		if _, err := loadForParticipant(txn, conversationID, requesterID); err != nil {
			return err
		}

		type entry struct {
			key []byte
			msg models.Message
		}
		var window []entry
		hasMore := false

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = messagePrefix(conversationID)
		it := txn.NewIterator(opts)

		seek := append(messagePrefix(conversationID), 0xFF)
		skip := (page - 1) * limit
		for it.Seek(seek); it.Valid(); it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(window) == limit {
				hasMore = true
				break
			}
			item := it.Item()
			var m models.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				it.Close()
				return fmt.Errorf("decode message: %w", err)
			}
			window = append(window, entry{key: item.KeyCopy(nil), msg: m})
		}
		it.Close()

		messages := make([]models.Message, 0, len(window))
		for i := len(window) - 1; i >= 0; i-- {
			e := window[i]
			if e.msg.SenderID != requesterID && e.msg.MarkRead(requesterID) {
				if err := setJSON(txn, e.key, &e.msg); err != nil {
					return err
				}
			}
			messages = append(messages, e.msg)
		}

		result.Messages = messages
		result.HasMore = hasMore
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnreadCount counts messages sent by others that requesterID has not read.
func (s *Store) UnreadCount(ctx context.Context, conversationID, requesterID string) (int, error) {
	done, err := s.begin(ctx, "unread_count")
	if err != nil {
		return 0, err
	}
	defer done()

	count := 0
	err = s.db.View(func(txn *badger.Txn) error {
		if _, err := loadForParticipant(txn, conversationID, requesterID); err != nil {
			return err
		}
		var err error
		count, err = countUnread(txn, conversationID, requesterID)
		return err
	})
	return count, err
}

func countUnread(txn *badger.Txn, conversationID, userID string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = messagePrefix(conversationID)
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		var m models.Message
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return 0, fmt.Errorf("decode message: %w", err)
		}
		if m.IsUnreadFor(userID) {
			count++
		}
	}
	return count, nil
}

// ListConversations returns userID's conversations, most recently active
// first, each with its unread count.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	done, err := s.begin(ctx, "list_conversations")
	if err != nil {
		return nil, err
	}
	defer done()

	summaries := []models.ConversationSummary{}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = userConvPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixLen := len(userConvPrefix(userID))
		for it.Rewind(); it.Valid(); it.Next() {
			conversationID := string(it.Item().Key()[prefixLen:])

			conv, err := loadForParticipant(txn, conversationID, userID)
			if errors.Is(err, ErrNotFound) {
				continue // index left behind by an interrupted delete
			}
			if err != nil {
				return err
			}
			unread, err := countUnread(txn, conversationID, userID)
			if err != nil {
				return err
			}
			summaries = append(summaries, models.ConversationSummary{Conversation: *conv, UnreadCount: unread})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(summaries, func(a, b models.ConversationSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return summaries, nil
}

// DeleteConversation removes the conversation, its indexes and all of its
// messages. It returns the deleted conversation.
func (s *Store) DeleteConversation(ctx context.Context, conversationID, requesterID string) (*models.Conversation, error) {
	done, err := s.begin(ctx, "delete_conversation")
	if err != nil {
		return nil, err
	}
	defer done()

	var conv *models.Conversation
	err = s.updateWithRetry(func(txn *badger.Txn) error {
		var err error
		conv, err = loadForParticipant(txn, conversationID, requesterID)
		if err != nil {
			return err
		}
		if err := txn.Delete(conversationKey(conversationID)); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		if len(conv.Participants) == 2 {
			if err := txn.Delete(pairKey(conv.Participants[0], conv.Participants[1])); err != nil {
				return fmt.Errorf("delete pair index: %w", err)
			}
		}
		for _, p := range conv.Participants {
			if err := txn.Delete(userConvKey(p, conversationID)); err != nil {
				return fmt.Errorf("delete user index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The conversation is unreachable now; drop its messages outside the
	// transaction so long histories cannot exceed the txn size limit.
	if err := s.db.DropPrefix(messagePrefix(conversationID)); err != nil {
		return conv, fmt.Errorf("delete messages: %w", err)
	}

	logging.Ctx(ctx).Info().Str("conversation_id", conversationID).Msg("Conversation deleted")
	return conv, nil
}

// RunGC reclaims value-log space until nothing more can be rewritten.
func (s *Store) RunGC() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation("gc", time.Since(start))
	}()

	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}
