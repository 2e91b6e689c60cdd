// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/models"
)

// ListConversations returns the requester's conversations, most recently
// updated first, each with its unread count.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, err := h.chat.ListConversations(r.Context(), requesterID(r))
	if err != nil {
		respondChatError(rw, err)
		return
	}
	rw.Success(list)
}

// StartConversation finds or creates the direct conversation with the
// participant. It answers 201 when the conversation was created.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req StartConversationRequest
	if err := decodeBody(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	conv, created, err := h.chat.FindOrCreateConversation(r.Context(), requesterID(r), req.ParticipantID)
	if err != nil {
		respondChatError(rw, err)
		return
	}
	if created {
		logging.Ctx(r.Context()).Info().
			Str("conversation_id", conv.ID).
			Msg("Conversation created")
		rw.Created(conv)
		return
	}
	rw.Success(conv)
}

// DeleteConversation removes a conversation and its messages.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	if err := h.chat.DeleteConversation(r.Context(), id, requesterID(r)); err != nil {
		respondChatError(rw, err)
		return
	}
	rw.NoContent()
}

// UnreadCount returns how many messages in the conversation the requester
// has not read.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	n, err := h.chat.UnreadCount(r.Context(), id, requesterID(r))
	if err != nil {
		respondChatError(rw, err)
		return
	}
	rw.Success(map[string]interface{}{
		"conversationId": id,
		"unread":         n,
	})
}

// ListMessages returns a page of history, oldest first within the page.
// Page 1 is the newest window. Fetching marks the page read.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "conversationId")

	page, err := intParam(r, "page")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req := MessagesRequest{Page: page, Limit: limit}
	if !validateRequest(rw, &req) {
		return
	}

	result, err := h.chat.ListMessages(r.Context(), id, requesterID(r), req.Page, req.Limit)
	if err != nil {
		respondChatError(rw, err)
		return
	}
	rw.SuccessWithPagination(result, &PaginationMeta{
		Page:    result.Page,
		Limit:   result.Limit,
		Count:   len(result.Messages),
		HasMore: result.HasMore,
	})
}

// SendMessage persists a message from the requester and broadcasts it.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = models.MessageKindText
	}

	msg, err := h.chat.SendMessage(r.Context(), req.ConversationID, requesterID(r), req.Content, req.Kind)
	if err != nil {
		respondChatError(rw, err)
		return
	}
	rw.Created(msg)
}
