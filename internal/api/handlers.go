// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/cinelog/internal/catalog"
	"github.com/tomtom215/cinelog/internal/chat"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor and error mapping (this file)
//   - handlers_chat.go: conversations and messages
//   - handlers_films.go: film catalog proxy
//   - handlers_health.go: liveness and readiness probes
type Handler struct {
	chat      *chat.Service
	catalog   *catalog.Service
	checks    map[string]ReadinessCheck
	startTime time.Time
}

// NewHandler creates the API handler. catalog may be nil, in which case the
// film endpoints answer 503.
func NewHandler(chatSvc *chat.Service, catalogSvc *catalog.Service) *Handler {
	return &Handler{
		chat:      chatSvc,
		catalog:   catalogSvc,
		checks:    make(map[string]ReadinessCheck),
		startTime: time.Now(),
	}
}

// AddReadinessCheck registers a named dependency for /health/ready.
// Call before serving.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// respondChatError maps chat errors onto the envelope. Non-participants get
// the same 404 as a missing conversation.
func respondChatError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		rw.NotFound("conversation not found")
	case errors.Is(err, chat.ErrInvalidArgument):
		rw.BadRequest(err.Error())
	case errors.Is(err, chat.ErrStoreClosed):
		rw.ServiceUnavailable("store is shutting down")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		rw.StoreError(err)
	}
}
