// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
	"github.com/tomtom215/cinelog/internal/validation"
)

// StreamHandler serves GET <events path>?userId=<id> as a
// text/event-stream. Each frame is a single "data:" line holding an Event.
type StreamHandler struct {
	registry *Registry
}

// NewStreamHandler creates the event-stream endpoint over registry.
func NewStreamHandler(registry *Registry) *StreamHandler {
	return &StreamHandler{registry: registry}
}

func writeHTTPError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ServeHTTP implements http.Handler. It returns when the client goes away
// or the registry closes the stream; either way the stream is deregistered
// before returning.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if !validation.IsEntityID(userID) {
		writeHTTPError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeHTTPError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, err := h.registry.Register(userID)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", userID).Msg("Event stream registration failed")
		writeHTTPError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	defer h.registry.Deregister(stream)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, Event{
		Type:         EventConnection,
		UserID:       userID,
		ConnectionID: stream.ID,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.registry.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-stream.Done():
			return
		case <-ticker.C:
			if err := writeFrame(w, Event{Type: EventHeartbeat, Timestamp: time.Now().UTC()}); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-stream.Events():
			if err := writeFrame(w, ev); err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Str("user_id", userID).Msg("Event stream write failed")
				return
			}
			flusher.Flush()
			metrics.RealtimeEventsDelivered.WithLabelValues(transportStream).Inc()
		}
	}
}

func writeFrame(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
