// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package delivery

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/tomtom215/cinelog/internal/logging"
)

// AutoTransport prefers the socket and falls back to the event stream for
// the rest of the session once the server refuses the upgrade. Other dial
// failures do not trigger the fallback.
type AutoTransport struct {
	Socket *WebSocketTransport
	Stream *StreamTransport

	fellBack atomic.Bool
}

// Name returns the transport currently in use.
func (t *AutoTransport) Name() string {
	if t.fellBack.Load() {
		return t.Stream.Name()
	}
	return t.Socket.Name()
}

// Connect implements Transport.
func (t *AutoTransport) Connect(ctx context.Context) (Conn, error) {
	if !t.fellBack.Load() {
		conn, err := t.Socket.Connect(ctx)
		if !errors.Is(err, ErrUpgradeRefused) {
			return conn, err
		}
		logging.Info().Err(err).Msg("Socket unavailable, falling back to event stream")
		t.fellBack.Store(true)
	}
	return t.Stream.Connect(ctx)
}
