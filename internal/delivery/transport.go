// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package delivery

import (
	"context"
	"errors"

	"github.com/tomtom215/cinelog/internal/realtime"
)

var (
	// ErrUpgradeRefused is returned by the socket transport when the server
	// answers the handshake with a plain HTTP response.
	ErrUpgradeRefused = errors.New("websocket upgrade refused")

	// ErrTypingUnsupported is returned by SetTyping on a stream connection.
	ErrTypingUnsupported = errors.New("typing indicators need a socket connection")

	// ErrNotConnected is returned by operations that need a live connection.
	ErrNotConnected = errors.New("not connected")
)

// Transport opens push connections for one user.
type Transport interface {
	// Name returns "websocket" or "stream".
	Name() string

	// Connect returns once the connection is established. The connection
	// then delivers events until it drops or is closed.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one live push connection.
type Conn interface {
	// Events is closed when the connection drops.
	Events() <-chan realtime.Event

	// Err reports why Events closed. It is nil after a local Close.
	Err() error

	Close() error
}

// CommandConn is a connection that also accepts client commands.
type CommandConn interface {
	Conn
	SendCommand(cmd realtime.Command) error
}
