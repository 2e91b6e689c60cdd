// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/realtime"
)

const (
	writeWait = 10 * time.Second

	// readIdle drops a socket that has seen neither a frame nor a server
	// ping for this long.
	readIdle = 90 * time.Second
)

// WebSocketTransport connects to the socket endpoint and binds the
// connection to UserID with a join-user command.
type WebSocketTransport struct {
	URL    string
	UserID string
	Dialer *websocket.Dialer
}

// Name implements Transport.
func (t *WebSocketTransport) Name() string { return "websocket" }

// Connect implements Transport.
func (t *WebSocketTransport) Connect(ctx context.Context) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		}
	}

	conn, resp, err := dialer.DialContext(ctx, t.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("%w (status %d)", ErrUpgradeRefused, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &wsConn{
		conn:   conn,
		events: make(chan realtime.Event, 64),
	}
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdle))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	if err := c.SendCommand(realtime.Command{Type: realtime.CommandJoinUser, UserID: t.UserID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join-user: %w", err)
	}

	go c.readLoop()
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	events chan realtime.Event

	writeMu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool
}

func (c *wsConn) Events() <-chan realtime.Event { return c.events }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) SendCommand(cmd realtime.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(cmd)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func (c *wsConn) readLoop() {
	defer close(c.events)

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(readIdle)); err != nil {
			c.fail(err)
			return
		}
		var ev realtime.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.fail(err)
			return
		}
		c.events <- ev
	}
}

// fail records the read error unless the connection was closed locally.
func (c *wsConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logging.Debug().Msg("Socket closed by server")
	}
	c.err = err
}
