// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package delivery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/realtime"
)

// errStreamIdle is reported when no frame, heartbeat included, arrived
// within the idle window.
var errStreamIdle = errors.New("event stream idle")

// StreamTransport reads the text/event-stream endpoint for UserID.
type StreamTransport struct {
	URL    string
	UserID string

	// HeartbeatInterval is the server's heartbeat period. The connection is
	// treated as dead after two intervals without a frame.
	HeartbeatInterval time.Duration

	// Client must not set a Timeout; the stream is long-lived.
	Client *http.Client
}

// Name implements Transport.
func (t *StreamTransport) Name() string { return "stream" }

// Connect implements Transport.
func (t *StreamTransport) Connect(ctx context.Context) (Conn, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("userId", t.UserID)
	u.RawQuery = q.Encode()

	connCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open event stream: status %d", resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open event stream: unexpected content type %q", mt)
	}

	idle := 2 * t.HeartbeatInterval
	if idle <= 0 {
		idle = 60 * time.Second
	}

	c := &streamConn{
		body:   resp.Body,
		cancel: cancel,
		events: make(chan realtime.Event, 64),
	}
	c.idle = time.AfterFunc(idle, func() {
		c.fail(errStreamIdle)
		cancel()
	})
	go c.readLoop(idle)
	return c, nil
}

type streamConn struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	events chan realtime.Event
	idle   *time.Timer

	mu     sync.Mutex
	err    error
	closed bool
}

func (c *streamConn) Events() <-chan realtime.Event { return c.events }

func (c *streamConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *streamConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.idle.Stop()
	c.cancel()
	return c.body.Close()
}

func (c *streamConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.err != nil {
		return
	}
	c.err = err
}

func (c *streamConn) readLoop(idle time.Duration) {
	defer close(c.events)
	defer c.idle.Stop()
	defer c.body.Close()

	scanner := bufio.NewScanner(c.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		c.idle.Reset(idle)

		var ev realtime.Event
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			logging.Debug().Err(err).Msg("Skipping undecodable stream frame")
			continue
		}
		c.events <- ev
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.fail(err)
}
