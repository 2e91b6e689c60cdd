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
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/httpclient"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/models"
	"github.com/tomtom215/cinelog/internal/realtime"
)

const apiPrefix = "/api/v1"

var (
	// ErrReconnectExhausted is returned by Run after MaxReconnectAttempts
	// consecutive failed reconnects. The client is then disconnected.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("client is already running")
)

// APIError is an error answer from the HTTP API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	UserID         string
	IdentityHeader string

	Transport Transport

	MaxReconnectAttempts int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	RequestTimeout       time.Duration
}

// Client keeps one push connection open for a user, deduplicates incoming
// messages against local history and sends over the HTTP API.
type Client struct {
	baseURL   string
	userID    string
	transport Transport
	api       *httpclient.Client

	maxAttempts int
	initial     time.Duration
	maxBackoff  time.Duration

	store     *LocalStore
	onMessage listeners[models.Message]
	onState   listeners[ConnectionState]
	onEvent   listeners[realtime.Event]

	mu    sync.Mutex
	state ConnectionState
	conn  Conn
	chats map[string]struct{}

	running atomic.Bool
}

// NewClient creates a client.
func NewClient(opts Options) *Client {
	if opts.IdentityHeader == "" {
		opts.IdentityHeader = "X-User-ID"
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = 30 * time.Second
	}

	header := http.Header{}
	header.Set(opts.IdentityHeader, opts.UserID)

	return &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		userID:    opts.UserID,
		transport: opts.Transport,
		api: httpclient.New(httpclient.Options{
			Service:     "cinelog-api",
			Timeout:     opts.RequestTimeout,
			MaxAttempts: 3,
			RetryDelay:  200 * time.Millisecond,
			Header:      header,
		}),
		maxAttempts: opts.MaxReconnectAttempts,
		initial:     opts.InitialBackoff,
		maxBackoff:  opts.MaxBackoff,
		store:       NewLocalStore(),
		chats:       make(map[string]struct{}),
	}
}

// New creates a client from configuration, choosing the transport named by
// cfg.Transport.
func New(cfg *config.ClientConfig) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	socket := &WebSocketTransport{URL: websocketURL(base) + cfg.SocketPath, UserID: cfg.UserID}
	stream := &StreamTransport{URL: base + cfg.EventsPath, UserID: cfg.UserID, HeartbeatInterval: cfg.HeartbeatInterval}

	var t Transport
	switch cfg.Transport {
	case config.TransportWebSocket:
		t = socket
	case config.TransportStream:
		t = stream
	default:
		t = &AutoTransport{Socket: socket, Stream: stream}
	}

	return NewClient(Options{
		BaseURL:              base,
		UserID:               cfg.UserID,
		Transport:            t,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		InitialBackoff:       cfg.InitialBackoff,
		MaxBackoff:           cfg.MaxBackoff,
		RequestTimeout:       cfg.RequestTimeout,
	})
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

// OnMessage registers cb for new messages not already in local state.
func (c *Client) OnMessage(cb func(models.Message)) (unsubscribe func()) {
	return c.onMessage.add(cb)
}

// OnConnectionChange registers cb for connection state transitions.
func (c *Client) OnConnectionChange(cb func(ConnectionState)) (unsubscribe func()) {
	return c.onState.add(cb)
}

// OnEvent registers cb for typing, presence and error events.
func (c *Client) OnEvent(cb func(realtime.Event)) (unsubscribe func()) {
	return c.onEvent.add(cb)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Store returns the local message state.
func (c *Client) Store() *LocalStore {
	return c.store
}

// TransportName returns the name of the transport in use.
func (c *Client) TransportName() string {
	return c.transport.Name()
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	logging.Debug().Str("state", s.String()).Msg("Connection state changed")
	c.onState.emit(s)
}

// Run connects and keeps the connection alive until ctx is canceled or
// reconnecting fails MaxReconnectAttempts times in a row. Reconnect attempt
// n waits Backoff(n). A successful connect resets the count.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	attempt := 0
	reconnecting := false
	for {
		if reconnecting {
			attempt++
			if attempt > c.maxAttempts {
				c.setState(StateDisconnected)
				logging.Warn().Int("attempts", c.maxAttempts).Msg("Giving up on live delivery")
				return ErrReconnectExhausted
			}
			c.setState(StateReconnecting)
			delay := Backoff(attempt, c.initial, c.maxBackoff)
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return ctx.Err()
			case <-time.After(delay):
			}
		} else {
			c.setState(StateConnecting)
		}
		reconnecting = true

		conn, err := c.transport.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			logging.Info().Err(err).Int("attempt", attempt).Str("transport", c.transport.Name()).Msg("Connect failed")
			continue
		}

		attempt = 0
		c.attach(conn)
		c.setState(StateConnected)

		c.consume(ctx, conn)
		c.detach(conn)

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		logging.Info().Err(conn.Err()).Str("transport", c.transport.Name()).Msg("Connection lost")
	}
}

func (c *Client) attach(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	chats := make([]string, 0, len(c.chats))
	for id := range c.chats {
		chats = append(chats, id)
	}
	c.mu.Unlock()

	if cc, ok := conn.(CommandConn); ok {
		for _, id := range chats {
			if err := cc.SendCommand(realtime.Command{Type: realtime.CommandJoinChat, ConversationID: id}); err != nil {
				logging.Debug().Err(err).Str("conversation_id", id).Msg("Rejoin failed")
			}
		}
	}
}

// detach closes conn and drains it so its reader can exit.
func (c *Client) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	_ = conn.Close()
	go func() {
		for range conn.Events() {
		}
	}()
}

func (c *Client) consume(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Events():
			if !ok {
				return
			}
			c.dispatch(ev)
		}
	}
}

func (c *Client) dispatch(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventConnection, realtime.EventHeartbeat:
		return
	case realtime.EventNewMessage:
		if ev.Message == nil {
			return
		}
		if c.store.Add(*ev.Message) {
			c.onMessage.emit(*ev.Message)
		}
	default:
		c.onEvent.emit(ev)
	}
}

func (c *Client) currentConn() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// JoinChat subscribes the socket to a conversation's room, now if
// connected and again after every reconnect. On the stream transport
// messages arrive through the user room and this only records interest.
func (c *Client) JoinChat(conversationID string) error {
	c.mu.Lock()
	c.chats[conversationID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if cc, ok := conn.(CommandConn); ok {
		return cc.SendCommand(realtime.Command{Type: realtime.CommandJoinChat, ConversationID: conversationID})
	}
	return nil
}

// SetTyping sends typing-start or typing-stop. It needs a socket.
func (c *Client) SetTyping(conversationID string, typing bool) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	cc, ok := conn.(CommandConn)
	if !ok {
		return ErrTypingUnsupported
	}
	t := realtime.CommandTypingStop
	if typing {
		t = realtime.CommandTypingStart
	}
	return cc.SendCommand(realtime.Command{Type: t, ConversationID: conversationID})
}

// Send posts a message. On success it is added to local state, read by the
// sender. OnMessage fires once for it, from whichever of the response and
// the pushed copy arrives first.
func (c *Client) Send(ctx context.Context, conversationID, content string) (*models.Message, error) {
	var msg models.Message
	err := c.call(ctx, http.MethodPost, "/messages", map[string]string{
		"conversationId": conversationID,
		"content":        content,
	}, &msg)
	if err != nil {
		return nil, err
	}
	msg.MarkRead(c.userID)
	if c.store.Add(msg) {
		c.onMessage.emit(msg)
	}
	return &msg, nil
}

// History fetches a page of a conversation and merges it into local state.
// Fetching marks the page read on the server.
func (c *Client) History(ctx context.Context, conversationID string, page, limit int) (*models.MessagePage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/messages/" + url.PathEscape(conversationID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result models.MessagePage
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	c.store.Merge(result.Messages)
	return &result, nil
}

// StartConversation finds or creates the direct conversation with
// participantID.
func (c *Client) StartConversation(ctx context.Context, participantID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := c.call(ctx, http.MethodPost, "/conversations", map[string]string{"participantId": participantID}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Conversations lists the user's conversations with unread counts.
func (c *Client) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var list []models.ConversationSummary
	if err := c.call(ctx, http.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	resp, err := c.api.Do(ctx, method, c.baseURL+apiPrefix+path, payload)
	if err != nil {
		return toAPIError(err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: "request was not successful"}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func toAPIError(err error) error {
	if errors.Is(err, httpclient.ErrNotFound) {
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "not found"}
	}
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return err
	}
	apiErr := &APIError{Status: se.StatusCode, Code: http.StatusText(se.StatusCode)}
	var env apiEnvelope
	if json.Unmarshal(se.Body, &env) == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
