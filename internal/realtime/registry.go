// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
)

const transportStream = "stream"

// ErrRegistryClosed is returned by Register after Close.
var ErrRegistryClosed = errors.New("stream registry is closed")

// Stream is one open event-stream connection.
type Stream struct {
	ID     string
	UserID string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events delivers the events routed to this stream.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Done is closed when the registry drops the stream.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

type userStreams struct {
	streams map[string]*Stream
	cancel  context.CancelFunc
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Broker            Broker
	Presence          *Presence
	Announcer         PresenceAnnouncer
	HeartbeatInterval time.Duration
	BufferSize        int
}

// Registry tracks open event streams per user. It subscribes to a user's
// broker room when the user's first stream registers and releases the
// subscription when the last one leaves.
type Registry struct {
	broker    Broker
	presence  *Presence
	announcer PresenceAnnouncer
	heartbeat time.Duration
	buffer    int

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	users  map[string]*userStreams
	closed bool
}

// NewRegistry creates a registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Presence == nil {
		cfg.Presence = NewPresence()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		broker:    cfg.Broker,
		presence:  cfg.Presence,
		announcer: cfg.Announcer,
		heartbeat: cfg.HeartbeatInterval,
		buffer:    cfg.BufferSize,
		ctx:       ctx,
		cancel:    cancel,
		users:     make(map[string]*userStreams),
	}
}

// Register opens a stream for userID and, for the user's first stream,
// subscribes to the user's room before returning.
func (r *Registry) Register(userID string) (*Stream, error) {
	s := &Stream{
		ID:     uuid.NewString(),
		UserID: userID,
		events: make(chan Event, r.buffer),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	u, ok := r.users[userID]
	var subCtx context.Context
	if !ok {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithCancel(r.ctx)
		u = &userStreams{streams: make(map[string]*Stream), cancel: cancel}
		r.users[userID] = u
	}
	u.streams[s.ID] = s
	r.mu.Unlock()

	// Subscribe outside the lock: the forwarder needs it to deliver.
	if subCtx != nil {
		events, err := r.broker.Subscribe(subCtx, UserRoom(userID))
		if err != nil {
			r.remove(s)
			return nil, err
		}
		go r.forward(subCtx, userID, events)
	}

	metrics.RealtimeConnections.WithLabelValues(transportStream).Inc()
	r.presence.connect(r.announcer, s.ID, userID)

	logging.Debug().Str("user_id", userID).Str("stream_id", s.ID).Msg("Event stream registered")
	return s, nil
}

func (r *Registry) forward(ctx context.Context, userID string, events <-chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			r.SendToUser(userID, env.Event)
		}
	}
}

// remove drops s and releases the user's subscription if s was the last
// stream. It reports whether s was registered.
func (r *Registry) remove(s *Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[s.UserID]
	if !ok {
		return false
	}
	if _, ok := u.streams[s.ID]; !ok {
		return false
	}
	delete(u.streams, s.ID)
	if len(u.streams) == 0 {
		u.cancel()
		delete(r.users, s.UserID)
	}
	s.close()
	return true
}

// Deregister closes s. It is idempotent.
func (r *Registry) Deregister(s *Stream) {
	if !r.remove(s) {
		return
	}

	metrics.RealtimeConnections.WithLabelValues(transportStream).Dec()
	r.presence.disconnect(r.announcer, s.ID)

	logging.Debug().Str("user_id", s.UserID).Str("stream_id", s.ID).Msg("Event stream deregistered")
}

// IsConnected reports whether userID has at least one open stream.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// Lookup returns the ids of userID's open streams.
func (r *Registry) Lookup(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(u.streams))
	for id := range u.streams {
		ids = append(ids, id)
	}
	return ids
}

// StreamCount returns the number of open streams.
func (r *Registry) StreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, u := range r.users {
		n += len(u.streams)
	}
	return n
}

// SendToUser queues ev on every open stream of userID without blocking. It
// returns false when the user has no stream or no stream accepted the event.
func (r *Registry) SendToUser(userID string, ev Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		metrics.RealtimeDeliveryMisses.WithLabelValues(transportStream, "absent").Inc()
		logging.Debug().Str("user_id", userID).Str("type", string(ev.Type)).Msg("No event stream for user")
		return false
	}

	delivered := false
	for _, s := range u.streams {
		select {
		case s.events <- ev:
			delivered = true
		default:
			metrics.RealtimeDeliveryMisses.WithLabelValues(transportStream, "buffer_full").Inc()
			logging.Debug().Str("user_id", userID).Str("stream_id", s.ID).Msg("Event stream buffer full, dropping event")
		}
	}
	return delivered
}

// Serve blocks until ctx is canceled, then closes every stream. It lets the
// registry run as a supervised service.
func (r *Registry) Serve(ctx context.Context) error {
	<-ctx.Done()
	r.Close()
	return ctx.Err()
}

// Close drops all streams and broker subscriptions. Handlers blocked on a
// stream return.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var streams []*Stream
	for _, u := range r.users {
		for _, s := range u.streams {
			streams = append(streams, s)
		}
	}
	r.mu.Unlock()

	for _, s := range streams {
		r.Deregister(s)
	}
	r.cancel()

	logging.Info().Str("component", "stream-registry").Int("streams_closed", len(streams)).Msg("Stream registry stopped")
}
