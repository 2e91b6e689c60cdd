// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
)

// originMetadataKey carries the originating connection id on broker messages.
const originMetadataKey = "origin"

// ErrBrokerClosed is returned by Broadcast and Subscribe after Close.
var ErrBrokerClosed = errors.New("broker is closed")

// Broker is the canonical fan-out abstraction. Socket rooms and event
// streams are both adapters over it.
type Broker interface {
	// Broadcast publishes ev to every subscriber of room, on every instance
	// sharing the broker. The originating connection, if any, is taken from
	// ctx (see ContextWithOrigin).
	Broadcast(ctx context.Context, room string, ev Event) error

	// Subscribe delivers the room's events until ctx is canceled, then
	// closes the channel.
	Subscribe(ctx context.Context, room string) (<-chan Envelope, error)

	Close() error
}

type originKey struct{}

// ContextWithOrigin marks events broadcast with ctx as coming from the
// given connection so room members can skip their own echoes.
func ContextWithOrigin(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, originKey{}, connectionID)
}

// OriginFromContext returns the connection id set by ContextWithOrigin.
func OriginFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(originKey{}).(string); ok {
		return v
	}
	return ""
}

// WatermillBroker implements Broker on a watermill publisher/subscriber
// pair: gochannel in a single process, core NATS across instances.
type WatermillBroker struct {
	kind       string
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      func(room string) string
	bufferSize int
	closed     atomic.Bool
}

func watermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewLocalBroker creates an in-process broker. Publishing blocks until every
// subscriber has taken the event, which keeps per-room order.
func NewLocalBroker(bufferSize int) *WatermillBroker {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            int64(bufferSize),
		BlockPublishUntilSubscriberAck: true,
	}, watermillLogger())

	return &WatermillBroker{
		kind:       "local",
		publisher:  pubSub,
		subscriber: pubSub,
		topic:      func(room string) string { return room },
		bufferSize: bufferSize,
	}
}

// NewNATSBroker creates a broker over core NATS (JetStream disabled) at url.
// Every instance receives every room event it subscribes to.
func NewNATSBroker(cfg config.NATSConfig, url string, bufferSize int) (*WatermillBroker, error) {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	logger := watermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.Name("cinelog-realtime"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	return &WatermillBroker{
		kind:       "nats",
		publisher:  pub,
		subscriber: sub,
		topic: func(room string) string {
			if prefix == "" {
				return room
			}
			return prefix + "." + room
		},
		bufferSize: bufferSize,
	}, nil
}

// Kind returns "local" or "nats".
func (b *WatermillBroker) Kind() string {
	return b.kind
}

// Ping returns ErrBrokerClosed after Close.
func (b *WatermillBroker) Ping(context.Context) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}
	return nil
}

// Broadcast implements Broker.
func (b *WatermillBroker) Broadcast(ctx context.Context, room string, ev Event) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if origin := OriginFromContext(ctx); origin != "" {
		msg.Metadata.Set(originMetadataKey, origin)
	}

	if err := b.publisher.Publish(b.topic(room), msg); err != nil {
		return fmt.Errorf("publish to %s: %w", room, err)
	}
	metrics.RealtimeEventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Subscribe implements Broker. Messages are acknowledged on receipt;
// delivery to sockets and streams is best-effort.
func (b *WatermillBroker) Subscribe(ctx context.Context, room string) (<-chan Envelope, error) {
	if b.closed.Load() {
		return nil, ErrBrokerClosed
	}

	messages, err := b.subscriber.Subscribe(ctx, b.topic(room))
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", room, err)
	}

	out := make(chan Envelope, b.bufferSize)
	go func() {
		defer close(out)
		for msg := range messages {
			msg.Ack()

			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logging.Warn().Err(err).Str("room", room).Msg("Dropping undecodable broker event")
				continue
			}

			select {
			case out <- Envelope{Room: room, Origin: msg.Metadata.Get(originMetadataKey), Event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the publisher and subscriber. Open subscriptions are
// closed.
func (b *WatermillBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	pubErr := b.publisher.Close()
	if b.kind == "local" {
		return pubErr
	}
	return errors.Join(pubErr, b.subscriber.Close())
}
