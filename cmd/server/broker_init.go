// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package main

import (
	"fmt"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/realtime"
)

// BrokerComponents holds the realtime broker and, when configured, the
// embedded NATS server behind it.
type BrokerComponents struct {
	Broker   *realtime.WatermillBroker
	embedded *realtime.EmbeddedNATS
}

// InitBroker selects the realtime broker. With NATS disabled every event
// stays in process; otherwise events fan out through NATS, optionally
// served by an embedded single-node server.
func InitBroker(cfg *config.Config) (*BrokerComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("Realtime broker running in process (NATS_ENABLED=false)")
		return &BrokerComponents{Broker: realtime.NewLocalBroker(cfg.Realtime.BufferSize)}, nil
	}

	components := &BrokerComponents{}
	url := cfg.NATS.URL

	if cfg.NATS.EmbeddedServer {
		embedded, err := realtime.StartEmbeddedNATS(cfg.NATS.Host, cfg.NATS.Port)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		components.embedded = embedded
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	broker, err := realtime.NewNATSBroker(cfg.NATS, url, cfg.Realtime.BufferSize)
	if err != nil {
		components.Shutdown()
		return nil, fmt.Errorf("connect NATS broker: %w", err)
	}
	components.Broker = broker

	logging.Info().
		Str("url", url).
		Bool("embedded", cfg.NATS.EmbeddedServer).
		Msg("Realtime broker using NATS")
	return components, nil
}

// Shutdown closes the broker, then the embedded server if one was started.
func (c *BrokerComponents) Shutdown() {
	if c == nil {
		return
	}
	if c.Broker != nil {
		if err := c.Broker.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing realtime broker")
		}
	}
	if c.embedded != nil {
		c.embedded.Shutdown()
		logging.Info().Msg("Embedded NATS server stopped")
	}
}
