// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedNATS is a single-node NATS server run inside the process, for
// deployments that want the NATS broker without operating one.
type EmbeddedNATS struct {
	server    *server.Server
	clientURL string
}

// StartEmbeddedNATS starts a core NATS server (no JetStream) on host:port.
// A port of -1 picks a random free port.
func StartEmbeddedNATS(host string, port int) (*EmbeddedNATS, error) {
	opts := &server.Options{
		ServerName: "cinelog-realtime",
		Host:       host,
		Port:       port,
		JetStream:  false,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedNATS{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (e *EmbeddedNATS) ClientURL() string {
	return e.clientURL
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedNATS) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
}

// IsRunning reports server health.
func (e *EmbeddedNATS) IsRunning() bool {
	return e.server.Running()
}
