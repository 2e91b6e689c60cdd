// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package main is the entry point for the Cinelog server.

The server stores direct conversations in BadgerDB, serves their history and
unread counts through a cache-augmented REST API, and pushes new messages,
typing and presence to connected users over two realtime transports: a
bidirectional WebSocket at /socket and a one-way event stream at /events.
A small proxy over the upstream film catalog shares the same cache.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("cinelog")
	├── DataSupervisor ("data-layer")
	│   └── Store GC
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Realtime hub (websocket rooms)
	│   └── Event-stream registry
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: Koanf v2 (defaults, optional config.yaml, environment)
 2. Logging: zerolog, with an slog bridge for the supervisor
 3. Store: BadgerDB conversations and messages
 4. Cache: Redis, in-memory or none, behind a circuit breaker
 5. Broker: in-process Watermill GoChannel, or NATS (external or embedded)
 6. Chat service, realtime hub and event-stream registry
 7. Catalog proxy (disabled without CATALOG_API_KEY)
 8. HTTP server: chi router with CORS, rate limiting and identity middleware

# Configuration

Common environment variables:

	HTTP_PORT=8080
	STORE_PATH=/data/cinelog
	REDIS_ADDR=redis:6379
	NATS_ENABLED=true NATS_EMBEDDED=true
	CATALOG_API_KEY=...
	LOG_LEVEL=debug LOG_FORMAT=console

The requesting user is taken from the X-User-ID header (IDENTITY_HEADER),
which an authenticating proxy in front of the server is expected to set.

# Signal Handling

SIGINT and SIGTERM cancel the supervisor context. The HTTP server drains
for up to SERVER_TIMEOUT (default 30s), open streams and sockets are closed, then the broker, the
cache and the store are closed in that order.
*/
package main
