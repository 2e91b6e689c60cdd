// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package realtime delivers chat events to connected clients.

# Broker

Broker is the canonical fan-out abstraction. Everything that reaches a
client is broadcast to a room first:

  - user.<id>: every connection of one user
  - chat.<id>: every connection that joined one conversation

WatermillBroker implements it with watermill's gochannel pub/sub inside one
process and with watermill-nats (core NATS, no JetStream) across instances.
StartEmbeddedNATS runs a single-node server for deployments without one.

# Transports

Two adapters consume the broker and share one Event vocabulary:

  - Hub and Client: gorilla/websocket rooms. Clients send join-user,
    join-chat, send-message, typing-start and typing-stop commands.
  - Registry and StreamHandler: text/event-stream per user, with a
    connection frame on open and heartbeat frames on an interval.

# Presence

Presence maps connection ids to users across both transports. A user's
first connection triggers user-online and the last disconnect triggers
user-offline with lastSeen, announced through a PresenceAnnouncer.

# Multi-instance

The Registry and Hub only know local connections. With the local broker a
second instance never sees another instance's events; run the NATS broker
when more than one instance serves clients.
*/
package realtime
