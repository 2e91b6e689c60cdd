// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package delivery is the client side of realtime messaging.

A Client holds one push connection for a user through a Transport:

  - WebSocketTransport: the socket endpoint; supports typing indicators
  - StreamTransport: the text/event-stream endpoint
  - AutoTransport: the socket, falling back to the stream for the rest of
    the session when the server refuses the upgrade

Incoming new-message events are checked against the LocalStore by message
id before OnMessage callbacks run, so a message seen both over push and in
fetched history is reported once.

When the connection drops the client reconnects with capped exponential
backoff. After MaxReconnectAttempts consecutive failures it settles in
StateDisconnected and Run returns ErrReconnectExhausted; Send and History
keep working over HTTP.

Usage:

	c := delivery.New(cfg)
	unsubscribe := c.OnMessage(func(m models.Message) { fmt.Println(m.Content) })
	defer unsubscribe()
	go c.Run(ctx)
	msg, err := c.Send(ctx, conversationID, "hello")
*/
package delivery
