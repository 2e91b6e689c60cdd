// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package api provides the HTTP layer for Cinelog.

Key Components:

  - Router: chi route tree and middleware stack
  - Handler: request handlers for conversations, messages, films and health
  - ResponseWriter: the JSON envelope every endpoint answers with
  - IdentityMiddleware: resolves the requesting user from a header

Endpoints (all JSON under /api/v1 unless noted):

	GET    /conversations                 list with unread counts
	POST   /conversations                 find or create {participantId}
	DELETE /conversations/{id}            delete with its messages
	GET    /conversations/{id}/unread     unread count
	GET    /messages/{conversationId}     history page (marks it read)
	POST   /messages                      send {conversationId, content, kind?}
	GET    /films/{id}                    catalog film detail
	GET    /films/search?q=&page=         catalog search
	GET    /health/live, /health/ready    probes
	GET    /metrics                       Prometheus (root path)
	GET    <events path>?userId=          text/event-stream (root path)
	GET    <socket path>                  WebSocket (root path)

Response Format:

	{
	  "success": true,
	  "data": {...},
	  "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3}
	}

Errors carry a machine-readable code:

	{"success": false, "error": {"code": "NOT_FOUND", "message": "conversation not found"}}

A conversation the requester does not participate in answers NOT_FOUND,
never FORBIDDEN.

Rate limiting applies to the /api/v1 tree only. The socket and event
stream are long-lived and are not rate limited.
*/
package api
