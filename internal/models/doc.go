// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package models defines the chat entities shared by the store, the realtime
transport, the HTTP API and the delivery client.

  - Conversation: a direct chat between exactly two participants
  - Message: a persisted chat message whose reader set only grows
  - ConversationSummary: a conversation with the requester's unread count
  - MessagePage: one page of a conversation's history in chronological order

JSON field names are camelCase and shared by every wire format (HTTP bodies,
socket frames, event-stream data lines).
*/
package models
