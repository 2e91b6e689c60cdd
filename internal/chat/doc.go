// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package chat persists direct conversations and their messages in BadgerDB
// and publishes new messages to the realtime broker.
//
// # Key layout
//
//	conv:<id>                       conversation document
//	pair:<a>|<b>                    conversation id for a sorted participant pair
//	uconv:<user>:<conv>             per-participant index
//	msg:<conv>:<unix nanos>:<id>    message document, time ordered
//
// All writes run in read-write transactions retried on badger.ErrConflict,
// which makes FindOrCreateConversation idempotent under concurrent calls
// and keeps message timestamps strictly increasing per conversation.
//
// # Read receipts
//
// ListMessages marks the returned messages as read by the requester in the
// same transaction that reads them. Fetching history is the read receipt.
//
// # Access
//
// A user who is not a participant gets ErrNotFound, never a distinct
// forbidden error.
package chat
