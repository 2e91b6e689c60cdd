// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package chat

import "errors"

// Errors
var (
	// ErrNotFound is returned for an absent conversation and for any access
	// by a user who is not a participant. The two are indistinguishable.
	ErrNotFound = errors.New("conversation not found")

	// ErrInvalidArgument is returned for malformed ids, a self-conversation,
	// empty content or an unknown message kind.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store is closed")
)
