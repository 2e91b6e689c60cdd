// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package validation provides struct validation using go-playground/validator v10.
//
// A thread-safe singleton validator reports JSON field names and carries one
// custom tag, entityid, for identifiers that end up inside store keys and
// realtime room names.
//
//	type SendMessageRequest struct {
//	    ConversationID string `json:"conversationId" validate:"required,entityid"`
//	    Content        string `json:"content" validate:"required,max=4000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // respond 400 with apiErr.Code / apiErr.Message / apiErr.Details
//	}
package validation
