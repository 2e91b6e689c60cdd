// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinelog/internal/models"
	"github.com/tomtom215/cinelog/internal/validation"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 * 1024

// StartConversationRequest is the body of POST /conversations.
type StartConversationRequest struct {
	ParticipantID string `json:"participantId" validate:"required,entityid"`
}

// SendMessageRequest is the body of POST /messages. Content length is
// checked by the store against its character limit.
type SendMessageRequest struct {
	ConversationID string             `json:"conversationId" validate:"required,entityid"`
	Content        string             `json:"content" validate:"required"`
	Kind           models.MessageKind `json:"kind" validate:"omitempty,oneof=text image file"`
}

// MessagesRequest holds the query parameters of GET /messages/{id}.
// Zero values select the defaults.
type MessagesRequest struct {
	Page  int `validate:"gte=0"`
	Limit int `validate:"gte=0,lte=100"`
}

// FilmSearchRequest holds the query parameters of GET /films/search.
type FilmSearchRequest struct {
	Query string `json:"q" validate:"required,max=200"`
	Page  int    `json:"page" validate:"gte=0,lte=500"`
}

var errBadBody = errors.New("request body must be a JSON object")

// decodeBody decodes a bounded JSON body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return err
	}
	if len(body) > maxRequestBody {
		return errors.New("request body too large")
	}
	if len(body) == 0 {
		return errBadBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errBadBody
	}
	return nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

// validateRequest runs struct validation and writes the 400 response on
// failure. It reports whether the request may proceed.
func validateRequest(rw *ResponseWriter, req interface{}) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
