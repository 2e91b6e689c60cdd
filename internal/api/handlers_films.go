// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cinelog/internal/catalog"
	"github.com/tomtom215/cinelog/internal/httpclient"
)

const catalogService = "catalog"

// Film proxies a film detail lookup through the cache.
func (h *Handler) Film(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.catalog == nil || !h.catalog.Enabled() {
		rw.ServiceUnavailable("film catalog is not configured")
		return
	}

	data, err := h.catalog.Film(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondCatalogError(rw, err)
		return
	}
	rw.Success(data)
}

// SearchFilms proxies a title search through the cache.
func (h *Handler) SearchFilms(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.catalog == nil || !h.catalog.Enabled() {
		rw.ServiceUnavailable("film catalog is not configured")
		return
	}

	page, err := intParam(r, "page")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req := FilmSearchRequest{Query: strings.TrimSpace(r.URL.Query().Get("q")), Page: page}
	if !validateRequest(rw, &req) {
		return
	}

	data, err := h.catalog.Search(r.Context(), req.Query, req.Page)
	if err != nil {
		respondCatalogError(rw, err)
		return
	}
	rw.Success(data)
}

func respondCatalogError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrDisabled):
		rw.ServiceUnavailable("film catalog is not configured")
	case errors.Is(err, catalog.ErrNotFound):
		rw.NotFound("film not found")
	case errors.Is(err, catalog.ErrInvalidArgument):
		rw.BadRequest(err.Error())
	case errors.Is(err, httpclient.ErrCircuitOpen), errors.Is(err, catalog.ErrUpstream):
		rw.ExternalServiceError(catalogService, err)
	case errors.Is(err, context.Canceled):
	default:
		rw.ExternalServiceError(catalogService, err)
	}
}
