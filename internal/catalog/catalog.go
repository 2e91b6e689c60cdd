// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package catalog proxies film details and search to the upstream catalog
// API (TMDB-compatible) behind the cache.
//
// Responses are passed through as raw JSON. Successful responses are cached
// for the configured TTL; errors are never cached.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinelog/internal/cache"
	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/httpclient"
	"github.com/tomtom215/cinelog/internal/logging"
)

const (
	serviceName    = "catalog"
	maxQueryLength = 200
	maxPage        = 500
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("film catalog is not configured")

	// ErrNotFound is returned when the upstream has no such film.
	ErrNotFound = errors.New("film not found")

	// ErrInvalidArgument is returned for malformed ids, queries or pages.
	ErrInvalidArgument = errors.New("invalid catalog request")

	// ErrUpstream wraps every other upstream failure.
	ErrUpstream = errors.New("film catalog unavailable")
)

// Service fetches catalog data through the cache.
type Service struct {
	client  *httpclient.Client
	cache   *cache.Cache
	baseURL string
	apiKey  string
	ttl     time.Duration
}

// NewService creates a catalog proxy. c may be nil.
func NewService(cfg config.CatalogConfig, c *cache.Cache) *Service {
	return &Service{
		client: httpclient.New(httpclient.Options{
			Service:     serviceName,
			Timeout:     cfg.Timeout,
			MaxAttempts: cfg.MaxAttempts,
			RetryDelay:  cfg.RetryDelay,
			RateLimit:   cfg.RateLimit,
			Breaker:     httpclient.NewBreaker("catalog-api"),
		}),
		cache:   c,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		ttl:     cfg.CacheTTL,
	}
}

// Enabled reports whether the upstream is configured.
func (s *Service) Enabled() bool {
	return s.apiKey != ""
}

// Film returns the upstream document for a film id.
func (s *Service) Film(ctx context.Context, id string) (json.RawMessage, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if n, err := strconv.ParseUint(id, 10, 64); err != nil || n == 0 {
		return nil, fmt.Errorf("%w: film id must be a positive integer", ErrInvalidArgument)
	}

	return cache.CacheWithFallback(ctx, s.cache, cache.Key("films", id), s.ttl,
		func(ctx context.Context) (json.RawMessage, error) {
			return s.fetch(ctx, "/movie/"+id, nil)
		})
}

// Search returns one page of upstream search results for query.
func (s *Service) Search(ctx context.Context, query string, page int) (json.RawMessage, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" || len(query) > maxQueryLength {
		return nil, fmt.Errorf("%w: query must be 1-%d characters", ErrInvalidArgument, maxQueryLength)
	}
	if page == 0 {
		page = 1
	}
	if page < 1 || page > maxPage {
		return nil, fmt.Errorf("%w: page must be between 1 and %d", ErrInvalidArgument, maxPage)
	}

	key := cache.GenerateKey("films:search", map[string]any{"q": strings.ToLower(query), "page": page})
	return cache.CacheWithFallback(ctx, s.cache, key, s.ttl,
		func(ctx context.Context) (json.RawMessage, error) {
			return s.fetch(ctx, "/search/movie", url.Values{
				"query": {query},
				"page":  {strconv.Itoa(page)},
			})
		})
}

func (s *Service) fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", s.apiKey)

	body, err := s.client.Get(ctx, s.baseURL+path+"?"+params.Encode())
	switch {
	case err == nil:
	case errors.Is(err, httpclient.ErrNotFound):
		return nil, ErrNotFound
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Catalog request failed")
		return nil, fmt.Errorf("%w: %s", ErrUpstream, redact(err.Error(), s.apiKey))
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: upstream returned invalid JSON", ErrUpstream)
	}
	return json.RawMessage(body), nil
}

// redact strips the API key from error text, which can include the URL.
func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "REDACTED")
}
