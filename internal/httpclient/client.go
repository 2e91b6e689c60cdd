// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package httpclient is the outbound HTTP client for third-party APIs.
//
// Every request gets a timeout, bounded attempts with a linearly growing
// delay (attempt * RetryDelay), an optional rate limit and an optional
// circuit breaker. Only idempotent methods are retried, and only on
// network errors, 5xx and 429.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cinelog/internal/breaker"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/metrics"
)

const (
	// DefaultTimeout bounds one attempt.
	DefaultTimeout = 10 * time.Second

	// maxBodySize limits how much of a response is read.
	maxBodySize = 10 * 1024 * 1024
)

var (
	// ErrNotFound is returned for a 404 response.
	ErrNotFound = errors.New("upstream resource not found")

	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("upstream circuit open")
)

// StatusError is a non-2xx response other than 404. Body holds the full
// response body; Error shows a truncated copy.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, truncate(string(e.Body), 256))
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options configures a Client.
type Options struct {
	// Service labels metrics and logs, e.g. "catalog".
	Service string

	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration

	// RateLimit is the outbound requests per second. Zero disables it.
	RateLimit float64

	// Breaker, when set, wraps each logical request (all its attempts).
	Breaker *breaker.Breaker[*Response]

	// Transport overrides the default round tripper.
	Transport http.RoundTripper

	// Header is added to every request.
	Header http.Header

	UserAgent string
}

// Client performs outbound requests with retries.
type Client struct {
	service     string
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	breaker     *breaker.Breaker[*Response]
	header      http.Header
	userAgent   string
}

// New creates a client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Cinelog/1.0"
	}

	c := &Client{
		service:     opts.Service,
		client:      &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		breaker:     opts.Breaker,
		header:      opts.Header.Clone(),
		userAgent:   opts.UserAgent,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// NewBreaker returns a breaker for an upstream service. Not-found and other
// 4xx answers mean the upstream is healthy and do not count as failures.
func NewBreaker(name string) *breaker.Breaker[*Response] {
	settings := breaker.DefaultSettings()
	settings.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, ErrNotFound) {
			return true
		}
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
		}
		return false
	}
	return breaker.New[*Response](name, settings)
}

// Get performs a GET and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do performs the request. A non-2xx response is returned as ErrNotFound or
// a *StatusError.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(ctx, method, url, body)
	}
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.doWithRetry(ctx, method, url, body)
	})
	if breaker.IsOpen(err) {
		metrics.RecordExternalAPIAttempt(c.service, "circuit_open", 0)
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.service)
	}
	return resp, err
}

func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte) (*Response, error) {
	attempts := c.maxAttempts
	if !idempotent(method) {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * c.retryDelay
			logging.Ctx(ctx).Debug().
				Str("service", c.service).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying upstream request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, method, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			return nil, err
		}
		logging.Ctx(ctx).Warn().Err(err).
			Str("service", c.service).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Upstream request failed")
	}
	return nil, fmt.Errorf("%s: all %d attempts failed: %w", c.service, attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte) (*Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordExternalAPIAttempt(c.service, "network_error", time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.RecordExternalAPIAttempt(c.service, "network_error", time.Since(start))
		return nil, fmt.Errorf("read response: %w", err)
	}
	metrics.RecordExternalAPIAttempt(c.service, outcome(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
}

func outcome(status int) string {
	switch {
	case status < 300:
		return "success"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, ErrNotFound)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
