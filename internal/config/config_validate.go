// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateRealtime(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateCatalog(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if strings.TrimSpace(c.Security.IdentityHeader) == "" {
		return fmt.Errorf("IDENTITY_HEADER must not be empty")
	}
	return c.validateRateLimits()
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if wildcard CORS is configured in production.
// The identity header is trusted as-is, so any origin can act as any user.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS() && c.IsProduction()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateStore validates the store configuration
func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.GCInterval < time.Minute {
		return fmt.Errorf("STORE_GC_INTERVAL must be at least 1m, got: %v", c.Store.GCInterval)
	}
	return nil
}

// validCacheBackends defines the allowed cache backends
var validCacheBackends = map[string]bool{
	CacheBackendAuto:   true,
	CacheBackendRedis:  true,
	CacheBackendMemory: true,
	CacheBackendNone:   true,
}

// validateCache validates cache configuration
func (c *Config) validateCache() error {
	if !validCacheBackends[c.Cache.Backend] {
		return fmt.Errorf("CACHE_BACKEND must be one of: auto, redis, memory, none")
	}
	if c.Cache.Backend == CacheBackendRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
	}
	if c.Cache.RedisDB < 0 || c.Cache.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}
	if c.Cache.RedisPoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be at least 1")
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}
	return nil
}

// validateRealtime validates realtime transport configuration
func (c *Config) validateRealtime() error {
	if err := validateRoutePath(c.Realtime.SocketPath, "REALTIME_SOCKET_PATH"); err != nil {
		return err
	}
	if err := validateRoutePath(c.Realtime.EventsPath, "REALTIME_EVENTS_PATH"); err != nil {
		return err
	}
	if c.Realtime.SocketPath == c.Realtime.EventsPath {
		return fmt.Errorf("REALTIME_SOCKET_PATH and REALTIME_EVENTS_PATH must differ")
	}
	if c.Realtime.BaseURL != "" {
		if err := validateHTTPURL(c.Realtime.BaseURL, "REALTIME_BASE_URL", false); err != nil {
			return err
		}
	}
	if c.Realtime.HeartbeatInterval < time.Second {
		return fmt.Errorf("REALTIME_HEARTBEAT_INTERVAL must be at least 1s, got: %v", c.Realtime.HeartbeatInterval)
	}
	if c.Realtime.BufferSize < 1 {
		return fmt.Errorf("REALTIME_BUFFER_SIZE must be at least 1")
	}
	return nil
}

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.Port < 1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
	} else if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must not be empty")
	}
	if c.NATS.ReconnectWait <= 0 {
		return fmt.Errorf("NATS_RECONNECT_WAIT must be positive")
	}
	return nil
}

// validateCatalog validates the film catalog configuration
func (c *Config) validateCatalog() error {
	if err := validateHTTPURL(c.Catalog.BaseURL, "CATALOG_BASE_URL", true); err != nil {
		return err
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}
	if c.Catalog.MaxAttempts < 1 || c.Catalog.MaxAttempts > 10 {
		return fmt.Errorf("CATALOG_MAX_ATTEMPTS must be between 1 and 10")
	}
	if c.Catalog.RetryDelay < 0 {
		return fmt.Errorf("CATALOG_RETRY_DELAY must not be negative")
	}
	if c.Catalog.RateLimit < 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT must not be negative")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
