// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Store    StoreConfig    `koanf:"store"`
	Cache    CacheConfig    `koanf:"cache"`
	Realtime RealtimeConfig `koanf:"realtime"`
	NATS     NATSConfig     `koanf:"nats"`    // Optional: multi-instance realtime fan-out
	Catalog  CatalogConfig  `koanf:"catalog"` // Optional: film catalog proxy
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds request-level protection settings.
//
// Environment Variables:
//   - CORS_ORIGINS: comma-separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS: requests per window per client IP (default: 100)
//   - RATE_LIMIT_WINDOW: rate limit window (default: 1m)
//   - DISABLE_RATE_LIMIT: disable API rate limiting (default: false)
//   - IDENTITY_HEADER: header carrying the requesting user id (default: X-User-ID)
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	IdentityHeader    string        `koanf:"identity_header"`
}

// StoreConfig holds the conversation/message store settings.
type StoreConfig struct {
	// Path is the badger data directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps all data in memory (tests, ephemeral demos).
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// Cache backend names.
const (
	CacheBackendAuto   = "auto"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// CacheConfig holds cache layer settings.
//
// With Backend "auto" (the default) Redis is used when RedisAddr is set,
// otherwise the cache is a no-op pass-through.
//
// Environment Variables:
//   - CACHE_BACKEND: auto, redis, memory, none (default: auto)
//   - REDIS_ADDR: Redis address host:port (default: empty)
//   - REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//   - CACHE_DEFAULT_TTL: TTL for entries without an explicit TTL (default: 5m)
//   - CACHE_SINGLE_FLIGHT: collapse concurrent misses per key (default: false)
//   - CACHE_KEY_PREFIX: prefix applied to every key (default: cinelog)
type CacheConfig struct {
	Backend       string        `koanf:"backend"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	RedisPoolSize int           `koanf:"redis_pool_size"`
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	SingleFlight  bool          `koanf:"single_flight"`
	KeyPrefix     string        `koanf:"key_prefix"`
}

// ResolvedBackend returns the concrete backend for the configured selection.
func (c CacheConfig) ResolvedBackend() string {
	if c.Backend == CacheBackendAuto || c.Backend == "" {
		if c.RedisAddr != "" {
			return CacheBackendRedis
		}
		return CacheBackendNone
	}
	return c.Backend
}

// RealtimeConfig holds socket and event-stream transport settings.
//
// Environment Variables:
//   - REALTIME_BASE_URL: public base URL advertised to clients (default: empty)
//   - REALTIME_SOCKET_PATH: WebSocket mount path (default: /socket)
//   - REALTIME_EVENTS_PATH: event-stream mount path (default: /events)
//   - REALTIME_HEARTBEAT_INTERVAL: event-stream heartbeat (default: 30s)
//   - REALTIME_BUFFER_SIZE: per-connection outbound buffer (default: 256)
type RealtimeConfig struct {
	BaseURL           string        `koanf:"base_url"`
	SocketPath        string        `koanf:"socket_path"`
	EventsPath        string        `koanf:"events_path"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	BufferSize        int           `koanf:"buffer_size"`
}

// NATSConfig holds the NATS broker settings used for multi-instance fan-out.
// When disabled the realtime broker is in-process only.
//
// Environment Variables:
//   - NATS_ENABLED: use NATS for realtime fan-out (default: false)
//   - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: run an embedded single-node server (default: false)
//   - NATS_HOST, NATS_PORT: embedded server listener
//   - NATS_SUBJECT_PREFIX: subject prefix for rooms (default: cinelog.rooms)
//   - NATS_MAX_RECONNECTS: client reconnect attempts, -1 for unlimited (default: -1)
//   - NATS_RECONNECT_WAIT: delay between reconnects (default: 2s)
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// CatalogConfig holds the upstream film catalog API settings.
//
// Environment Variables:
//   - CATALOG_BASE_URL: upstream API base URL (default: https://api.themoviedb.org/3)
//   - CATALOG_API_KEY: API key; the film endpoints return 503 when empty
//   - CATALOG_TIMEOUT: per-request timeout (default: 10s)
//   - CATALOG_MAX_ATTEMPTS: attempts per request (default: 3)
//   - CATALOG_RETRY_DELAY: base linear retry delay (default: 500ms)
//   - CATALOG_RATE_LIMIT: outbound requests per second, 0 for unlimited (default: 20)
//   - CATALOG_CACHE_TTL: TTL for cached catalog responses (default: 1h)
type CatalogConfig struct {
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`
	RetryDelay  time.Duration `koanf:"retry_delay"`
	RateLimit   float64       `koanf:"rate_limit"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// Enabled reports whether the catalog proxy has credentials.
func (c CatalogConfig) Enabled() bool {
	return c.APIKey != ""
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load reads configuration. It is an alias for LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
