// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cinelog/config.yaml",
	"/etc/cinelog/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			IdentityHeader:    "X-User-ID",
		},
		Store: StoreConfig{
			Path:       "/data/cinelog",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:       CacheBackendAuto,
			RedisAddr:     "",
			RedisDB:       0,
			RedisPoolSize: 10,
			DefaultTTL:    5 * time.Minute,
			SingleFlight:  false,
			KeyPrefix:     "cinelog",
		},
		Realtime: RealtimeConfig{
			BaseURL:           "",
			SocketPath:        "/socket",
			EventsPath:        "/events",
			HeartbeatInterval: 30 * time.Second,
			BufferSize:        256,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			Host:           "127.0.0.1",
			Port:           4222,
			SubjectPrefix:  "cinelog.rooms",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL:     "https://api.themoviedb.org/3",
			APIKey:      "",
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  500 * time.Millisecond,
			RateLimit:   20,
			CacheTTL:    time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	cfg := &Config{}
	if err := loadLayers(defaultConfig(), findConfigFile(), envTransformFunc, sliceConfigPaths, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadLayers runs the defaults -> file -> env pipeline into out.
func loadLayers(defaults any, configPath string, transform func(string) string, slicePaths []string, out any) error {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", transform), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k, slicePaths); err != nil {
		return fmt.Errorf("failed to process slice fields: %w", err)
	}

	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf, paths []string) error {
	for _, path := range paths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from defaults or YAML)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":      "server.port",
	"http_host":      "server.host",
	"server_timeout": "server.timeout",
	"environment":    "server.environment",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"identity_header":     "security.identity_header",

	// Store
	"store_path":        "store.path",
	"store_in_memory":   "store.in_memory",
	"store_gc_interval": "store.gc_interval",

	// Cache
	"cache_backend":       "cache.backend",
	"redis_addr":          "cache.redis_addr",
	"redis_password":      "cache.redis_password",
	"redis_db":            "cache.redis_db",
	"redis_pool_size":     "cache.redis_pool_size",
	"cache_default_ttl":   "cache.default_ttl",
	"cache_single_flight": "cache.single_flight",
	"cache_key_prefix":    "cache.key_prefix",

	// Realtime
	"realtime_base_url":           "realtime.base_url",
	"realtime_socket_path":        "realtime.socket_path",
	"realtime_events_path":        "realtime.events_path",
	"realtime_heartbeat_interval": "realtime.heartbeat_interval",
	"realtime_buffer_size":        "realtime.buffer_size",

	// NATS
	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_subject_prefix": "nats.subject_prefix",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",

	// Catalog
	"catalog_base_url":     "catalog.base_url",
	"catalog_api_key":      "catalog.api_key",
	"catalog_timeout":      "catalog.timeout",
	"catalog_max_attempts": "catalog.max_attempts",
	"catalog_retry_delay":  "catalog.retry_delay",
	"catalog_rate_limit":   "catalog.rate_limit",
	"catalog_cache_ttl":    "catalog.cache_ttl",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - REDIS_ADDR -> cache.redis_addr
//   - REALTIME_HEARTBEAT_INTERVAL -> realtime.heartbeat_interval
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped keys are skipped so random environment variables never pollute config
	return ""
}
