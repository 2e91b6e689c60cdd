// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"empty identity header", func(c *Config) { c.Security.IdentityHeader = " " }, true},
		{"rate limit too high", func(c *Config) { c.Security.RateLimitReqs = 1 << 20 }, true},
		{"rate limit ignored when disabled", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, false},
		{"store path required", func(c *Config) { c.Store.Path = "" }, true},
		{"in-memory store without path", func(c *Config) {
			c.Store.Path = ""
			c.Store.InMemory = true
		}, false},
		{"redis without address", func(c *Config) { c.Cache.Backend = CacheBackendRedis }, true},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"socket path relative", func(c *Config) { c.Realtime.SocketPath = "socket" }, true},
		{"events path under api", func(c *Config) { c.Realtime.EventsPath = "/api/v1/events" }, true},
		{"same transport paths", func(c *Config) { c.Realtime.EventsPath = "/socket" }, true},
		{"heartbeat too short", func(c *Config) { c.Realtime.HeartbeatInterval = 10 * time.Millisecond }, true},
		{"base url with query", func(c *Config) { c.Realtime.BaseURL = "https://cinelog.example?x=1" }, true},
		{"nats bad url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://localhost:4222"
		}, true},
		{"nats embedded", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.EmbeddedServer = true
			c.NATS.URL = ""
		}, false},
		{"catalog bad scheme", func(c *Config) { c.Catalog.BaseURL = "ftp://catalog.example" }, true},
		{"catalog attempts zero", func(c *Config) { c.Catalog.MaxAttempts = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheConfig_ResolvedBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend, addr, want string
	}{
		{CacheBackendAuto, "", CacheBackendNone},
		{CacheBackendAuto, "redis:6379", CacheBackendRedis},
		{"", "", CacheBackendNone},
		{CacheBackendMemory, "redis:6379", CacheBackendMemory},
		{CacheBackendNone, "redis:6379", CacheBackendNone},
	}
	for _, tt := range tests {
		got := CacheConfig{Backend: tt.backend, RedisAddr: tt.addr}.ResolvedBackend()
		if got != tt.want {
			t.Errorf("ResolvedBackend(%q, %q) = %q, want %q", tt.backend, tt.addr, got, tt.want)
		}
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard CORS in development should not warn")
	}
	cfg.Server.Environment = "production"
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard CORS in production should warn")
	}
}
