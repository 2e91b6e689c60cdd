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

// Client transport names.
const (
	TransportAuto      = "auto"
	TransportWebSocket = "websocket"
	TransportStream    = "stream"
)

// ClientConfig holds settings for the realtime delivery client (cmd/chatclient).
//
// Environment Variables:
//   - CLIENT_BASE_URL: server base URL (default: http://localhost:8080)
//   - CLIENT_USER_ID: identity to connect as (required)
//   - CLIENT_TRANSPORT: auto, websocket, stream (default: auto)
//   - CLIENT_SOCKET_PATH, CLIENT_EVENTS_PATH: transport mount paths
//   - CLIENT_HEARTBEAT_INTERVAL: server heartbeat interval, used for idle detection (default: 30s)
//   - CLIENT_MAX_RECONNECT_ATTEMPTS: consecutive failed reconnects before giving up (default: 5)
//   - CLIENT_INITIAL_BACKOFF, CLIENT_MAX_BACKOFF: reconnect backoff bounds (default: 1s, 30s)
//   - CLIENT_REQUEST_TIMEOUT: HTTP request timeout (default: 10s)
type ClientConfig struct {
	BaseURL              string        `koanf:"base_url"`
	UserID               string        `koanf:"user_id"`
	Transport            string        `koanf:"transport"`
	SocketPath           string        `koanf:"socket_path"`
	EventsPath           string        `koanf:"events_path"`
	HeartbeatInterval    time.Duration `koanf:"heartbeat_interval"`
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
	InitialBackoff       time.Duration `koanf:"initial_backoff"`
	MaxBackoff           time.Duration `koanf:"max_backoff"`
	RequestTimeout       time.Duration `koanf:"request_timeout"`
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:              "http://localhost:8080",
		Transport:            TransportAuto,
		SocketPath:           "/socket",
		EventsPath:           "/events",
		HeartbeatInterval:    30 * time.Second,
		MaxReconnectAttempts: 5,
		InitialBackoff:       time.Second,
		MaxBackoff:           30 * time.Second,
		RequestTimeout:       10 * time.Second,
	}
}

// clientEnvTransformFunc maps CLIENT_* variables to client config paths.
func clientEnvTransformFunc(key string) string {
	key = strings.ToLower(key)
	if !strings.HasPrefix(key, "client_") {
		return ""
	}
	return strings.TrimPrefix(key, "client_")
}

// LoadClient loads the delivery client configuration from defaults and CLIENT_* variables.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := loadLayers(defaultClientConfig(), "", clientEnvTransformFunc, nil, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	if err := validateHTTPURL(c.BaseURL, "CLIENT_BASE_URL", false); err != nil {
		return err
	}
	if c.UserID == "" {
		return fmt.Errorf("CLIENT_USER_ID is required")
	}
	switch c.Transport {
	case TransportAuto, TransportWebSocket, TransportStream:
	default:
		return fmt.Errorf("CLIENT_TRANSPORT must be one of auto, websocket, stream, got: %s", c.Transport)
	}
	if !strings.HasPrefix(c.SocketPath, "/") || !strings.HasPrefix(c.EventsPath, "/") {
		return fmt.Errorf("CLIENT_SOCKET_PATH and CLIENT_EVENTS_PATH must start with '/'")
	}
	if c.MaxReconnectAttempts < 1 {
		return fmt.Errorf("CLIENT_MAX_RECONNECT_ATTEMPTS must be at least 1, got: %d", c.MaxReconnectAttempts)
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("CLIENT_INITIAL_BACKOFF must be positive and not exceed CLIENT_MAX_BACKOFF")
	}
	if c.HeartbeatInterval <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("CLIENT_HEARTBEAT_INTERVAL and CLIENT_REQUEST_TIMEOUT must be positive")
	}
	return nil
}
