// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package config provides centralized configuration management for Cinelog.

Configuration is loaded with Koanf v2 from three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file (CONFIG_PATH, then config.yaml / config.yml / /etc/cinelog/config.yaml)
 3. Environment variables, through an explicit name-to-path mapping

Unmapped environment variables are ignored so that unrelated process
environment never leaks into configuration.

# Configuration Structure

  - ServerConfig: HTTP listener (host, port, timeout, environment)
  - SecurityConfig: CORS, rate limiting and the identity header
  - StoreConfig: badger directory for conversations and messages
  - CacheConfig: cache backend (auto, redis, memory, none) and Redis connection
  - RealtimeConfig: socket and event-stream mount paths and heartbeat
  - NATSConfig: multi-instance broker (external or embedded NATS)
  - CatalogConfig: upstream film catalog API with timeout, retry and rate limit
  - LoggingConfig: zerolog level, format and caller

The chat client reads its own settings with LoadClient (CLIENT_* variables).

# Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

# Thread Safety

Config is immutable after loading and safe for concurrent reads.
*/
package config
