// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package logging provides centralized zerolog-based structured logging for Cinelog.
//
// JSON output is the production default; console output is available for
// development. A global logger is configured once at startup and used through
// level helpers. Request-scoped values (request ID, correlation ID, user ID)
// travel in the context and are attached by Ctx.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("addr", addr).Msg("HTTP server listening")
//	logging.Error().Err(err).Msg("Failed to persist message")
//	logging.Ctx(ctx).Debug().Str("conversation_id", id).Msg("Listing messages")
//
// # Configuration
//
// Environment Variables (read by internal/config):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # slog bridge
//
// SlogHandler adapts zerolog to log/slog so that the supervisor tree
// (sutureslog) and the realtime broker (watermill) share the same output.
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// event is never written.
package logging
