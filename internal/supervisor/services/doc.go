// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package services adapts Cinelog's long-running components to
// suture.Service so the supervisor tree can start, restart and stop them.
//
// Each wrapper depends on a small interface rather than the concrete type,
// which keeps this package free of imports from chat, realtime and api.
package services
