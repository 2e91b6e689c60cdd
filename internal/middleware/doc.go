// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package middleware provides HTTP middleware components for the API router.

Key Components:

  - RequestID: request and correlation ids for distributed tracing
  - PrometheusMetrics: request/response instrumentation keyed by chi route pattern
  - Compression: gzip for JSON responses (never for sockets or event streams)

All middleware uses the func(http.Handler) http.Handler shape so it can be
mounted with chi's Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)
*/
package middleware
