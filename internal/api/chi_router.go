// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/middleware"
)

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware

	// Realtime endpoints, mounted outside the rate-limited API tree.
	socket     http.Handler
	events     http.Handler
	socketPath string
	eventsPath string
}

// RouterConfig wires the realtime endpoints into the router. Either
// handler may be nil to leave its path unmounted.
type RouterConfig struct {
	Socket   http.Handler
	Events   http.Handler
	Realtime config.RealtimeConfig
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware, cfg RouterConfig) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	socketPath := cfg.Realtime.SocketPath
	if socketPath == "" {
		socketPath = "/socket"
	}
	eventsPath := cfg.Realtime.EventsPath
	if eventsPath == "" {
		eventsPath = "/events"
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		socket:        cfg.Socket,
		events:        cfg.Events,
		socketPath:    socketPath,
		eventsPath:    eventsPath,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Core API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)
		r.Use(router.chiMiddleware.Identity())

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", router.handler.ListConversations)
			r.Post("/", router.handler.StartConversation)
			r.Delete("/{id}", router.handler.DeleteConversation)
			r.Get("/{id}/unread", router.handler.UnreadCount)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", router.handler.SendMessage)
			r.Get("/{conversationId}", router.handler.ListMessages)
		})

		r.Route("/films", func(r chi.Router) {
			r.Get("/search", router.handler.SearchFilms)
			r.Get("/{id}", router.handler.Film)
		})
	})

	// ========================
	// Realtime Endpoints
	// ========================
	// Long-lived connections: no rate limit, no compression.
	if router.events != nil {
		r.With(middleware.PrometheusMetrics).Get(router.eventsPath, router.events.ServeHTTP)
	}
	if router.socket != nil {
		r.With(middleware.PrometheusMetrics).Get(router.socketPath, router.socket.ServeHTTP)
	}

	return r
}
