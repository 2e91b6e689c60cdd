// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cinelog/internal/api"
	"github.com/tomtom215/cinelog/internal/cache"
	"github.com/tomtom215/cinelog/internal/catalog"
	"github.com/tomtom215/cinelog/internal/chat"
	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/realtime"
	"github.com/tomtom215/cinelog/internal/supervisor"
	"github.com/tomtom215/cinelog/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Cinelog")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := chat.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	cacheLayer := cache.NewFromConfig(ctx, cfg.Cache)
	defer func() {
		if err := cacheLayer.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache")
		}
	}()

	brokers, err := InitBroker(cfg)
	if err != nil {
		return err
	}
	defer brokers.Shutdown()

	chatService := chat.NewService(store, cacheLayer, brokers.Broker)

	presence := realtime.NewPresence()
	hub := realtime.NewHub(realtime.HubConfig{
		Broker:         brokers.Broker,
		Chat:           chatService,
		Presence:       presence,
		Announcer:      chatService,
		AllowedOrigins: cfg.Security.CORSOrigins,
		BufferSize:     cfg.Realtime.BufferSize,
	})
	registry := realtime.NewRegistry(realtime.RegistryConfig{
		Broker:            brokers.Broker,
		Presence:          presence,
		Announcer:         chatService,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		BufferSize:        cfg.Realtime.BufferSize,
	})

	catalogService := catalog.NewService(cfg.Catalog, cacheLayer)
	if !catalogService.Enabled() {
		logging.Info().Msg("Film catalog proxy disabled (CATALOG_API_KEY not set)")
	}

	handler := api.NewHandler(chatService, catalogService)
	handler.AddReadinessCheck("store", chatService.Ping)
	handler.AddReadinessCheck("broker", brokers.Broker.Ping)

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	router := api.NewRouter(handler, api.NewChiMiddlewareFromSecurity(cfg.Security), api.RouterConfig{
		Socket:   hub,
		Events:   realtime.NewStreamHandler(registry),
		Realtime: cfg.Realtime,
	})

	// Only the header read is bounded. A read or write deadline would cut
	// sockets and event streams off mid-connection.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddDataService(services.NewStoreGCService(chatService, cfg.Store.GCInterval))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewRegistryService(registry))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}
