// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package supervisor runs Cinelog's long-lived services under a suture v4 tree.

The tree has three layers, each with its own failure counting:

	RootSupervisor ("cinelog")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── HubService (websocket transport)
	│   └── RegistryService (event-stream transport)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A restart storm in the messaging layer leaves the HTTP server running, so
history and conversation reads keep working while realtime delivery recovers.

Supervisor events (start, failure, backoff) are logged through slog via the
sutureslog adapter.

Usage:

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewStoreGCService(chatService, 5*time.Minute))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewRegistryService(registry))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)
*/
package supervisor
