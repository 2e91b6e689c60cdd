// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package services

import (
	"context"
)

// ContextHub is satisfied by *realtime.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the websocket hub's event loop. The hub closes its clients
// when the loop returns, so a restart starts from an empty client set.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService wraps hub.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub, name: "realtime-hub"}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string {
	return s.name
}

// StreamRegistry is satisfied by *realtime.Registry.
type StreamRegistry interface {
	Serve(ctx context.Context) error
}

// RegistryService owns the event-stream registry's lifetime. Cancellation
// closes every open stream so handlers return before the HTTP server drains.
type RegistryService struct {
	registry StreamRegistry
	name     string
}

// NewRegistryService wraps registry.
func NewRegistryService(registry StreamRegistry) *RegistryService {
	return &RegistryService{registry: registry, name: "event-stream-registry"}
}

// Serve implements suture.Service.
func (s *RegistryService) Serve(ctx context.Context) error {
	return s.registry.Serve(ctx)
}

func (s *RegistryService) String() string {
	return s.name
}
