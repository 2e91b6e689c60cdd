// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"sync"
	"testing"
	"time"
)

type announcement struct {
	userID   string
	online   bool
	lastSeen time.Time
}

// recordingAnnouncer captures presence announcements.
type recordingAnnouncer struct {
	mu    sync.Mutex
	calls []announcement
}

func (a *recordingAnnouncer) AnnouncePresence(_ context.Context, userID string, online bool, lastSeen time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, announcement{userID: userID, online: online, lastSeen: lastSeen})
}

func (a *recordingAnnouncer) snapshot() []announcement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]announcement(nil), a.calls...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func recvEnvelope(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return env
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
	return Envelope{}
}

func newLocalBroker(t *testing.T) *WatermillBroker {
	t.Helper()
	b := NewLocalBroker(64)
	t.Cleanup(func() { _ = b.Close() })
	return b
}
