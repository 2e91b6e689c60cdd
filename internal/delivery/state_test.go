// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package delivery

import (
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/cinelog/internal/models"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{64, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.n, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestConnectionStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[ConnectionState]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateConnected:      "connected",
		StateReconnecting:   "reconnecting",
		ConnectionState(42): "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %s", s, s.String())
		}
	}
}

func TestListeners_Unsubscribe(t *testing.T) {
	t.Parallel()

	var l listeners[int]
	var got []string
	unsubA := l.add(func(v int) { got = append(got, "a") })
	l.add(func(v int) { got = append(got, "b") })

	l.emit(1)
	unsubA()
	unsubA()
	l.emit(2)

	if want := "a b b"; strings.Join(got, " ") != want {
		t.Errorf("calls = %q, want %q", strings.Join(got, " "), want)
	}
}

func TestLocalStore(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := func(id string, offset int) models.Message {
		return models.Message{ID: id, ConversationID: "c1", CreatedAt: base.Add(time.Duration(offset) * time.Second)}
	}

	s := NewLocalStore()
	if !s.Add(msg("m2", 2)) || !s.Add(msg("m3", 3)) {
		t.Fatal("first adds should succeed")
	}
	if s.Add(msg("m2", 2)) {
		t.Error("duplicate accepted")
	}

	added := s.Merge([]models.Message{msg("m1", 1), msg("m2", 2), msg("m4", 4)})
	if len(added) != 2 {
		t.Errorf("merge added %d, want 2", len(added))
	}

	var ids []string
	for _, m := range s.Messages("c1") {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, " ") != "m1 m2 m3 m4" {
		t.Errorf("order = %v", ids)
	}
	if s.Len() != 4 || !s.Has("m4") || s.Has("m9") {
		t.Errorf("Len=%d", s.Len())
	}
	if len(s.Messages("other")) != 0 {
		t.Error("unknown conversation should be empty")
	}
}
