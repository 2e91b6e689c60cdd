// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/cinelog/internal/metrics"
)

var errUpstream = errors.New("upstream down")

func TestBreaker_TripsAndFailsFast(t *testing.T) {
	t.Parallel()

	b := New[int]("test-trip", Settings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	for i := 0; i < 3; i++ {
		if _, err := b.Execute(func() (int, error) { return 0, errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("attempt %d: err = %v, want upstream error", i, err)
		}
	}

	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}

	called := false
	_, err := b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	if !IsOpen(err) {
		t.Errorf("err = %v, want open-state error", err)
	}
	if called {
		t.Error("function should not run while the circuit is open")
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-trip")); got != 2 {
		t.Errorf("circuit_breaker_state = %v, want 2", got)
	}
}

func TestBreaker_IsSuccessfulExcludesErrors(t *testing.T) {
	t.Parallel()

	errMiss := errors.New("miss")
	b := New[string]("test-miss", Settings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  1,
		FailureRatio: 0.1,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errMiss) },
	})

	for i := 0; i < 5; i++ {
		_, _ = b.Execute(func() (string, error) { return "", errMiss })
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed when errors are classified as success", b.State())
	}
}

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	if s.MinRequests != 10 || s.FailureRatio != 0.6 {
		t.Errorf("DefaultSettings() = %+v", s)
	}
}
