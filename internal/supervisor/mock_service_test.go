// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// countingService runs until canceled, optionally failing its first
// failures runs.
type countingService struct {
	name     string
	failures int32
	starts   atomic.Int32
	stops    atomic.Int32
}

func newCountingService(name string, failures int32) *countingService {
	return &countingService{name: name, failures: failures}
}

func (c *countingService) Serve(ctx context.Context) error {
	n := c.starts.Add(1)
	defer c.stops.Add(1)
	if n <= c.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *countingService) String() string {
	return c.name
}
