// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package main

import (
	"bytes"
	"io"
	"sync"
)

// syncBuffer is a bytes.Buffer safe for the callback goroutines that print.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newBlockingInput returns a stdin stand-in that blocks until lines are
// written to it.
func newBlockingInput() (io.Reader, func(string)) {
	r, w := io.Pipe()
	return r, func(s string) { _, _ = io.WriteString(w, s) }
}
