// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package realtime

import (
	"context"
	"slices"
	"sync"
	"time"
)

// PresenceAnnouncer tells a user's conversation counterparts that the user
// came online or went offline.
type PresenceAnnouncer interface {
	AnnouncePresence(ctx context.Context, userID string, online bool, lastSeen time.Time)
}

type connPresence struct {
	userID string
	chats  map[string]struct{}
}

// Presence is the connection side-table shared by both transports. It maps
// connection id to identity and joined chats, and counts live connections
// per user so the first connect and last disconnect can be detected.
type Presence struct {
	mu       sync.Mutex
	conns    map[string]*connPresence
	users    map[string]int
	lastSeen map[string]time.Time

	// outbox holds each user's announcements in transition order while a
	// drain goroutine delivers them. A key is present while one runs.
	outbox map[string][]presenceChange
}

type presenceChange struct {
	announcer PresenceAnnouncer
	online    bool
	lastSeen  time.Time
}

// NewPresence creates an empty side-table.
func NewPresence() *Presence {
	return &Presence{
		conns:    make(map[string]*connPresence),
		users:    make(map[string]int),
		lastSeen: make(map[string]time.Time),
		outbox:   make(map[string][]presenceChange),
	}
}

// Attach binds connectionID to userID. It reports whether this is the
// user's first live connection. Re-attaching to the same user is a no-op;
// attaching to another user moves the connection.
func (p *Presence) Attach(connectionID, userID string) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attachLocked(connectionID, userID)
}

func (p *Presence) attachLocked(connectionID, userID string) bool {
	if cp, ok := p.conns[connectionID]; ok {
		if cp.userID == userID {
			return false
		}
		p.release(cp.userID)
		cp.userID = userID
		cp.chats = make(map[string]struct{})
	} else {
		p.conns[connectionID] = &connPresence{userID: userID, chats: make(map[string]struct{})}
	}

	p.users[userID]++
	return p.users[userID] == 1
}

// JoinChat records that connectionID joined a conversation room. It returns
// false for an unattached connection.
func (p *Presence) JoinChat(connectionID, conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp, ok := p.conns[connectionID]
	if !ok {
		return false
	}
	cp.chats[conversationID] = struct{}{}
	return true
}

// InChat reports whether connectionID joined the conversation.
func (p *Presence) InChat(connectionID, conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp, ok := p.conns[connectionID]
	if !ok {
		return false
	}
	_, joined := cp.chats[conversationID]
	return joined
}

// Detach removes connectionID and returns the identity it was bound to, the
// chats it had joined (sorted) and whether it was the user's last live
// connection. An unknown connection returns an empty userID.
func (p *Presence) Detach(connectionID string) (userID string, chats []string, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detachLocked(connectionID)
}

func (p *Presence) detachLocked(connectionID string) (userID string, chats []string, last bool) {
	cp, ok := p.conns[connectionID]
	if !ok {
		return "", nil, false
	}
	delete(p.conns, connectionID)

	for c := range cp.chats {
		chats = append(chats, c)
	}
	slices.Sort(chats)

	last = p.release(cp.userID)
	return cp.userID, chats, last
}

// release drops one connection of userID. Caller holds mu.
func (p *Presence) release(userID string) bool {
	p.users[userID]--
	if p.users[userID] > 0 {
		return false
	}
	delete(p.users, userID)
	p.lastSeen[userID] = time.Now().UTC()
	return true
}

// UserOf returns the identity bound to connectionID.
func (p *Presence) UserOf(connectionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp, ok := p.conns[connectionID]
	if !ok {
		return "", false
	}
	return cp.userID, true
}

// IsOnline reports whether userID has at least one live connection.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users[userID] > 0
}

// LastSeen returns when userID's last connection closed.
func (p *Presence) LastSeen(userID string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastSeen[userID]
	return t, ok
}

// ConnectionCount returns the number of attached connections.
func (p *Presence) ConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// connect attaches the connection and queues user-online for the user's
// first one.
func (p *Presence) connect(a PresenceAnnouncer, connectionID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attachLocked(connectionID, userID) {
		p.enqueueLocked(userID, presenceChange{announcer: a, online: true})
	}
}

// disconnect detaches the connection and queues user-offline for the
// user's last one. Safe to call twice.
func (p *Presence) disconnect(a PresenceAnnouncer, connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if userID, _, last := p.detachLocked(connectionID); last {
		p.enqueueLocked(userID, presenceChange{announcer: a, lastSeen: p.lastSeen[userID]})
	}
}

// enqueueLocked appends a change to the user's outbox and starts a drain if
// none is running. Changes are queued under mu, so the outbox order is the
// order the transitions happened in. Caller holds mu.
func (p *Presence) enqueueLocked(userID string, change presenceChange) {
	if change.announcer == nil {
		return
	}
	pending, running := p.outbox[userID]
	p.outbox[userID] = append(pending, change)
	if !running {
		go p.drain(userID)
	}
}

// drain delivers userID's queued changes one at a time and exits once the
// outbox is empty.
func (p *Presence) drain(userID string) {
	for {
		p.mu.Lock()
		pending := p.outbox[userID]
		if len(pending) == 0 {
			delete(p.outbox, userID)
			p.mu.Unlock()
			return
		}
		next := pending[0]
		p.outbox[userID] = pending[1:]
		p.mu.Unlock()

		next.announcer.AnnouncePresence(context.Background(), userID, next.online, next.lastSeen)
	}
}
