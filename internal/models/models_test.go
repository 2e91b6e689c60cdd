// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package models

import (
	"testing"
)

func TestMessage_ReadSet(t *testing.T) {
	t.Parallel()

	m := &Message{SenderID: "alice", ReadBy: []string{"alice"}}

	if m.IsUnreadFor("alice") {
		t.Error("sender should never see their own message as unread")
	}
	if !m.IsUnreadFor("bob") {
		t.Error("message should be unread for bob")
	}
	if !m.MarkRead("bob") {
		t.Error("first MarkRead should change the set")
	}
	if m.MarkRead("bob") {
		t.Error("second MarkRead should be a no-op")
	}
	if m.IsUnreadFor("bob") || len(m.ReadBy) != 2 {
		t.Errorf("ReadBy = %v, want [alice bob]", m.ReadBy)
	}
}

func TestMessageKind_Valid(t *testing.T) {
	t.Parallel()

	for _, k := range []MessageKind{MessageKindText, MessageKindImage, MessageKindFile} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if MessageKind("video").Valid() {
		t.Error("video should not be a valid kind")
	}
}

func TestConversation_Participants(t *testing.T) {
	t.Parallel()

	c := &Conversation{Participants: []string{"alice", "bob"}}

	if !c.HasParticipant("bob") || c.HasParticipant("carol") {
		t.Error("HasParticipant mismatch")
	}
	got := c.Counterparts("alice")
	if len(got) != 1 || got[0] != "bob" {
		t.Errorf("Counterparts(alice) = %v, want [bob]", got)
	}
}
