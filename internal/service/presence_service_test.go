package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/converseapp/converse/internal/model"
)

func TestOnlineStatus(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	if err := f.presence.SetOnline(alice, true); err != nil {
		t.Fatalf("set online: %v", err)
	}
	status, err := f.presence.GetUserStatus(alice.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if !status.IsOnline {
		t.Fatal("want online")
	}
	online, err := f.presence.GetOnlineUsers()
	if err != nil {
		t.Fatalf("online users: %v", err)
	}
	if len(online) != 1 || online[0].ID != alice.ID {
		t.Fatalf("unexpected online set %+v", online)
	}

	if err := f.presence.SetOnline(alice, false); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	status, _ = f.presence.GetUserStatus(alice.ID)
	if status.IsOnline {
		t.Fatal("want offline")
	}
	if status.LastSeen == nil {
		t.Fatal("going offline must stamp last seen")
	}

	if _, err := f.presence.GetUserStatus(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTypingWindow(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	mallory := f.user(t, "mallory")
	conv := f.direct(t, alice, bob)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	f.presence.now = func() time.Time { return clock }

	if err := f.presence.SetTyping(mallory, conv.ID, true); !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember, got %v", err)
	}
	if _, err := f.presence.GetTypingUsers(mallory, conv.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember, got %v", err)
	}

	if err := f.presence.SetTyping(bob, conv.ID, true); err != nil {
		t.Fatalf("set typing: %v", err)
	}

	// fresh flag is visible to the peer but never echoed to its owner
	typing, err := f.presence.GetTypingUsers(alice, conv.ID)
	if err != nil {
		t.Fatalf("get typing: %v", err)
	}
	if len(typing) != 1 || typing[0].Username != "bob" {
		t.Fatalf("want bob typing, got %+v", typing)
	}
	own, _ := f.presence.GetTypingUsers(bob, conv.ID)
	if len(own) != 0 {
		t.Fatalf("caller's own flag echoed back, %+v", own)
	}

	// an abandoned true flag goes quiet once the window passes
	clock = base.Add(model.TypingWindow + time.Second)
	typing, _ = f.presence.GetTypingUsers(alice, conv.ID)
	if len(typing) != 0 {
		t.Fatalf("stale flag still reported, %+v", typing)
	}

	// re-typing refreshes the stamp
	if err := f.presence.SetTyping(bob, conv.ID, true); err != nil {
		t.Fatalf("retype: %v", err)
	}
	typing, _ = f.presence.GetTypingUsers(alice, conv.ID)
	if len(typing) != 1 {
		t.Fatalf("refreshed flag not reported, %+v", typing)
	}

	// an explicit stop clears immediately
	if err := f.presence.SetTyping(bob, conv.ID, false); err != nil {
		t.Fatalf("stop typing: %v", err)
	}
	typing, _ = f.presence.GetTypingUsers(alice, conv.ID)
	if len(typing) != 0 {
		t.Fatalf("stopped flag still reported, %+v", typing)
	}
}
