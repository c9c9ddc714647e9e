package service

import (
	"errors"
	"testing"

	"github.com/converseapp/converse/internal/model"
)

func TestResolve(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	if _, err := f.identity.Resolve(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for empty principal, got %v", err)
	}
	if _, err := f.identity.Resolve("ext_unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown principal, got %v", err)
	}

	got, err := f.identity.Resolve(alice.ExternalID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatal("resolved wrong user")
	}
}

func TestUpsertFromProvider(t *testing.T) {
	f := newFixture(t)

	created, err := f.identity.UpsertFromProvider("ext_p1", "pat", "pat@test.local", "https://img.test/pat.png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Username != "pat" || created.Email != "pat@test.local" {
		t.Fatalf("unexpected user %+v", created)
	}

	// a second event for the same principal updates in place
	updated, err := f.identity.UpsertFromProvider("ext_p1", "patricia", "patricia@test.local", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatal("update created a second user")
	}
	if updated.Username != "patricia" || updated.Email != "patricia@test.local" {
		t.Fatalf("update not applied, %+v", updated)
	}
}

func TestDeleteFromProviderCascades(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	// alice is friends with bob and a member of a group with history
	req, _, err := f.friends.SendRequest(alice, bob.Email)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	directConv, err := f.friends.Accept(bob, req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.send(t, alice, directConv.ID, "bye soon")

	group := f.group(t, "team", alice, bob, carol)
	f.send(t, alice, group.ID, "still here after I go")

	// and has a pending request from carol
	if _, _, err := f.friends.SendRequest(carol, alice.Email); err != nil {
		t.Fatalf("pending request: %v", err)
	}

	if err := f.identity.DeleteFromProvider("ext_nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := f.identity.DeleteFromProvider(alice.ExternalID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.identity.Resolve(alice.ExternalID); !errors.Is(err, ErrNotFound) {
		t.Fatal("user record survived")
	}

	// the friendship conversation is gone for the surviving side
	if _, err := f.chat.GetConversation(bob, directConv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("direct conversation survived, err=%v", err)
	}
	bobFriends, _ := f.friends.ListFriends(bob)
	if len(bobFriends) != 0 {
		t.Fatalf("friendship survived, %+v", bobFriends)
	}

	// carol's pending request was dropped
	sent, _ := f.friends.ListSent(carol)
	if len(sent) != 0 {
		t.Fatalf("pending request survived, %+v", sent)
	}

	// the group outlives the user, keeping its history
	ids, err := f.chat.GetMemberIDs(group.ID)
	if err != nil {
		t.Fatalf("group members: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("want 2 surviving group members, got %d", len(ids))
	}
	msgs, err := f.chat.ListMessages(bob, group.ID)
	if err != nil {
		t.Fatalf("group history: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("group history lost, %d messages", len(msgs))
	}
	var count int64
	f.db.Model(&model.Membership{}).Where("member_id = ?", alice.ID).Count(&count)
	if count != 0 {
		t.Fatalf("memberships survived, %d remain", count)
	}
}
