package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/converseapp/converse/internal/model"
)

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	mallory := f.user(t, "mallory")
	conv := f.direct(t, alice, bob)

	_, err := f.chat.SendMessage(mallory, conv.ID, model.SendMessageRequest{
		Type:    model.MessageTypeText,
		Content: []string{"hi"},
	})
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember, got %v", err)
	}
}

func TestSendMessageAdvancesLastMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	msg := f.send(t, alice, conv.ID, "hello")

	got, err := f.chat.GetConversation(alice, conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.Conversation.LastMessageID == nil || *got.Conversation.LastMessageID != msg.ID {
		t.Fatalf("last message pointer not advanced, got %v", got.Conversation.LastMessageID)
	}
}

func TestSendMessageRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	_, err := f.chat.SendMessage(alice, conv.ID, model.SendMessageRequest{
		Type:    model.MessageType("sticker"),
		Content: []string{"x"},
	})
	if err == nil {
		t.Fatal("want error for unknown message type")
	}
}

func TestReplyValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	conv := f.direct(t, alice, bob)
	other := f.direct(t, alice, carol)

	foreign := f.send(t, alice, other.ID, "elsewhere")

	// reply target in a different conversation
	_, err := f.chat.SendMessage(alice, conv.ID, model.SendMessageRequest{
		Type:    model.MessageTypeText,
		Content: []string{"re"},
		ReplyTo: &foreign.ID,
	})
	if !errors.Is(err, ErrInvalidReply) {
		t.Fatalf("want ErrInvalidReply for cross-conversation reply, got %v", err)
	}

	// reply target that doesn't exist
	ghost := uuid.New()
	_, err = f.chat.SendMessage(alice, conv.ID, model.SendMessageRequest{
		Type:    model.MessageTypeText,
		Content: []string{"re"},
		ReplyTo: &ghost,
	})
	if !errors.Is(err, ErrInvalidReply) {
		t.Fatalf("want ErrInvalidReply for missing reply target, got %v", err)
	}

	// valid reply in the same conversation
	target := f.send(t, bob, conv.ID, "original")
	reply, err := f.chat.SendMessage(alice, conv.ID, model.SendMessageRequest{
		Type:    model.MessageTypeText,
		Content: []string{"re"},
		ReplyTo: &target.ID,
	})
	if err != nil {
		t.Fatalf("valid reply failed: %v", err)
	}
	if reply.ReplyToID == nil || *reply.ReplyToID != target.ID {
		t.Fatal("reply pointer not recorded")
	}
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)
	msg := f.send(t, alice, conv.ID, "first")

	if _, err := f.chat.EditMessage(bob, msg.ID, []string{"hijack"}); !errors.Is(err, ErrNotSender) {
		t.Fatalf("want ErrNotSender, got %v", err)
	}

	edited, err := f.chat.EditMessage(alice, msg.ID, []string{"second"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.IsEdited {
		t.Fatal("edited flag not set")
	}
	if len(edited.Content) != 1 || edited.Content[0] != "second" {
		t.Fatalf("content not replaced, got %v", edited.Content)
	}
	if edited.SenderID != alice.ID || edited.ConversationID != conv.ID {
		t.Fatal("sender/conversation must be immutable under edit")
	}
}

func TestDeleteMessageRecomputesLastPointer(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	first := f.send(t, alice, conv.ID, "one")
	time.Sleep(2 * time.Millisecond)
	second := f.send(t, alice, conv.ID, "two")

	if _, err := f.chat.DeleteMessage(bob, second.ID); !errors.Is(err, ErrNotSender) {
		t.Fatalf("want ErrNotSender, got %v", err)
	}

	if _, err := f.chat.DeleteMessage(alice, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := f.chat.GetConversation(alice, conv.ID)
	if got.Conversation.LastMessageID == nil || *got.Conversation.LastMessageID != first.ID {
		t.Fatalf("pointer should fall back to previous message, got %v", got.Conversation.LastMessageID)
	}

	if _, err := f.chat.DeleteMessage(alice, first.ID); err != nil {
		t.Fatalf("delete last remaining: %v", err)
	}
	got, _ = f.chat.GetConversation(alice, conv.ID)
	if got.Conversation.LastMessageID != nil {
		t.Fatalf("pointer should clear when no messages remain, got %v", got.Conversation.LastMessageID)
	}
}

func TestUnseenCount(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	first := f.send(t, bob, conv.ID, "one")
	time.Sleep(2 * time.Millisecond)
	f.send(t, bob, conv.ID, "two")
	time.Sleep(2 * time.Millisecond)
	f.send(t, alice, conv.ID, "mine") // own messages never count

	items, err := f.chat.ListConversations(alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("want 1 conversation, got %d", len(items))
	}
	// no read position yet: every foreign message is unseen
	if items[0].UnseenCount != 2 {
		t.Fatalf("want 2 unseen, got %d", items[0].UnseenCount)
	}

	if err := f.chat.MarkRead(alice, conv.ID, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	items, _ = f.chat.ListConversations(alice)
	if items[0].UnseenCount != 1 {
		t.Fatalf("want 1 unseen after reading first, got %d", items[0].UnseenCount)
	}

	// idempotent
	if err := f.chat.MarkRead(alice, conv.ID, first.ID); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	items, _ = f.chat.ListConversations(alice)
	if items[0].UnseenCount != 1 {
		t.Fatalf("unseen changed on repeated mark read, got %d", items[0].UnseenCount)
	}
}

func TestListConversationsPreviewCollapsesNonText(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	if _, err := f.chat.SendMessage(bob, conv.ID, model.SendMessageRequest{
		Type:    model.MessageTypeImage,
		Content: []string{"https://cdn.test/x.png"},
	}); err != nil {
		t.Fatalf("send image: %v", err)
	}

	items, err := f.chat.ListConversations(alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].LastMessage == nil {
		t.Fatal("missing last message preview")
	}
	if items[0].LastMessage.Content != "[Non-text]" {
		t.Fatalf("want [Non-text] placeholder, got %q", items[0].LastMessage.Content)
	}
	if items[0].OtherMember == nil || items[0].OtherMember.ID != bob.ID {
		t.Fatal("direct conversation should resolve the other member")
	}
}

func TestGetConversationResolvesOtherSide(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	direct := f.direct(t, alice, bob)
	group := f.group(t, "team", alice, bob, carol)

	d, err := f.chat.GetConversation(alice, direct.ID)
	if err != nil {
		t.Fatalf("get direct: %v", err)
	}
	if d.OtherMember == nil || d.OtherMember.ID != bob.ID {
		t.Fatal("direct detail should carry the single peer")
	}

	g, err := f.chat.GetConversation(alice, group.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if len(g.OtherMembers) != 2 {
		t.Fatalf("want 2 other members, got %d", len(g.OtherMembers))
	}

	if _, err := f.chat.GetConversation(carol, direct.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember for outsider, got %v", err)
	}
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	if _, err := f.chat.CreateGroup(alice, "solo", nil); !errors.Is(err, ErrInvalidMembers) {
		t.Fatalf("want ErrInvalidMembers for creator-only group, got %v", err)
	}
	// duplicated creator id doesn't count as a second member
	if _, err := f.chat.CreateGroup(alice, "solo", []uuid.UUID{alice.ID}); !errors.Is(err, ErrInvalidMembers) {
		t.Fatalf("want ErrInvalidMembers, got %v", err)
	}

	conv, err := f.chat.CreateGroup(alice, "team", []uuid.UUID{bob.ID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if !conv.IsGroup || conv.Name != "team" {
		t.Fatalf("unexpected group %+v", conv)
	}
	ids, _ := f.chat.GetMemberIDs(conv.ID)
	if len(ids) != 2 {
		t.Fatalf("want 2 members, got %d", len(ids))
	}
}

func TestAddMembers(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	direct := f.direct(t, alice, bob)
	group := f.group(t, "team", alice, bob)

	if err := f.chat.AddMembers(alice, direct.ID, []uuid.UUID{carol.ID}); !errors.Is(err, ErrNotGroup) {
		t.Fatalf("want ErrNotGroup, got %v", err)
	}
	if err := f.chat.AddMembers(alice, group.ID, []uuid.UUID{bob.ID}); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("want ErrAlreadyMember, got %v", err)
	}

	if err := f.chat.AddMembers(alice, group.ID, []uuid.UUID{carol.ID}); err != nil {
		t.Fatalf("add members: %v", err)
	}
	ids, _ := f.chat.GetMemberIDs(group.ID)
	if len(ids) != 3 {
		t.Fatalf("want 3 members, got %d", len(ids))
	}

	// a join system message is appended
	msgs, err := f.chat.ListMessages(alice, group.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].Message.IsSystem {
		t.Fatalf("want one system message, got %d", len(msgs))
	}
	if msgs[0].Message.Preview() != "carol joined the group" {
		t.Fatalf("unexpected system text %q", msgs[0].Message.Preview())
	}
}

func TestLeaveGroupRecordsLeave(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	group := f.group(t, "team", alice, bob, carol)

	if err := f.chat.LeaveGroup(carol, group.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	ids, _ := f.chat.GetMemberIDs(group.ID)
	if len(ids) != 2 {
		t.Fatalf("want 2 members after leave, got %d", len(ids))
	}

	info, err := f.chat.GetGroupInfo(group.ID)
	if err != nil {
		t.Fatalf("group info: %v", err)
	}
	if len(info.RecentLeaves) != 1 || info.RecentLeaves[0].Username != "carol" {
		t.Fatalf("leave record missing, got %+v", info.RecentLeaves)
	}

	msgs, _ := f.chat.ListMessages(alice, group.ID)
	if len(msgs) != 1 || msgs[0].Message.Preview() != "carol left the group" {
		t.Fatal("leave system message missing")
	}

	// leaving again is refused: no membership anymore
	if err := f.chat.LeaveGroup(carol, group.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember on repeat leave, got %v", err)
	}
}

func TestDeleteGroup(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	group := f.group(t, "team", alice, bob)
	f.send(t, alice, group.ID, "doomed")

	lone := f.group(t, "lonely", alice)
	if err := f.chat.DeleteGroup(alice, lone.ID); !errors.Is(err, ErrInvalidMembers) {
		t.Fatalf("want ErrInvalidMembers for lone group, got %v", err)
	}

	if err := f.chat.DeleteGroup(alice, group.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if _, err := f.chat.GetConversation(alice, group.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}

	var msgCount int64
	f.db.Model(&model.Message{}).Where("conversation_id = ?", group.ID).Count(&msgCount)
	if msgCount != 0 {
		t.Fatalf("messages not cascaded, %d remain", msgCount)
	}
	var memberCount int64
	f.db.Model(&model.Membership{}).Where("conversation_id = ?", group.ID).Count(&memberCount)
	if memberCount != 0 {
		t.Fatalf("memberships not cascaded, %d remain", memberCount)
	}
}
