package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/converseapp/converse/internal/model"
)

func TestInitiateCall(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	mallory := f.user(t, "mallory")
	conv := f.direct(t, alice, bob)

	if _, err := f.calls.Initiate(mallory, conv.ID, model.CallTypeAudio); !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember, got %v", err)
	}

	call, err := f.calls.Initiate(alice, conv.ID, model.CallTypeVideo)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if call.Status != model.CallStatusRinging {
		t.Fatalf("want ringing, got %s", call.Status)
	}
	if call.InitiatorID != alice.ID || call.Type != model.CallTypeVideo {
		t.Fatalf("unexpected call %+v", call)
	}
	wantPrefix := fmt.Sprintf("call_%s_", conv.ID)
	if !strings.HasPrefix(call.RoomID, wantPrefix) {
		t.Fatalf("room id %q lacks prefix %q", call.RoomID, wantPrefix)
	}

	// one roster entry per member, caller marked initiator
	participations, err := f.calls.ActiveForUser(bob)
	if err != nil {
		t.Fatalf("active for bob: %v", err)
	}
	if len(participations) != 1 {
		t.Fatalf("want 1 active call for callee, got %d", len(participations))
	}
	if participations[0].Participation.Role != model.RoleParticipant {
		t.Fatalf("callee role = %s", participations[0].Participation.Role)
	}
	mine, _ := f.calls.ActiveForUser(alice)
	if len(mine) != 1 || mine[0].Participation.Role != model.RoleInitiator {
		t.Fatal("initiator roster entry missing or wrong role")
	}
	if mine[0].Initiator.ID != alice.ID || mine[0].Conversation.ID != conv.ID {
		t.Fatal("active call join missing initiator or conversation")
	}
}

func TestInitiateRefusedWhileCallActive(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	call, err := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.calls.Answer(bob, call.ID); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if _, err := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio); !errors.Is(err, ErrCallInProgress) {
		t.Fatalf("want ErrCallInProgress, got %v", err)
	}

	// a ringing call does not block: only active ones do
	other := f.direct(t, alice, f.user(t, "carol"))
	ringing, err := f.calls.Initiate(alice, other.ID, model.CallTypeAudio)
	if err != nil {
		t.Fatalf("initiate second: %v", err)
	}
	if _, err := f.calls.Initiate(alice, other.ID, model.CallTypeAudio); err != nil {
		t.Fatalf("ringing call should not block a new ring, got %v", err)
	}
	_ = ringing
}

func TestAnswerCall(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	call, _ := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)

	answered, err := f.calls.Answer(bob, call.ID)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answered.Status != model.CallStatusActive {
		t.Fatalf("want active, got %s", answered.Status)
	}
	if answered.AnsweredAt == nil {
		t.Fatal("answered_at not stamped")
	}

	// answering twice is a state error
	if _, err := f.calls.Answer(bob, call.ID); !errors.Is(err, ErrInvalidCallState) {
		t.Fatalf("want ErrInvalidCallState, got %v", err)
	}
}

func TestRejectAndCancel(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	call, _ := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)

	// only the initiator may cancel
	if _, err := f.calls.Cancel(bob, call.ID); !errors.Is(err, ErrNotInitiator) {
		t.Fatalf("want ErrNotInitiator, got %v", err)
	}
	cancelled, err := f.calls.Cancel(alice, call.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.CallStatusCancelled || cancelled.EndedAt == nil {
		t.Fatalf("unexpected cancelled call %+v", cancelled)
	}

	// a cancelled call cannot be rejected
	if _, err := f.calls.Reject(bob, call.ID); !errors.Is(err, ErrInvalidCallState) {
		t.Fatalf("want ErrInvalidCallState, got %v", err)
	}

	second, _ := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)
	rejected, err := f.calls.Reject(bob, second.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.CallStatusRejected || rejected.EndedAt == nil {
		t.Fatalf("unexpected rejected call %+v", rejected)
	}
}

func TestEndCallDuration(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	f.calls.now = func() time.Time { return clock }

	call, _ := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)

	clock = base.Add(5 * time.Second)
	if _, err := f.calls.Answer(bob, call.ID); err != nil {
		t.Fatalf("answer: %v", err)
	}

	clock = base.Add(95 * time.Second)
	ended, err := f.calls.End(alice, call.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != model.CallStatusEnded {
		t.Fatalf("want ended, got %s", ended.Status)
	}
	if ended.Duration != 90 {
		t.Fatalf("want duration 90s, got %d", ended.Duration)
	}

	if _, err := f.calls.End(alice, call.ID); !errors.Is(err, ErrInvalidCallState) {
		t.Fatalf("want ErrInvalidCallState for ended call, got %v", err)
	}

	// gone from the active feed
	active, _ := f.calls.ActiveForUser(bob)
	if len(active) != 0 {
		t.Fatalf("ended call still in active feed, %d entries", len(active))
	}
}

func TestEndUnansweredCall(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	call, _ := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)
	ended, err := f.calls.End(alice, call.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Duration != 0 {
		t.Fatalf("unanswered call duration must be 0, got %d", ended.Duration)
	}
}

func TestSweepMissed(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	f.calls.now = func() time.Time { return clock }

	stale, _ := f.calls.Initiate(alice, conv.ID, model.CallTypeAudio)

	// a fresh ring in another conversation must survive the sweep
	other := f.direct(t, alice, f.user(t, "carol"))
	clock = base.Add(25 * time.Second)
	fresh, _ := f.calls.Initiate(alice, other.ID, model.CallTypeAudio)

	clock = base.Add(31 * time.Second) // past the 30s ring timeout for the first call only
	missed, err := f.calls.SweepMissed()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(missed) != 1 || missed[0].ID != stale.ID {
		t.Fatalf("want only the stale call missed, got %+v", missed)
	}
	if missed[0].Status != model.CallStatusMissed || missed[0].EndedAt == nil {
		t.Fatalf("missed call not stamped, %+v", missed[0])
	}

	still, err := f.calls.findCall(fresh.ID)
	if err != nil {
		t.Fatalf("find fresh: %v", err)
	}
	if still.Status != model.CallStatusRinging {
		t.Fatalf("fresh ring swept early, status %s", still.Status)
	}

	// sweep is idempotent
	again, err := f.calls.SweepMissed()
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep re-collected %d calls", len(again))
	}
}
