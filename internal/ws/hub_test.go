package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/converseapp/converse/internal/model"
)

// runHub starts a redis-less hub for the duration of the test.
func runHub(t *testing.T, onStatusChange func(uuid.UUID, bool)) *Hub {
	t.Helper()
	hub := NewHub(nil, onStatusChange)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// register waits on the connection count, not the online flag; for a
// second connection of the same user the flag is already set before
// the hub's loop has picked the client up.
func register(t *testing.T, hub *Hub, userID uuid.UUID) *Client {
	t.Helper()
	want := hub.ConnectionCount(userID) + 1
	client := NewClient(hub, nil, userID, "tester")
	hub.Register(client)
	waitFor(t, func() bool { return hub.ConnectionCount(userID) >= want })
	return client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// recvEvent returns the next non-presence event delivered to the client.
// Registering any client broadcasts online/offline events into every
// buffer, so those are skipped.
func recvEvent(t *testing.T, client *Client) model.WSEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.send:
			var event model.WSEvent
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			if event.Type == model.WSEventOnline || event.Type == model.WSEventOffline {
				continue
			}
			return event
		case <-deadline:
			t.Fatal("no event delivered")
		}
	}
}

func TestSendToUserLocalDelivery(t *testing.T) {
	hub := runHub(t, nil)
	alice := uuid.New()
	bob := uuid.New()
	aliceClient := register(t, hub, alice)
	bobClient := register(t, hub, bob)

	hub.SendToUser(alice, &model.WSEvent{Type: model.WSEventNewMessage, Payload: "hi"})

	event := recvEvent(t, aliceClient)
	if event.Type != model.WSEventNewMessage {
		t.Fatalf("got event %q", event.Type)
	}

	// nothing but presence noise may reach the other user
	for {
		select {
		case data := <-bobClient.send:
			var event model.WSEvent
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			if event.Type != model.WSEventOnline && event.Type != model.WSEventOffline {
				t.Fatalf("event leaked to another user: %q", event.Type)
			}
		default:
			return
		}
	}
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	hub := runHub(t, nil)
	alice := uuid.New()
	phone := register(t, hub, alice)
	laptop := register(t, hub, alice)

	if n := hub.ConnectionCount(alice); n != 2 {
		t.Fatalf("want 2 connections, got %d", n)
	}

	hub.SendToUser(alice, &model.WSEvent{Type: model.WSEventTyping})

	if recvEvent(t, phone).Type != model.WSEventTyping {
		t.Fatal("first connection missed the event")
	}
	if recvEvent(t, laptop).Type != model.WSEventTyping {
		t.Fatal("second connection missed the event")
	}
}

func TestStalledConnectionEvicted(t *testing.T) {
	hub := runHub(t, nil)
	alice := uuid.New()
	client := register(t, hub, alice)

	// nobody drains the send buffer; once it overflows the hub must
	// drop the connection instead of blocking
	for i := 0; i < cap(client.send)+1; i++ {
		hub.SendToUser(alice, &model.WSEvent{Type: model.WSEventNewMessage})
	}

	if n := hub.ConnectionCount(alice); n != 0 {
		t.Fatalf("stalled connection still registered, count=%d", n)
	}
	for {
		if _, ok := <-client.send; !ok {
			break
		}
	}
}

func TestStatusChangeFiresOnFirstAndLastConnection(t *testing.T) {
	var mu sync.Mutex
	changes := []bool{}
	hub := runHub(t, func(_ uuid.UUID, online bool) {
		mu.Lock()
		changes = append(changes, online)
		mu.Unlock()
	})

	alice := uuid.New()
	first := register(t, hub, alice)
	second := register(t, hub, alice)

	// only the first connection flips the user online
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 1 && changes[0]
	})

	hub.unregister <- second
	// still one connection left, no offline signal yet
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	n := len(changes)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("offline fired while connections remain, changes=%d", n)
	}

	hub.unregister <- first
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2 && !changes[1]
	})
	if hub.IsUserOnline(alice) {
		t.Fatal("user still marked online after last disconnect")
	}
}

func TestOnlineUserIDs(t *testing.T) {
	hub := runHub(t, nil)
	alice := uuid.New()
	bob := uuid.New()
	register(t, hub, alice)
	register(t, hub, bob)

	ids := hub.OnlineUserIDs()
	if len(ids) != 2 {
		t.Fatalf("want 2 online users, got %d", len(ids))
	}
}
