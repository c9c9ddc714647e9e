package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/converseapp/converse/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisChannel = "converse:events"

// Hub tracks WebSocket connections per user and fans events out to them.
// With a redis client attached, events are published through pub/sub so
// every instance delivers to its own local connections; with a nil
// client the hub delivers locally only (single instance, tests).
type Hub struct {
	// userID -> set of connections; one user can hold several tabs/devices
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb *redis.Client

	// invoked when a user's first connection opens or last one closes
	onStatusChange func(userID uuid.UUID, online bool)
}

func NewHub(rdb *redis.Client, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		rdb:            rdb,
		onStatusChange: onStatusChange,
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	first := false
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
		first = true
	}
	h.clients[client.UserID][client] = true
	total := len(h.clients[client.UserID])
	h.mu.Unlock()

	if first {
		// first connection: user came online
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, true)
		}
		h.publish(&TargetedEvent{Event: &model.WSEvent{
			Type: model.WSEventOnline,
			Payload: model.OnlineEvent{
				UserID:   client.UserID,
				IsOnline: true,
			},
		}})
	}
	log.Debug().
		Str("user_id", client.UserID.String()).
		Int("connections", total).
		Msg("ws client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	close(client.send)
	last := len(clients) == 0
	if last {
		delete(h.clients, client.UserID)
	}
	h.mu.Unlock()

	if last {
		// last connection: user went offline
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, false)
		}
		h.publish(&TargetedEvent{Event: &model.WSEvent{
			Type: model.WSEventOffline,
			Payload: model.OnlineEvent{
				UserID:   client.UserID,
				IsOnline: false,
			},
		}})
	}
	log.Debug().Str("user_id", client.UserID.String()).Msg("ws client disconnected")
}

// SendToUser delivers an event to every connection the user holds,
// across all instances.
func (h *Hub) SendToUser(userID uuid.UUID, event *model.WSEvent) {
	h.publish(&TargetedEvent{TargetUserID: userID, Event: event})
}

// SendToUsers delivers an event to each of the given users.
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event *model.WSEvent) {
	for _, userID := range userIDs {
		h.SendToUser(userID, event)
	}
}

// sendToLocalUser takes the write lock because a stalled connection is
// evicted from the client map on the spot.
func (h *Hub) sendToLocalUser(userID uuid.UUID, event *model.WSEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[userID]
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal ws event")
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// send buffer full, drop the connection
			close(client.send)
			delete(clients, client)
		}
	}
}

func (h *Hub) broadcastToLocal(event *model.WSEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal ws event")
		return
	}
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(clients, client)
			}
		}
	}
}

// IsUserOnline reports whether the user has a connection on this
// instance.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ConnectionCount returns how many connections the user holds on this
// instance.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// OnlineUserIDs returns the users connected to this instance.
func (h *Hub) OnlineUserIDs() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		userIDs = append(userIDs, userID)
	}
	return userIDs
}

// TargetedEvent wraps an event with an optional target user for pub/sub
// routing. A nil target means broadcast.
type TargetedEvent struct {
	TargetUserID uuid.UUID      `json:"target_user_id,omitempty"`
	Event        *model.WSEvent `json:"event"`
}

// publish routes an event through redis when available, otherwise
// delivers to local connections directly.
func (h *Hub) publish(targeted *TargetedEvent) {
	if h.rdb == nil {
		h.deliver(targeted)
		return
	}
	data, err := json.Marshal(targeted)
	if err != nil {
		log.Error().Err(err).Msg("marshal ws event for redis")
		return
	}
	if err := h.rdb.Publish(context.Background(), redisChannel, data).Err(); err != nil {
		log.Error().Err(err).Msg("publish ws event to redis")
	}
}

func (h *Hub) deliver(targeted *TargetedEvent) {
	if targeted.Event == nil {
		return
	}
	if targeted.TargetUserID != uuid.Nil {
		h.sendToLocalUser(targeted.TargetUserID, targeted.Event)
		return
	}
	h.broadcastToLocal(targeted.Event)
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Info().Str("channel", redisChannel).Msg("redis pub/sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var targeted TargetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &targeted); err != nil {
				log.Error().Err(err).Msg("unmarshal redis ws event")
				continue
			}
			h.deliver(&targeted)
		}
	}
}
