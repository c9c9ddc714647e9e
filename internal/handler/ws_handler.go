package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/internal/ws"
	"github.com/converseapp/converse/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the CORS layer in front
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub             *ws.Hub
	chatService     *service.ChatService
	presenceService *service.PresenceService
	identity        *service.IdentityService
	jwtManager      *auth.JWTManager
}

func NewWSHandler(hub *ws.Hub, chatService *service.ChatService, presenceService *service.PresenceService, identity *service.IdentityService, jwtManager *auth.JWTManager) *WSHandler {
	return &WSHandler{
		hub:             hub,
		chatService:     chatService,
		presenceService: presenceService,
		identity:        identity,
		jwtManager:      jwtManager,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection.
// Clients connect with: ws://host/ws?token=<jwt>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// browsers can't set Authorization on WebSocket requests
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	user, err := h.identity.Resolve(claims.ExternalID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := ws.NewClient(h.hub, conn, user.ID, user.Username)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(func(cl *ws.Client, event model.WSEvent) {
		h.handleWSMessage(user, cl, event)
	})
}

func (h *WSHandler) handleWSMessage(user *model.User, client *ws.Client, event model.WSEvent) {
	switch event.Type {
	case model.WSEventNewMessage:
		h.handleNewMessage(user, event)

	case model.WSEventTyping:
		h.handleTyping(user, event, true)

	case model.WSEventStopTyping:
		h.handleTyping(user, event, false)

	case model.WSEventMessageRead:
		h.handleMessageRead(user, event)

	// WebRTC signaling is forwarded peer to peer, never persisted
	case model.WSEventCallOffer, model.WSEventCallAnswer, model.WSEventCallICE, model.WSEventCallHangup:
		h.forwardSignaling(client, event)

	default:
		log.Debug().Str("type", event.Type).Msg("unknown ws event type")
	}
}

func (h *WSHandler) handleNewMessage(user *model.User, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID  `json:"conversation_id"`
		Type           string     `json:"type"`
		Content        []string   `json:"content"`
		ReplyTo        *uuid.UUID `json:"reply_to,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		log.Warn().Err(err).Msg("parse new_message payload")
		return
	}

	msgType := model.MessageType(payload.Type)
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	msg, err := h.chatService.SendMessage(user, payload.ConversationID, model.SendMessageRequest{
		Type:    msgType,
		Content: payload.Content,
		ReplyTo: payload.ReplyTo,
	})
	if err != nil {
		log.Warn().Err(err).Msg("save ws message")
		return
	}

	memberIDs, err := h.chatService.GetMemberIDs(payload.ConversationID)
	if err != nil {
		return
	}
	h.hub.SendToUsers(memberIDs, &model.WSEvent{
		Type:    model.WSEventNewMessage,
		Payload: msg,
	})
}

func (h *WSHandler) handleTyping(user *model.User, event model.WSEvent, isTyping bool) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	if err := h.presenceService.SetTyping(user, payload.ConversationID, isTyping); err != nil {
		return
	}

	eventType := model.WSEventTyping
	if !isTyping {
		eventType = model.WSEventStopTyping
	}
	memberIDs, _ := h.chatService.GetMemberIDs(payload.ConversationID)
	for _, memberID := range memberIDs {
		if memberID == user.ID {
			continue
		}
		h.hub.SendToUser(memberID, &model.WSEvent{
			Type: eventType,
			Payload: model.TypingEvent{
				ConversationID: payload.ConversationID,
				UserID:         user.ID,
				Username:       user.Username,
			},
		})
	}
}

func (h *WSHandler) handleMessageRead(user *model.User, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
		MessageID      uuid.UUID `json:"message_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	if err := h.chatService.MarkRead(user, payload.ConversationID, payload.MessageID); err != nil {
		return
	}

	memberIDs, _ := h.chatService.GetMemberIDs(payload.ConversationID)
	for _, memberID := range memberIDs {
		if memberID == user.ID {
			continue
		}
		h.hub.SendToUser(memberID, &model.WSEvent{
			Type: model.WSEventMessageRead,
			Payload: model.MessageReadEvent{
				ConversationID: payload.ConversationID,
				MessageID:      payload.MessageID,
				UserID:         user.ID,
			},
		})
	}
}

// forwardSignaling relays a WebRTC signaling event to its target user
func (h *WSHandler) forwardSignaling(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		To uuid.UUID `json:"to"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil || payload.To == uuid.Nil {
		return
	}
	h.hub.SendToUser(payload.To, &event)
}
