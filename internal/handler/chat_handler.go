package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/converseapp/converse/internal/middleware"
	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/internal/ws"
	"github.com/converseapp/converse/pkg/notification"
)

// ChatHandler handles conversation and message HTTP endpoints
type ChatHandler struct {
	chatService *service.ChatService
	hub         *ws.Hub
	notifier    *notification.NotificationService
}

func NewChatHandler(chatService *service.ChatService, hub *ws.Hub, notifier *notification.NotificationService) *ChatHandler {
	return &ChatHandler{chatService: chatService, hub: hub, notifier: notifier}
}

// ListConversations godoc
// @Summary List the current user's conversations
// @Description Conversations sorted by recency, each with last message preview and unseen count
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ConversationListItem
// @Router /conversations [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	user := middleware.CurrentUser(c)

	items, err := h.chatService.ListConversations(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetConversation godoc
// @Summary Get a single conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.ConversationDetail
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	user := middleware.CurrentUser(c)
	detail, err := h.chatService.GetConversation(user, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetGroupInfo godoc
// @Summary Get group members and recent leaves
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.GroupInfo
// @Router /conversations/{id}/group-info [get]
func (h *ChatHandler) GetGroupInfo(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	info, err := h.chatService.GetGroupInfo(convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// CreateGroup godoc
// @Summary Create a group conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateGroupRequest true "Group name and member IDs"
// @Success 201 {object} model.Conversation
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations/groups [post]
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req model.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	conv, err := h.chatService.CreateGroup(user, req.Name, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(conv.ID, user.ID, &model.WSEvent{
		Type:    model.WSEventConversationUpdated,
		Payload: conv,
	})
	c.JSON(http.StatusCreated, conv)
}

// AddMembers godoc
// @Summary Add members to a group
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.AddMembersRequest true "Member IDs"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/members [post]
func (h *ChatHandler) AddMembers(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.chatService.AddMembers(user, convID, req.MemberIDs); err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(convID, uuid.Nil, &model.WSEvent{
		Type:    model.WSEventMemberAdded,
		Payload: gin.H{"conversation_id": convID, "member_ids": req.MemberIDs},
	})
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Members added"})
}

// LeaveGroup godoc
// @Summary Leave a group conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/leave [post]
func (h *ChatHandler) LeaveGroup(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.chatService.LeaveGroup(user, convID); err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(convID, uuid.Nil, &model.WSEvent{
		Type:    model.WSEventMemberLeft,
		Payload: gin.H{"conversation_id": convID, "user_id": user.ID},
	})
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Left group"})
}

// DeleteGroup godoc
// @Summary Delete a group conversation and all its messages
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id} [delete]
func (h *ChatHandler) DeleteGroup(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	user := middleware.CurrentUser(c)
	memberIDs, _ := h.chatService.GetMemberIDs(convID)

	if err := h.chatService.DeleteGroup(user, convID); err != nil {
		respondError(c, err)
		return
	}

	h.hub.SendToUsers(memberIDs, &model.WSEvent{
		Type:    model.WSEventConversationUpdated,
		Payload: gin.H{"conversation_id": convID, "deleted": true},
	})
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Group deleted"})
}

// MarkRead godoc
// @Summary Advance the caller's read position in a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.MarkReadRequest true "Last seen message ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.chatService.MarkRead(user, convID, req.MessageID); err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(convID, user.ID, &model.WSEvent{
		Type: model.WSEventMessageRead,
		Payload: model.MessageReadEvent{
			ConversationID: convID,
			MessageID:      req.MessageID,
			UserID:         user.ID,
		},
	})
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Read position updated"})
}

// ListMessages godoc
// @Summary List messages of a conversation
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {array} model.MessageWithSender
// @Router /conversations/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	user := middleware.CurrentUser(c)
	messages, err := h.chatService.ListMessages(user, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage godoc
// @Summary Send a message to a conversation
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SendMessageRequest true "Message payload"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	msg, err := h.chatService.SendMessage(user, convID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(convID, uuid.Nil, &model.WSEvent{
		Type:    model.WSEventNewMessage,
		Payload: msg,
	})
	h.pushMessage(convID, user, msg)

	c.JSON(http.StatusCreated, msg)
}

// EditMessage godoc
// @Summary Edit a message's content
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.EditMessageRequest true "New content"
// @Success 200 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [patch]
func (h *ChatHandler) EditMessage(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	msg, err := h.chatService.EditMessage(user, msgID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(msg.ConversationID, uuid.Nil, &model.WSEvent{
		Type:    model.WSEventMessageEdited,
		Payload: msg,
	})
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	user := middleware.CurrentUser(c)
	msg, err := h.chatService.DeleteMessage(user, msgID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notifyConversation(msg.ConversationID, uuid.Nil, &model.WSEvent{
		Type: model.WSEventMessageDeleted,
		Payload: model.MessageDeletedEvent{
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
		},
	})
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Message deleted"})
}

// notifyConversation sends a WS event to every member of a conversation
// except the excluded user (uuid.Nil excludes nobody).
func (h *ChatHandler) notifyConversation(conversationID, exclude uuid.UUID, event *model.WSEvent) {
	memberIDs, err := h.chatService.GetMemberIDs(conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID.String()).Msg("resolve members for ws event")
		return
	}
	targets := memberIDs[:0]
	for _, id := range memberIDs {
		if id != exclude {
			targets = append(targets, id)
		}
	}
	h.hub.SendToUsers(targets, event)
}

// pushMessage sends FCM notifications to every member except the sender.
func (h *ChatHandler) pushMessage(conversationID uuid.UUID, sender *model.User, msg *model.Message) {
	if h.notifier == nil {
		return
	}
	memberIDs, err := h.chatService.GetMemberIDs(conversationID)
	if err != nil {
		return
	}
	preview := msg.Preview()
	for _, id := range memberIDs {
		if id == sender.ID {
			continue
		}
		receiverID := id
		go func() {
			if err := h.notifier.SendMessageNotification(context.Background(), receiverID, sender.Username, preview, conversationID); err != nil {
				log.Warn().Err(err).Msg("push message notification")
			}
		}()
	}
}
