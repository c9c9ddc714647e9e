package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/converseapp/converse/internal/middleware"
	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/internal/ws"
)

// PresenceHandler handles online status and typing endpoints
type PresenceHandler struct {
	presenceService *service.PresenceService
	chatService     *service.ChatService
	hub             *ws.Hub
}

func NewPresenceHandler(presenceService *service.PresenceService, chatService *service.ChatService, hub *ws.Hub) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService, chatService: chatService, hub: hub}
}

// SetOnline godoc
// @Summary Set the current user's online status
// @Tags Presence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SetOnlineRequest true "Online flag"
// @Success 200 {object} model.SuccessResponse
// @Router /presence/online [post]
func (h *PresenceHandler) SetOnline(c *gin.Context) {
	var req model.SetOnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.presenceService.SetOnline(user, *req.IsOnline); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Status updated"})
}

// GetUserStatus godoc
// @Summary Get a user's online status and last seen time
// @Tags Presence
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.UserStatus
// @Router /users/{id}/status [get]
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	status, err := h.presenceService.GetUserStatus(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetOnlineUsers godoc
// @Summary List users currently online
// @Tags Presence
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Router /users/online [get]
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	users, err := h.presenceService.GetOnlineUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// SetTyping godoc
// @Summary Set the current user's typing state in a conversation
// @Tags Presence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SetTypingRequest true "Typing flag"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/typing [post]
func (h *PresenceHandler) SetTyping(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.SetTypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.presenceService.SetTyping(user, convID, *req.IsTyping); err != nil {
		respondError(c, err)
		return
	}

	eventType := model.WSEventTyping
	if !*req.IsTyping {
		eventType = model.WSEventStopTyping
	}
	if memberIDs, err := h.chatService.GetMemberIDs(convID); err == nil {
		targets := memberIDs[:0]
		for _, id := range memberIDs {
			if id != user.ID {
				targets = append(targets, id)
			}
		}
		h.hub.SendToUsers(targets, &model.WSEvent{
			Type: eventType,
			Payload: model.TypingEvent{
				ConversationID: convID,
				UserID:         user.ID,
				Username:       user.Username,
			},
		})
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Typing state updated"})
}

// GetTypingUsers godoc
// @Summary List members currently typing in a conversation
// @Description Only signals refreshed within the last five seconds count
// @Tags Presence
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {array} model.TypingUser
// @Router /conversations/{id}/typing [get]
func (h *PresenceHandler) GetTypingUsers(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	user := middleware.CurrentUser(c)
	users, err := h.presenceService.GetTypingUsers(user, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
