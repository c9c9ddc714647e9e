package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/converseapp/converse/internal/middleware"
	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/internal/ws"
	"github.com/converseapp/converse/pkg/mailer"
)

// FriendHandler handles the friend request workflow and friend list
type FriendHandler struct {
	friendService *service.FriendService
	hub           *ws.Hub
	mailer        *mailer.Mailer
}

func NewFriendHandler(friendService *service.FriendService, hub *ws.Hub, m *mailer.Mailer) *FriendHandler {
	return &FriendHandler{friendService: friendService, hub: hub, mailer: m}
}

// SendRequest godoc
// @Summary Send a friend request by email
// @Tags Friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SendFriendRequestRequest true "Receiver email"
// @Success 201 {object} model.FriendRequest
// @Failure 409 {object} model.ErrorResponse
// @Router /friends/requests [post]
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req model.SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	request, receiver, err := h.friendService.SendRequest(user, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.SendToUser(receiver.ID, &model.WSEvent{
		Type:    model.WSEventFriendRequest,
		Payload: model.RequestWithSender{Request: *request, Sender: *user},
	})
	if h.mailer != nil {
		go func() {
			if err := h.mailer.SendFriendRequest(receiver.Email, receiver.Username, user.Username); err != nil {
				log.Warn().Err(err).Msg("friend request email")
			}
		}()
	}

	c.JSON(http.StatusCreated, request)
}

// ListReceived godoc
// @Summary List pending friend requests received by the current user
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.RequestWithSender
// @Router /friends/requests/received [get]
func (h *FriendHandler) ListReceived(c *gin.Context) {
	user := middleware.CurrentUser(c)

	requests, err := h.friendService.ListReceived(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// ListSent godoc
// @Summary List pending friend requests sent by the current user
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.RequestWithReceiver
// @Router /friends/requests/sent [get]
func (h *FriendHandler) ListSent(c *gin.Context) {
	user := middleware.CurrentUser(c)

	requests, err := h.friendService.ListSent(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// CountReceived godoc
// @Summary Count pending friend requests received by the current user
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /friends/requests/count [get]
func (h *FriendHandler) CountReceived(c *gin.Context) {
	user := middleware.CurrentUser(c)

	count, err := h.friendService.CountReceived(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Accept godoc
// @Summary Accept a friend request
// @Description Creates the friendship and its direct conversation, then removes the request
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} model.Conversation
// @Failure 404 {object} model.ErrorResponse
// @Router /friends/requests/{id}/accept [post]
func (h *FriendHandler) Accept(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request ID"})
		return
	}

	user := middleware.CurrentUser(c)
	conv, err := h.friendService.Accept(user, requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	// notify both sides so their friend and conversation lists refresh
	for _, m := range conv.Members {
		h.hub.SendToUser(m.MemberID, &model.WSEvent{
			Type:    model.WSEventFriendAccepted,
			Payload: conv,
		})
	}
	c.JSON(http.StatusOK, conv)
}

// Deny godoc
// @Summary Deny a received friend request
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} model.SuccessResponse
// @Router /friends/requests/{id}/deny [post]
func (h *FriendHandler) Deny(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request ID"})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.friendService.Deny(user, requestID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Request denied"})
}

// CancelSent godoc
// @Summary Cancel a friend request the current user sent
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} model.SuccessResponse
// @Router /friends/requests/{id} [delete]
func (h *FriendHandler) CancelSent(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request ID"})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.friendService.CancelSent(user, requestID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Request cancelled"})
}

// ListFriends godoc
// @Summary List the current user's friends
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.FriendItem
// @Router /friends [get]
func (h *FriendHandler) ListFriends(c *gin.Context) {
	user := middleware.CurrentUser(c)

	friends, err := h.friendService.ListFriends(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, friends)
}

// DeleteFriend godoc
// @Summary Remove a friend
// @Description Deletes the friendship together with its direct conversation and messages
// @Tags Friends
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Direct conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /friends/{conversationId} [delete]
func (h *FriendHandler) DeleteFriend(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.friendService.DeleteFriend(user, convID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Friend removed"})
}
