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

// CallHandler handles call session HTTP endpoints
type CallHandler struct {
	callService *service.CallService
	chatService *service.ChatService
	hub         *ws.Hub
	notifier    *notification.NotificationService
}

func NewCallHandler(callService *service.CallService, chatService *service.ChatService, hub *ws.Hub, notifier *notification.NotificationService) *CallHandler {
	return &CallHandler{callService: callService, chatService: chatService, hub: hub, notifier: notifier}
}

// Initiate godoc
// @Summary Start a call in a conversation
// @Tags Calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.InitiateCallRequest true "Call type"
// @Success 201 {object} model.InitiateCallResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /conversations/{id}/calls [post]
func (h *CallHandler) Initiate(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	call, err := h.callService.Initiate(user, convID, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastCall(call, model.WSEventIncomingCall, user.ID)
	h.pushIncomingCall(call, user)

	c.JSON(http.StatusCreated, model.InitiateCallResponse{CallID: call.ID, RoomID: call.RoomID})
}

// Answer godoc
// @Summary Answer a ringing call
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.AnswerCallResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /calls/{id}/answer [post]
func (h *CallHandler) Answer(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	user := middleware.CurrentUser(c)
	call, err := h.callService.Answer(user, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastCall(call, model.WSEventCallAnswered, uuid.Nil)
	c.JSON(http.StatusOK, model.AnswerCallResponse{RoomID: call.RoomID})
}

// Reject godoc
// @Summary Reject a ringing call
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.SuccessResponse
// @Router /calls/{id}/reject [post]
func (h *CallHandler) Reject(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	user := middleware.CurrentUser(c)
	call, err := h.callService.Reject(user, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastCall(call, model.WSEventCallRejected, uuid.Nil)
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Call rejected"})
}

// Cancel godoc
// @Summary Cancel a ringing call (initiator only)
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /calls/{id}/cancel [post]
func (h *CallHandler) Cancel(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	user := middleware.CurrentUser(c)
	call, err := h.callService.Cancel(user, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastCall(call, model.WSEventCallCancelled, uuid.Nil)
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Call cancelled"})
}

// End godoc
// @Summary End a call
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.Call
// @Failure 409 {object} model.ErrorResponse
// @Router /calls/{id}/end [post]
func (h *CallHandler) End(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	user := middleware.CurrentUser(c)
	call, err := h.callService.End(user, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastCall(call, model.WSEventCallEnded, uuid.Nil)
	c.JSON(http.StatusOK, call)
}

// ActiveCalls godoc
// @Summary List the current user's ringing and active calls
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ActiveCall
// @Router /calls/active [get]
func (h *CallHandler) ActiveCalls(c *gin.Context) {
	user := middleware.CurrentUser(c)

	calls, err := h.callService.ActiveForUser(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, calls)
}

// broadcastCall sends a call event to the call's conversation members,
// optionally excluding one user.
func (h *CallHandler) broadcastCall(call *model.Call, eventType string, exclude uuid.UUID) {
	memberIDs, err := h.chatService.GetMemberIDs(call.ConversationID)
	if err != nil {
		log.Warn().Err(err).Str("call_id", call.ID.String()).Msg("resolve members for call event")
		return
	}
	targets := memberIDs[:0]
	for _, id := range memberIDs {
		if id != exclude {
			targets = append(targets, id)
		}
	}
	h.hub.SendToUsers(targets, &model.WSEvent{
		Type: eventType,
		Payload: model.CallEvent{
			CallID:         call.ID,
			ConversationID: call.ConversationID,
			InitiatorID:    call.InitiatorID,
			Status:         call.Status,
			Type:           call.Type,
			RoomID:         call.RoomID,
		},
	})
}

// pushIncomingCall sends high-priority FCM pushes to the invited members.
func (h *CallHandler) pushIncomingCall(call *model.Call, caller *model.User) {
	if h.notifier == nil {
		return
	}
	memberIDs, err := h.chatService.GetMemberIDs(call.ConversationID)
	if err != nil {
		return
	}
	for _, id := range memberIDs {
		if id == caller.ID {
			continue
		}
		receiverID := id
		go func() {
			if err := h.notifier.SendIncomingCallNotification(context.Background(), receiverID, caller.Username, call.ID, string(call.Type)); err != nil {
				log.Warn().Err(err).Msg("push incoming call notification")
			}
		}()
	}
}
