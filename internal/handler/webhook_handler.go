package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
)

// WebhookHandler ingests identity provider webhook events. The provider
// is the source of truth for user records; this is the only place they
// are created, updated or deleted.
type WebhookHandler struct {
	identity *service.IdentityService
	verifier *svix.Webhook
}

func NewWebhookHandler(identity *service.IdentityService, signingSecret string) (*WebhookHandler, error) {
	var verifier *svix.Webhook
	if signingSecret != "" {
		wh, err := svix.NewWebhook(signingSecret)
		if err != nil {
			return nil, err
		}
		verifier = wh
	} else {
		log.Warn().Msg("webhook signing secret not set, signature verification disabled")
	}
	return &WebhookHandler{identity: identity, verifier: verifier}, nil
}

// providerEvent is the envelope the identity provider posts.
type providerEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// HandleProviderEvent godoc
// @Summary Ingest an identity provider webhook event
// @Description Verifies the signature and mirrors user.created/updated/deleted into the local user store
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} model.SuccessResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /webhooks/identity [post]
func (h *WebhookHandler) HandleProviderEvent(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Unable to read body"})
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(payload, c.Request.Header); err != nil {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid webhook signature"})
			return
		}
	}

	var event providerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid payload", Message: err.Error()})
		return
	}

	switch event.Type {
	case "user.created", "user.updated":
		email := ""
		if len(event.Data.EmailAddresses) > 0 {
			email = event.Data.EmailAddresses[0].EmailAddress
		}
		username := event.Data.Username
		if username == "" {
			username = strings.TrimSpace(event.Data.FirstName + " " + event.Data.LastName)
		}
		if _, err := h.identity.UpsertFromProvider(event.Data.ID, username, email, event.Data.ImageURL); err != nil {
			log.Error().Err(err).Str("external_id", event.Data.ID).Msg("upsert user from webhook")
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to sync user"})
			return
		}

	case "user.deleted":
		if err := h.identity.DeleteFromProvider(event.Data.ID); err != nil {
			log.Error().Err(err).Str("external_id", event.Data.ID).Msg("delete user from webhook")
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to delete user"})
			return
		}

	default:
		log.Debug().Str("type", event.Type).Msg("ignoring webhook event")
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "ok"})
}
