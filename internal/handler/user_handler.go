package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/converseapp/converse/internal/middleware"
	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/pkg/auth"
)

// UserHandler handles the session surface: token exchange, profile,
// revocation, device registration and user search.
type UserHandler struct {
	userRepo   *repository.UserRepository
	identity   *service.IdentityService
	jwtManager *auth.JWTManager
	rdb        *redis.Client
	jwtCfg     JWTSettings
}

// JWTSettings carries what the handler needs to mint and revoke tokens.
type JWTSettings struct {
	Expiry      time.Duration
	ExchangeKey string
}

func NewUserHandler(userRepo *repository.UserRepository, identity *service.IdentityService, jwtManager *auth.JWTManager, rdb *redis.Client, jwtCfg JWTSettings) *UserHandler {
	return &UserHandler{userRepo: userRepo, identity: identity, jwtManager: jwtManager, rdb: rdb, jwtCfg: jwtCfg}
}

// ExchangeToken godoc
// @Summary Exchange a provider principal for an API token
// @Description Server-to-server: the caller must present the configured exchange key
// @Tags Auth
// @Accept json
// @Produce json
// @Param X-Exchange-Key header string true "Exchange key"
// @Param body body model.ExchangeTokenRequest true "Provider principal id"
// @Success 200 {object} model.TokenResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /auth/token [post]
func (h *UserHandler) ExchangeToken(c *gin.Context) {
	key := c.GetHeader("X-Exchange-Key")
	if h.jwtCfg.ExchangeKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.jwtCfg.ExchangeKey)) != 1 {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "Invalid exchange key"})
		return
	}

	var req model.ExchangeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user, err := h.identity.Resolve(req.ExternalID)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.ExternalID, user.Email, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, model.TokenResponse{Token: token, User: *user})
}

// Me godoc
// @Summary Get the current user's profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Router /auth/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// Logout godoc
// @Summary Revoke the current token
// @Description The token is blacklisted until its natural expiry
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Router /auth/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Missing token"})
		return
	}

	if h.rdb != nil {
		if err := h.rdb.Set(context.Background(), "revoked:"+parts[1], "1", h.jwtCfg.Expiry).Err(); err != nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to revoke token"})
			return
		}
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Logged out"})
}

// RegisterDevice godoc
// @Summary Register a device token for push notifications
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "FCM token and device type"
// @Success 200 {object} model.SuccessResponse
// @Router /devices [post]
func (h *UserHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.userRepo.AddDevice(user.ID, req.FCMToken, req.DeviceType); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to register device"})
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Device registered"})
}

// SearchUsers godoc
// @Summary Search users by username or email
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search query"
// @Success 200 {array} model.User
// @Router /users/search [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Query is required"})
		return
	}

	user := middleware.CurrentUser(c)
	users, err := h.userRepo.SearchUsers(query, user.ID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Search failed"})
		return
	}
	c.JSON(http.StatusOK, users)
}
