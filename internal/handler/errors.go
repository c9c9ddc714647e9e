package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
)

// respondError maps service sentinel errors to HTTP status codes.
// Unknown errors become a 500 with a generic body so internals never
// leak to clients.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrNotSender),
		errors.Is(err, service.ErrNotInitiator):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrCallInProgress),
		errors.Is(err, service.ErrInvalidCallState):
		c.JSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrSelfRequest),
		errors.Is(err, service.ErrInvalidReply),
		errors.Is(err, service.ErrNotGroup),
		errors.Is(err, service.ErrInvalidMembers):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error"})
	}
}
