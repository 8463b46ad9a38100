package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/credential-service-api/internal/handler/dto"
	"github.com/makkenzo/credential-service-api/internal/handler/middleware"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"go.uber.org/zap"
)

type UserHandler struct {
	logger *zap.Logger
}

func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{
		logger: logger.Named("UserHandler"),
	}
}

// Me returns the account the presented api key belongs to.
func (h *UserHandler) Me(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, dto.UserResponse{
		ID:        caller.ID,
		Email:     caller.Email,
		CreatedAt: caller.CreatedAt,
	})
}
