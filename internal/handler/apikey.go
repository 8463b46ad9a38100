package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/credential-service-api/internal/handler/dto"
	"github.com/makkenzo/credential-service-api/internal/handler/middleware"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/makkenzo/credential-service-api/internal/service"
	"go.uber.org/zap"
)

type APIKeyHandler struct {
	keys   *service.APIKeyService
	logger *zap.Logger
}

func NewAPIKeyHandler(keys *service.APIKeyService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		keys:   keys,
		logger: logger.Named("APIKeyHandler"),
	}
}

// Reset rotates the caller's api key. The route sits behind the
// x-api-key gate, so a valid current key AND valid credentials are
// both required. The superseded key keeps working until the grace
// period runs out.
func (h *APIKeyHandler) Reset(c *gin.Context) {
	var req dto.ResetAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind reset api key request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	caller, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	grace := h.keys.DefaultGracePeriod()
	newKey, err := h.keys.Rotate(c.Request.Context(), req.Email, req.Password, grace)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("API key reset", zap.Int64("user_id", caller.ID))
	c.JSON(http.StatusOK, dto.ResetAPIKeyResponse{
		Email:   caller.Email,
		APIKey:  newKey,
		Message: fmt.Sprintf("Your previous API key will expire in %s.", graceMessage(grace)),
	})
}

func graceMessage(grace time.Duration) string {
	if grace == 5*time.Minute {
		return "5 minutes"
	}
	return grace.String()
}
