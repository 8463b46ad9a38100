package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/credential-service-api/internal/handler/dto"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/makkenzo/credential-service-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth   *service.AuthService
	keys   *service.APIKeyService
	logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, keys *service.APIKeyService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		keys:   keys,
		logger: logger.Named("AuthHandler"),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind register request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	created, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	key, err := h.keys.IssueOrFetch(c.Request.Context(), created.ID)
	if err != nil {
		h.logger.Error("Failed to issue api key after registration", zap.Int64("user_id", created.ID), zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterResponse{
		ID:      created.ID,
		Email:   created.Email,
		APIKey:  key,
		Message: "User registered successfully.",
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind login request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	authed, err := h.auth.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	key, err := h.keys.IssueOrFetch(c.Request.Context(), authed.ID)
	if err != nil {
		h.logger.Error("Failed to fetch api key on login", zap.Int64("user_id", authed.ID), zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("User logged in", zap.Int64("user_id", authed.ID))
	c.JSON(http.StatusOK, dto.LoginResponse{
		ID:     authed.ID,
		Email:  authed.Email,
		APIKey: key,
	})
}
