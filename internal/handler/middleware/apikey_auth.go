package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/credential-service-api/internal/domain/user"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"go.uber.org/zap"
)

const (
	apiKeyHeader       = "X-API-Key"
	currentUserContext = "currentUser"
)

// KeyVerifier resolves a bearer api key to its owning user.
type KeyVerifier interface {
	Verify(ctx context.Context, key string) (*user.User, error)
}

// APIKeyAuthMiddleware gates protected routes on the x-api-key
// header. Missing and unknown keys get the same uniform 401; the
// response never hints whether the key was malformed or just unknown.
func APIKeyAuthMiddleware(verifier KeyVerifier, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("APIKeyAuthMiddleware")
	return func(c *gin.Context) {
		presented := c.GetHeader(apiKeyHeader)
		if presented == "" {
			log.Debug("API key header is missing", zap.String("header", apiKeyHeader))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key"})
			return
		}

		owner, err := verifier.Verify(c.Request.Context(), presented)
		if err != nil {
			if errors.Is(err, ierr.ErrUnauthorized) {
				log.Debug("Unknown api key presented")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key"})
				return
			}
			if errors.Is(err, ierr.ErrNotFound) {
				log.Warn("API key resolved to a missing user", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			log.Error("Failed to verify api key", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during API key validation"})
			return
		}

		c.Set(currentUserContext, owner)
		c.Next()
	}
}

// CurrentUser returns the authenticated account stored by the api key
// gate.
func CurrentUser(c *gin.Context) (*user.User, bool) {
	val, exists := c.Get(currentUserContext)
	if !exists {
		return nil, false
	}
	u, ok := val.(*user.User)
	return u, ok
}
