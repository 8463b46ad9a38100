package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/credential-service-api/internal/domain/user"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier struct {
	key   string
	owner *user.User
	err   error
}

func (s *stubVerifier) Verify(ctx context.Context, key string) (*user.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if key != s.key {
		return nil, ierr.ErrUnauthorized
	}
	return s.owner, nil
}

func newGateRouter(verifier KeyVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(APIKeyAuthMiddleware(verifier, zap.NewNop()))
	router.GET("/protected", func(c *gin.Context) {
		caller, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": caller.Email})
	})
	return router
}

func TestAPIKeyAuthMiddleware_ValidKey(t *testing.T) {
	verifier := &stubVerifier{
		key:   "sk_live_good",
		owner: &user.User{ID: 1, Email: "user@email.com"},
	}
	router := newGateRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "sk_live_good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user@email.com")
}

func TestAPIKeyAuthMiddleware_MissingAndUnknownKeysLookAlike(t *testing.T) {
	verifier := &stubVerifier{
		key:   "sk_live_good",
		owner: &user.User{ID: 1, Email: "user@email.com"},
	}
	router := newGateRouter(verifier)

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/protected", nil))

	unknown := httptest.NewRecorder()
	reqUnknown := httptest.NewRequest(http.MethodGet, "/protected", nil)
	reqUnknown.Header.Set("X-API-Key", "sk_live_bogus")
	router.ServeHTTP(unknown, reqUnknown)

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	// Identical bodies: no oracle about why the key was rejected.
	assert.Equal(t, missing.Body.String(), unknown.Body.String())
}

func TestAPIKeyAuthMiddleware_OrphanedKey(t *testing.T) {
	verifier := &stubVerifier{err: ierr.ErrNotFound}
	router := newGateRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "sk_live_orphan")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyAuthMiddleware_StorageFailure(t *testing.T) {
	verifier := &stubVerifier{err: ierr.ErrInternalServer}
	router := newGateRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "sk_live_any")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
