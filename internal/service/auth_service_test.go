package service

import (
	"context"
	"testing"

	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/makkenzo/credential-service-api/internal/security"
	"github.com/makkenzo/credential-service-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthService(t *testing.T) (*AuthService, *memstorage.UserRepository) {
	t.Helper()

	keys := memstorage.NewAPIKeyRepository()
	users := memstorage.NewUserRepository(keys)
	hasher := security.NewPasswordHasher(4)
	return NewAuthService(users, hasher, zap.NewNop()), users
}

func TestAuthService_Register(t *testing.T) {
	svc, users := newAuthService(t)

	created, err := svc.Register(context.Background(), "user@email.com", "User@123")
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "user@email.com", created.Email)
	assert.Empty(t, created.PasswordHash)
	assert.Equal(t, 1, users.Count())

	// The stored hash is not the plaintext.
	stored, err := users.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "User@123", stored.PasswordHash)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, users := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "user@email.com", "User@123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "user@email.com", "Other@456")
	assert.ErrorIs(t, err, ierr.ErrConflict)
	assert.Equal(t, 1, users.Count())
}

func TestAuthService_VerifyCredentials(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "user@email.com", "User@123")
	require.NoError(t, err)

	authed, err := svc.VerifyCredentials(ctx, "user@email.com", "User@123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)
	assert.Empty(t, authed.PasswordHash)
}

func TestAuthService_VerifyCredentials_UniformMismatch(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "user@email.com", "User@123")
	require.NoError(t, err)

	_, wrongPassword := svc.VerifyCredentials(ctx, "user@email.com", "Wrong@123")
	_, wrongEmail := svc.VerifyCredentials(ctx, "unknown@email.com", "User@123")

	// Same sentinel either way: the caller cannot tell which half
	// failed.
	assert.ErrorIs(t, wrongPassword, ierr.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongEmail, ierr.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), wrongEmail.Error())
}

func TestAuthService_DeleteUser_NotFound(t *testing.T) {
	svc, _ := newAuthService(t)

	err := svc.DeleteUser(context.Background(), 404)
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}
