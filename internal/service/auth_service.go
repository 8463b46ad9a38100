package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/makkenzo/credential-service-api/internal/domain/user"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/makkenzo/credential-service-api/internal/security"
	"go.uber.org/zap"
)

// AuthService owns credential storage and verification. The hasher is
// injected at startup; there is no ambient hashing context.
type AuthService struct {
	userRepo user.Repository
	hasher   *security.PasswordHasher
	logger   *zap.Logger
}

func NewAuthService(userRepo user.Repository, hasher *security.PasswordHasher, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		logger:   logger.Named("AuthService"),
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*user.User, error) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", zap.Error(err))
		return nil, fmt.Errorf("%w: hashing password: %v", ierr.ErrInternalServer, err)
	}

	created, err := s.userRepo.Create(ctx, email, passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			s.logger.Info("Registration rejected, email already taken", zap.String("email", email))
			return nil, fmt.Errorf("%w: %s", ierr.ErrConflict, ierr.ErrEmailTaken)
		}
		s.logger.Error("Failed to create user", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("repository error creating user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", created.ID), zap.String("email", created.Email))
	return created.Sanitized(), nil
}

// VerifyCredentials authenticates an email/password pair. Failures are
// uniform: the caller cannot tell whether the email or the password
// was wrong.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.logger.Info("Login attempt for unknown email", zap.String("email", email))
			return nil, ierr.ErrInvalidCredentials
		}
		s.logger.Error("Failed to look up user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("repository error finding user: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		s.logger.Info("Login attempt with wrong password", zap.Int64("user_id", u.ID))
		return nil, ierr.ErrInvalidCredentials
	}

	return u.Sanitized(), nil
}

func (s *AuthService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ierr.ErrNotFound
		}
		s.logger.Error("Failed to delete user", zap.Int64("user_id", id), zap.Error(err))
		return fmt.Errorf("repository error deleting user: %w", err)
	}
	s.logger.Info("User deleted", zap.Int64("user_id", id))
	return nil
}
