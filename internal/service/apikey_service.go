package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/makkenzo/credential-service-api/internal/domain/apikey"
	"github.com/makkenzo/credential-service-api/internal/domain/user"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/makkenzo/credential-service-api/internal/security"
	"go.uber.org/zap"
)

// CleanupScheduler schedules the deferred removal of superseded keys
// after a rotation grace period. The production implementation
// enqueues a durable asynq task; tests substitute a fake.
type CleanupScheduler interface {
	ScheduleCleanup(ctx context.Context, userID int64, delay time.Duration) error
}

// APIKeyService is the key lifecycle manager: the only component that
// writes to the api key store.
type APIKeyService struct {
	keyRepo      apikey.Repository
	userRepo     user.Repository
	auth         *AuthService
	keygen       *security.KeyGenerator
	scheduler    CleanupScheduler
	defaultGrace time.Duration
	logger       *zap.Logger
}

func NewAPIKeyService(
	keyRepo apikey.Repository,
	userRepo user.Repository,
	auth *AuthService,
	keygen *security.KeyGenerator,
	scheduler CleanupScheduler,
	defaultGrace time.Duration,
	logger *zap.Logger,
) *APIKeyService {
	if defaultGrace <= 0 {
		defaultGrace = 5 * time.Minute
	}
	return &APIKeyService{
		keyRepo:      keyRepo,
		userRepo:     userRepo,
		auth:         auth,
		keygen:       keygen,
		scheduler:    scheduler,
		defaultGrace: defaultGrace,
		logger:       logger.Named("APIKeyService"),
	}
}

// IssueOrFetch returns the user's api key, creating one on first call.
// First-write-wins: an existing key is never overwritten, and repeat
// calls cause no writes.
func (s *APIKeyService) IssueOrFetch(ctx context.Context, userID int64) (string, error) {
	existing, err := s.keyRepo.FindByUser(ctx, userID)
	if err == nil {
		return existing.Key, nil
	}
	if !errors.Is(err, apikey.ErrAPIKeyNotFound) {
		s.logger.Error("Failed to look up api key", zap.Int64("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("repository error finding api key: %w", err)
	}

	owner, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", fmt.Errorf("%w: user %d", ierr.ErrNotFound, userID)
		}
		s.logger.Error("Failed to look up user for key issuance", zap.Int64("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("repository error finding user: %w", err)
	}

	generated := s.keygen.Generate(owner.Email)

	inserted, won, err := s.keyRepo.InsertIfAbsent(ctx, userID, generated)
	if err != nil {
		s.logger.Error("Failed to save generated api key", zap.Int64("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("repository error saving api key: %w", err)
	}
	if !won {
		// Lost a concurrent first-issuance race; the winner's key is
		// the one that stands.
		s.logger.Debug("Concurrent issuance detected, returning existing key", zap.Int64("user_id", userID))
		return inserted.Key, nil
	}

	s.logger.Info("API key issued", zap.Int64("user_id", userID), zap.Int64("key_id", inserted.ID))
	return inserted.Key, nil
}

// Verify resolves a presented bearer key to its owning user. Unknown
// keys fail with ErrUnauthorized; a key whose owner row is missing is
// a data-integrity anomaly and fails with ErrNotFound. Read-only.
func (s *APIKeyService) Verify(ctx context.Context, key string) (*user.User, error) {
	record, err := s.keyRepo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, apikey.ErrAPIKeyNotFound) {
			return nil, ierr.ErrUnauthorized
		}
		s.logger.Error("Failed to look up api key record", zap.Error(err))
		return nil, fmt.Errorf("repository error finding api key: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(key), []byte(record.Key)) != 1 {
		return nil, ierr.ErrUnauthorized
	}

	owner, err := s.userRepo.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.logger.Warn("API key references a missing user",
				zap.Int64("key_id", record.ID),
				zap.Int64("user_id", record.UserID),
			)
			return nil, fmt.Errorf("%w: user %d", ierr.ErrNotFound, record.UserID)
		}
		s.logger.Error("Failed to look up api key owner", zap.Int64("user_id", record.UserID), zap.Error(err))
		return nil, fmt.Errorf("repository error finding user: %w", err)
	}

	return owner.Sanitized(), nil
}

// Rotate re-authenticates the account, issues a brand-new key and
// schedules removal of the superseded one(s) after the grace period.
// The old key keeps verifying until the cleanup task runs; the caller
// gets the new key immediately without waiting for it.
func (s *APIKeyService) Rotate(ctx context.Context, email, password string, grace time.Duration) (string, error) {
	owner, err := s.auth.VerifyCredentials(ctx, email, password)
	if err != nil {
		return "", err
	}

	generated := s.keygen.Generate(owner.Email)

	inserted, err := s.keyRepo.Insert(ctx, owner.ID, generated)
	if err != nil {
		s.logger.Error("Failed to save rotated api key", zap.Int64("user_id", owner.ID), zap.Error(err))
		return "", fmt.Errorf("repository error saving rotated api key: %w", err)
	}

	if grace < 0 {
		grace = s.defaultGrace
	}

	if err := s.scheduler.ScheduleCleanup(ctx, owner.ID, grace); err != nil {
		// The new key is already live; the periodic sweep will pick up
		// the leftovers if the enqueue failed.
		s.logger.Error("Failed to schedule key cleanup",
			zap.Int64("user_id", owner.ID),
			zap.Duration("grace", grace),
			zap.Error(err),
		)
	}

	s.logger.Info("API key rotated",
		zap.Int64("user_id", owner.ID),
		zap.Int64("key_id", inserted.ID),
		zap.Duration("grace", grace),
	)
	return inserted.Key, nil
}

// DefaultGracePeriod exposes the configured rotation grace window.
func (s *APIKeyService) DefaultGracePeriod() time.Duration {
	return s.defaultGrace
}
