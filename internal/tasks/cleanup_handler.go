package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/credential-service-api/internal/domain/apikey"
	"go.uber.org/zap"
)

// APIKeyCleanupHandler processes deferred cleanup tasks. Errors never
// reach the request that triggered the rotation; asynq logs and
// retries them here.
type APIKeyCleanupHandler struct {
	repo   apikey.Repository
	logger *zap.Logger
}

func NewAPIKeyCleanupHandler(repo apikey.Repository, logger *zap.Logger) *APIKeyCleanupHandler {
	return &APIKeyCleanupHandler{
		repo:   repo,
		logger: logger.Named("APIKeyCleanupHandler"),
	}
}

func (h *APIKeyCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeAPIKeyCleanup {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p APIKeyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal cleanup payload", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	removed, err := h.repo.DeleteSuperseded(ctx, p.UserID)
	if err != nil {
		h.logger.Error("Failed to remove superseded api keys",
			zap.Int64("user_id", p.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("repository error removing superseded keys: %w", err)
	}

	h.logger.Info("Superseded api keys removed",
		zap.Int64("user_id", p.UserID),
		zap.Int64("removed", removed),
	)
	return nil
}

// APIKeySweepHandler is the safety net for cleanups that never ran:
// it removes superseded keys for users whose newest key is already
// older than the grace period, so open grace windows stay untouched.
type APIKeySweepHandler struct {
	repo   apikey.Repository
	grace  time.Duration
	logger *zap.Logger
}

func NewAPIKeySweepHandler(repo apikey.Repository, grace time.Duration, logger *zap.Logger) *APIKeySweepHandler {
	return &APIKeySweepHandler{
		repo:   repo,
		grace:  grace,
		logger: logger.Named("APIKeySweepHandler"),
	}
}

func (h *APIKeySweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeAPIKeySweep {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	cutoff := time.Now().UTC().Add(-h.grace)
	users, err := h.repo.ListUsersWithSuperseded(ctx, cutoff)
	if err != nil {
		h.logger.Error("Failed to list users with superseded keys", zap.Error(err))
		return fmt.Errorf("repository error listing users for sweep: %w", err)
	}

	if len(users) == 0 {
		h.logger.Debug("Sweep found no superseded api keys")
		return nil
	}

	swept := 0
	for _, userID := range users {
		removed, err := h.repo.DeleteSuperseded(ctx, userID)
		if err != nil {
			// Keep sweeping the rest; the next run picks this user up
			// again.
			h.logger.Error("Sweep failed for user", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		swept += int(removed)
	}

	h.logger.Info("API key sweep finished", zap.Int("users", len(users)), zap.Int("removed", swept))
	return nil
}
