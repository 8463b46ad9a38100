package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeAPIKeyCleanup = "apikey:cleanup"
	TypeAPIKeySweep   = "apikey:sweep"
)

type APIKeyCleanupPayload struct {
	UserID int64 `json:"user_id"`
}

// NewAPIKeyCleanupTask builds the deferred task that removes the
// user's superseded keys once the rotation grace period has elapsed.
// The delay rides on the task itself via ProcessIn, so a pending
// cleanup survives process restarts in Redis.
func NewAPIKeyCleanupTask(userID int64, delay time.Duration, opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(APIKeyCleanupPayload{UserID: userID})
	if err != nil {
		return nil, err
	}

	allOpts := append(opts, asynq.ProcessIn(delay), asynq.MaxRetry(5))

	return asynq.NewTask(TypeAPIKeyCleanup, payloadBytes, allOpts...), nil
}

type APIKeySweepPayload struct{}

// NewAPIKeySweepTask builds the periodic safety-net task that catches
// superseded keys whose cleanup never ran (enqueue failure, Redis
// loss mid-wait).
func NewAPIKeySweepTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(APIKeySweepPayload{})
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(10 * time.Minute)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeAPIKeySweep, payloadBytes, allOpts...), nil
}
