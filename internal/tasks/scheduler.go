package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqScheduler enqueues durable cleanup tasks. It satisfies
// service.CleanupScheduler.
type AsynqScheduler struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewAsynqScheduler(redisOpts asynq.RedisClientOpt, logger *zap.Logger) *AsynqScheduler {
	return &AsynqScheduler{
		client: asynq.NewClient(redisOpts),
		logger: logger.Named("AsynqScheduler"),
	}
}

func (s *AsynqScheduler) ScheduleCleanup(ctx context.Context, userID int64, delay time.Duration) error {
	task, err := NewAPIKeyCleanupTask(userID, delay)
	if err != nil {
		return fmt.Errorf("building cleanup task: %w", err)
	}

	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueueing cleanup task: %w", err)
	}

	s.logger.Info("Key cleanup scheduled",
		zap.Int64("user_id", userID),
		zap.Duration("delay", delay),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

func (s *AsynqScheduler) Close() error {
	return s.client.Close()
}
