package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/credential-service-api/internal/config"
	"github.com/makkenzo/credential-service-api/internal/domain/apikey"
	"github.com/makkenzo/credential-service-api/internal/tasks"
	"go.uber.org/zap"
)

// RunWorkers runs the asynq server that executes deferred key
// cleanups plus the periodic sweep scheduler. It blocks until ctx is
// canceled. The worker holds its own repository handle; nothing here
// touches request-scoped state.
func RunWorkers(ctx context.Context, cfg *config.Config, keyRepo apikey.Repository, logger *zap.Logger) error {
	redisConnOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.Named("AsynqServerErrorHandler")
				log.Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	mux := asynq.NewServeMux()

	cleanupHandler := tasks.NewAPIKeyCleanupHandler(keyRepo, logger)
	mux.HandleFunc(tasks.TypeAPIKeyCleanup, cleanupHandler.ProcessTask)

	sweepHandler := tasks.NewAPIKeySweepHandler(keyRepo, cfg.APIKey.GracePeriod, logger)
	mux.HandleFunc(tasks.TypeAPIKeySweep, sweepHandler.ProcessTask)

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	sweepTask, err := tasks.NewAPIKeySweepTask()
	if err != nil {
		return fmt.Errorf("building sweep task for scheduler: %w", err)
	}

	entryID, err := scheduler.Register("@every 10m", sweepTask)
	if err != nil {
		return fmt.Errorf("registering periodic sweep: %w", err)
	}
	logger.Info("Registered periodic api key sweep", zap.String("entry_id", entryID), zap.String("schedule", "@every 10m"))

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting Asynq Server...")
		if err := srv.Run(mux); err != nil {
			errChan <- fmt.Errorf("asynq server error: %w", err)
		}
	}()

	go func() {
		logger.Info("Starting Asynq Scheduler...")
		if err := scheduler.Run(); err != nil {
			errChan <- fmt.Errorf("asynq scheduler error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down Asynq Scheduler...")
		scheduler.Shutdown()
		logger.Info("Shutting down Asynq Server...")
		srv.Shutdown()
		return nil
	case err := <-errChan:
		scheduler.Shutdown()
		srv.Shutdown()
		return err
	}
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) *asynqLoggerAdapter {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
