package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewServer creates the asynq worker server. Handlers are attached by the
// caller with Processor.Register.
func NewServer(redis asynq.RedisConnOpt, cfg config.WorkerConfig, logger *zap.Logger) *asynq.Server {
	taskLogger := logger.Named("asynq")
	return asynq.NewServer(redis, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          cfg.Queues,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          taskLogger.Sugar(),
		LogLevel:        asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retry, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			taskLogger.Error("task failed",
				zap.String("task_type", task.Type()),
				zap.Int("retry", retry),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})
}

// NewScheduler creates the periodic task scheduler with the overdue sweep
// registered on cronspec.
func NewScheduler(redis asynq.RedisConnOpt, cronspec string, logger *zap.Logger) (*asynq.Scheduler, error) {
	schedLogger := logger.Named("asynq.scheduler")
	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Logger:   schedLogger.Sugar(),
		LogLevel: asynq.WarnLevel,
		EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
			schedLogger.Error("failed to enqueue periodic task",
				zap.String("task_type", task.Type()),
				zap.Error(err),
			)
		},
	})

	task := asynq.NewTask(TypeOverdueSweep, nil)
	entryID, err := scheduler.Register(cronspec, task, asynq.Queue(QueueLow), asynq.MaxRetry(3))
	if err != nil {
		return nil, fmt.Errorf("register overdue sweep %q: %w", cronspec, err)
	}
	schedLogger.Info("overdue sweep scheduled",
		zap.String("cron", cronspec),
		zap.String("entry_id", entryID),
	)
	return scheduler, nil
}
