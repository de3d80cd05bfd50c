package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/infrastructure/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/email"
	"github.com/invoicing/backend/internal/infrastructure/tasks"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cleanupTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process queued tasks until interrupted",
	Long: `run starts the asynq server for invoice email delivery and overdue
sweeps. When worker.overdue_sweep_cron is set the periodic sweep is
scheduled from this process as well.`,
	Example: `  # Start the worker with the configured queues
  worker run

  # Run without registering the periodic sweep
  worker run --no-scheduler`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-scheduler", false, "Do not register the periodic overdue sweep")
}

func runWorker(cmd *cobra.Command, args []string) error {
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := bootstrap.NewTelemetry(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer cleanup("telemetry", tel.Shutdown)

	db, dbMetrics, err := bootstrap.OpenDatabase(ctx, cfg, tel, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// The worker is the consumer of the mail queue, so it never enqueues
	billing, err := bootstrap.NewBilling(ctx, cfg, db, tel, log, nil)
	if err != nil {
		return err
	}
	if err := billing.Start(ctx); err != nil {
		return err
	}
	defer cleanup("billing", billing.Close)

	mailer := appbilling.NewInvoiceMailer(
		billing.Scope,
		email.NewInvoiceSender(email.NewSender(cfg.Email, log), cfg.Email),
		billing.Store,
		cfg.Event.IdempotencyTTL,
		billing.Metrics,
		log.Named("mailer"),
	)
	processor := tasks.NewProcessor(mailer, billing.Invoices, log.Named("tasks"))

	redisOpt := tasks.RedisConnOpt(cfg.Redis)
	srv := tasks.NewServer(redisOpt, cfg.Worker, log)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	var scheduler *asynq.Scheduler
	if cfg.Worker.OverdueSweepCron != "" && !noScheduler {
		scheduler, err = tasks.NewScheduler(redisOpt, cfg.Worker.OverdueSweepCron, log)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Shutdown()
	}

	if err := srv.Start(mux); err != nil {
		return err
	}
	log.Info("Worker started",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.Any("queues", cfg.Worker.Queues),
		zap.Bool("scheduler", scheduler != nil),
	)

	<-ctx.Done()
	log.Info("Shutting down worker")
	srv.Shutdown()
	return nil
}

func cleanup(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("Cleanup failed", zap.String("component", name), zap.Error(err))
	}
}
