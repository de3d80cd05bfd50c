package main

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/invoicing/backend/internal/infrastructure/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/tasks"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var sweepCmd = &cobra.Command{
	Use:   "sweep-overdue",
	Short: "Mark past-due invoices as overdue for every tenant",
	Long: `sweep-overdue moves sent and partially paid invoices whose due date is
before the given day to overdue. By default the sweep runs in this process;
with --enqueue it is handed to the worker queue instead.`,
	Example: `  # Sweep as of today
  worker sweep-overdue

  # Sweep as of a given day through the queue
  worker sweep-overdue --as-of 2026-03-31 --enqueue`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().String("as-of", "", "Reference day (format: YYYY-MM-DD, default: today)")
	sweepCmd.Flags().Bool("enqueue", false, "Queue the sweep for the worker instead of running it here")
}

func runSweep(cmd *cobra.Command, args []string) error {
	asOfStr, _ := cmd.Flags().GetString("as-of")
	enqueue, _ := cmd.Flags().GetBool("enqueue")

	asOf, err := parseDay(asOfStr, time.Now())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if enqueue {
		task, err := tasks.NewOverdueSweepTask(asOf)
		if err != nil {
			return err
		}
		client := asynq.NewClient(tasks.RedisConnOpt(cfg.Redis))
		defer func() { _ = client.Close() }()
		info, err := client.EnqueueContext(ctx, task, asynq.Queue(tasks.QueueLow))
		if err != nil {
			return fmt.Errorf("enqueue overdue sweep: %w", err)
		}
		log.Info("Overdue sweep enqueued",
			zap.String("task_id", info.ID),
			zap.String("as_of", asOf.Format(dateLayout)),
		)
		return nil
	}

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

	billing, err := bootstrap.NewBilling(ctx, cfg, db, tel, log, nil)
	if err != nil {
		return err
	}
	if err := billing.Start(ctx); err != nil {
		return err
	}
	defer cleanup("billing", billing.Close)

	count, err := billing.Invoices.MarkOverdueAllTenants(ctx, asOf)
	if err != nil {
		return err
	}
	log.Info("Overdue sweep finished",
		zap.String("as_of", asOf.Format(dateLayout)),
		zap.Int("invoices", count),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue as of %s\n", count, asOf.Format(dateLayout))
	return nil
}

// parseDay reads a YYYY-MM-DD flag value, defaulting to the UTC day of now
func parseDay(value string, now time.Time) (time.Time, error) {
	if value == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", value, err)
	}
	return day, nil
}
