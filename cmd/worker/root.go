package main

import (
	"fmt"
	"os"

	"github.com/invoicing/backend/internal/infrastructure/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "invoicing-worker"

var version = "1.0.0"

// Populated by the root PersistentPreRunE before any subcommand runs
var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Background jobs and operator commands for the invoicing service",
	Long: `worker processes the asynq queues of the invoicing service and offers
one-off commands for operators.

Configuration is read from config.toml, .env and INVOICING_* environment
variables, the same sources the API server uses.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		log, err = bootstrap.NewLogger(cfg, serviceName)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("Command execution failed", zap.Error(err))
			_ = log.Sync()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
}
