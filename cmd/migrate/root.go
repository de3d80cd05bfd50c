package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/invoicing/backend/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var log *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the invoicing database schema",
	Long: `migrate applies the SQL migrations of the invoicing service. The schema
compiled into the binary is used unless --path points at a directory.

The connection is configured through the database section of config.toml
or INVOICING_DATABASE_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		var err error
		log, err = logger.New(&logger.Config{
			Level:      level,
			Format:     "console",
			Output:     "stdout",
			TimeFormat: "2006-01-02 15:04:05",
			Service:    "invoicing-migrate",
		})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("Migration command failed", zap.Error(err))
			_ = log.Sync()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("path", "", "Read migrations from this directory instead of the embedded schema")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

// source returns the migration files selected by --path
func source(cmd *cobra.Command) (fs.FS, string, error) {
	dir, _ := cmd.Flags().GetString("path")
	if dir == "" {
		return migrations.FS, "embedded", nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, "", fmt.Errorf("migrations path: %w", err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("migrations path %s is not a directory", dir)
	}
	return os.DirFS(dir), dir, nil
}

// withMigrator opens the database, builds a Migrator and runs fn with it
func withMigrator(cmd *cobra.Command, fn func(m *migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	src, name, err := source(cmd)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(cmd.Context()); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, src, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	log.Info("Migration source",
		zap.String("source", name),
		zap.String("command", cmd.Name()),
	)
	return fn(m)
}
