// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourusername/paper-tasks/internal/config"
	"github.com/yourusername/paper-tasks/internal/database"
	"github.com/yourusername/paper-tasks/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paper-tasks",
		Short:         "PDF task API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server and cleanup workers",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update tables and seed enumerations",
			RunE:  runMigrate,
		},
	)
	return root
}

// bootstrap は設定、ロガー、データベース接続を用意します。
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.GinMode, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}
	db, err := database.Open(cfg.DatabaseDSN)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	_, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.Seed(db, logger); err != nil {
		return err
	}
	logger.Info("migrations complete")
	return nil
}
