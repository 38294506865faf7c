package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bidconnect/notification-service/internal/config"
	"github.com/bidconnect/notification-service/internal/db"
	"github.com/bidconnect/notification-service/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer log.Sync() //nolint:errcheck

	if err := db.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info("database migrations applied", zap.String("source", cfg.MigrationsPath))
	return nil
}
