package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mail-agent/backend/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply record store migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := repository.Open(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Migrations applied", "driver", cfg.DB.Driver)
		return nil
	},
}
