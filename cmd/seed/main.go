package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/repository"
)

var (
	configPath   string
	fixturesPath string
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture records into the record store",
	Long: `Loads organization settings and collection records from a YAML fixture
file. Records whose name already exists in their collection are skipped, so
the command can be run repeatedly. Without --file the bundled fixtures are
used.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("configuration loading failed: %w", err)
		}
		logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

		fx, err := loadFixtures(fixturesPath)
		if err != nil {
			return err
		}

		store, err := repository.Open(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		report, err := fx.Apply(ctx, store, logger)
		if err != nil {
			return err
		}
		logger.Info("Seeding complete",
			"created", report.Created,
			"skipped", report.Skipped,
			"settings", report.Settings,
		)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yaml)")
	rootCmd.Flags().StringVarP(&fixturesPath, "file", "f", "", "Path to a YAML fixture file (default: bundled fixtures)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
