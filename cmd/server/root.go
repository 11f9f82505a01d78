package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Mail agent orchestration service",
	Long: `Runs the mail agent HTTP and MCP surface: prompt processing, intern
onboarding, record access, mail delivery and account provisioning.

Configuration is read from config.yaml (or --config) and MAILAGENT_*
environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads the configuration and builds the logger it describes.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}
