package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/jobboard-api/internal/config"
	"github.com/jwalitptl/jobboard-api/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jobboard-api",
	Short: "Job board application lifecycle and notification service",
	Long: `jobboard-api runs the application lifecycle API and pushes
notifications to connected users over websockets.

Available commands:
  serve    - Start the HTTP and websocket server
  migrate  - Create the database schema
  token    - Issue an access token for local testing`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config/config.yaml when present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	l := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.Logger = l
	return cfg, l, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
