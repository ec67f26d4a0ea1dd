package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/onevoice/ivr/backend/internal/config"
	"github.com/onevoice/ivr/backend/internal/handler/status"
	"github.com/onevoice/ivr/backend/internal/logging"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "onevoice",
		Short: "Telephone voice assistant for dental and agricultural callers",
		Long: strings.TrimSpace(`onevoice answers Twilio voice webhooks, routes callers through a
language menu into a persona-driven conversation and keeps a call log
with daily satisfaction statistics.`),
		Version:       status.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	serveCmd := newServeCommand()
	// bare `onevoice` runs the server
	root.RunE = serveCmd.RunE
	root.AddCommand(serveCmd)
	root.AddCommand(newStatsCommand())
	return root
}

// loadConfig reads .env if present, then the environment, and initializes logging.
func loadConfig() (*config.Config, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}
	return cfg, nil
}
