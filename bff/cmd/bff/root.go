package main

import (
	"github.com/spf13/cobra"

	"github.com/avika-ai/avika-bff/common/config"
	"github.com/avika-ai/avika-bff/common/logging"
)

const serviceName = "avika-bff"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bff",
	Short: "Avika browser gateway",
	Long: `bff is the browser-facing gateway for the Avika agent manager.

It forwards session endpoints to the backend, exposes agent, rule and
report APIs over the backend's gRPC service and relays live analytics
to the dashboard as server-sent events.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/avika/bff/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig loads configuration and installs the process logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service(serviceName))
	logging.SetDefault(logger)
	return cfg, logger, nil
}
