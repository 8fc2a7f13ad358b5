// Package cmd defines the CLI commands for the aqicrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/config"
	"github.com/vietair/aqi-crawler/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aqicrawler",
		Short: "Scrapes AQI and weather readings for Vietnamese cities.",
		Long: `aqicrawler extracts air-quality and weather readings for a fixed
list of Vietnamese cities from IQAir city pages, validates each field,
and appends accepted records to per-city monthly CSV files. A separate
chart command renders 30-day trend images from the accumulated history.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	cmd.AddCommand(newCrawlCmd(), newChartCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger; shared by both
// commands.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
