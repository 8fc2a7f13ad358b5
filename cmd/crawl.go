package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/api"
	"github.com/vietair/aqi-crawler/internal/clock"
	"github.com/vietair/aqi-crawler/internal/fetcher/headless"
	"github.com/vietair/aqi-crawler/internal/pipeline"
	"github.com/vietair/aqi-crawler/internal/probe"
	"github.com/vietair/aqi-crawler/internal/store/postgres"
	"github.com/vietair/aqi-crawler/internal/timeseries"
)

// newCrawlCmd creates the 'crawl' subcommand: one scrape cycle over all
// configured cities, then exit.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one scrape cycle over all configured cities",
		Long: `Fetches each configured city page in a fresh headless browser,
validates the extracted fields, and appends accepted readings to the
per-city monthly CSV files. Cities that fail validation or exhaust their
retries are logged and skipped; they never abort the cycle.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.MetricsAddr != "" {
		shutdown := startMetricsServer(cfg.Server.MetricsAddr, logger)
		defer shutdown()
	}

	clk := clock.System{}
	writer, err := timeseries.NewWriter(cfg.Output.ResultDir, clk, logger)
	if err != nil {
		return fmt.Errorf("init writer: %w", err)
	}

	var mirror pipeline.Recorder
	if cfg.DB.DSN != "" {
		recorder, err := postgres.New(ctx, cfg.DB.DSN, logger)
		if err != nil {
			return fmt.Errorf("init postgres mirror: %w", err)
		}
		defer recorder.Close()
		mirror = recorder
	}

	var preflight pipeline.Preflight
	if cfg.Probe.Enabled {
		preflight = probe.New(probe.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.Probe.Timeout,
		}, logger)
	}

	factory := func() (pipeline.PanelFetcher, error) {
		return headless.NewSession(headless.Config{
			UserAgent:       cfg.Crawler.UserAgent,
			NavTimeout:      cfg.Crawler.NavTimeout,
			SelectorTimeout: cfg.Crawler.SelectorTimeout,
			SettleDelay:     cfg.Crawler.SettleDelay,
		}, logger)
	}

	p := pipeline.New(pipeline.Config{
		MaxAttempts:  cfg.Crawler.MaxAttempts,
		RetryBackoff: cfg.Crawler.RetryBackoff,
		CityQPS:      cfg.Crawler.CityQPS,
	}, factory, preflight, writer, mirror, clk, logger)

	if err := p.Run(ctx, cfg.Cities); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl cycle: %w", err)
	}
	return nil
}

// startMetricsServer serves /metrics for the duration of the cycle and
// returns a shutdown func.
func startMetricsServer(addr string, logger *zap.Logger) func() {
	srv := api.NewServer(addr)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
