package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/archive"
	"github.com/vietair/aqi-crawler/internal/chart"
	"github.com/vietair/aqi-crawler/internal/clock"
	"github.com/vietair/aqi-crawler/internal/timeseries"
)

// newChartCmd creates the 'chart' subcommand: the offline rendering
// stage, decoupled from crawling.
func newChartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chart",
		Short: "Renders per-city AQI trend charts from accumulated readings",
		Long: `Reads every per-city CSV file under the result directory, filters
to the trailing window measured from the newest timestamp across the
whole dataset, and writes one trend image per city. With an archive
bucket configured, the images are uploaded after rendering.`,
		RunE: runChartCommand,
	}
}

func runChartCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	points, err := timeseries.LoadAll(cfg.Output.ResultDir)
	if err != nil {
		return fmt.Errorf("load readings: %w", err)
	}
	if len(points) == 0 {
		logger.Warn("no readings found, nothing to render",
			zap.String("result_dir", cfg.Output.ResultDir),
		)
		return nil
	}

	renderer, err := chart.NewRenderer(cfg.Output.ChartDir, cfg.Output.WindowDays, logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	paths, err := renderer.RenderAll(points)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	logger.Info("charts rendered", zap.Int("count", len(paths)))

	if cfg.Archive.Bucket == "" {
		return nil
	}
	uploader, err := archive.New(cmd.Context(), cfg.Archive.Bucket, cfg.Archive.Prefix, logger)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}
	defer func() {
		if cerr := uploader.Close(); cerr != nil {
			logger.Warn("close archive client", zap.Error(cerr))
		}
	}()

	artifacts := append(paths, currentMonthCSVs(cfg.Output.ResultDir, clock.System{}.Now())...)
	if err := uploader.UploadFiles(cmd.Context(), artifacts); err != nil {
		return fmt.Errorf("upload artifacts: %w", err)
	}
	return nil
}

// currentMonthCSVs lists this month's per-city CSV files so the archive
// carries the data behind the charts, not just the images.
func currentMonthCSVs(resultDir string, now time.Time) []string {
	pattern := filepath.Join(resultDir, "*",
		fmt.Sprintf("aqi_*_%d_%s.csv", now.Year(), strings.ToLower(now.Format("Jan"))))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	return matches
}
