// Package timeseries persists readings as append-only per-city-per-month
// CSV files and reads them back for chart rendering.
package timeseries

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/clock"
	"github.com/vietair/aqi-crawler/internal/validate"
)

// Header is the fixed CSV column set. Column order is the file format
// contract; downstream consumers parse by position.
var Header = []string{"timestamp", "city", "aqi", "weather_icon", "wind_speed", "humidity"}

// Writer appends validated readings to per-city-per-month CSV files under
// a root directory. Files are created with a header row and never
// rewritten. Writes are not synchronized: the crawl loop is strictly
// sequential, so at most one writer touches a file at a time.
type Writer struct {
	root   string
	clk    clock.Clock
	logger *zap.Logger
}

// NewWriter creates the root directory if needed and returns a Writer.
func NewWriter(root string, clk clock.Clock, logger *zap.Logger) (*Writer, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("result root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create result root %s: %w", root, err)
	}
	return &Writer{root: root, clk: clk, logger: logger}, nil
}

// Append writes one reading to the city's file for the current month,
// creating the file with a header first when absent. It returns the file
// path for the logs.
func (w *Writer) Append(reading validate.Reading, slug string) (string, error) {
	if strings.TrimSpace(slug) == "" {
		return "", fmt.Errorf("city slug is required")
	}

	path := w.filePath(slug)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create city dir for %s: %w", path, err)
	}

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(Header); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write header to %s: %w", path, err)
		}
	}
	if err := cw.Write(reading.Row()); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write row to %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	w.logger.Debug("reading appended",
		zap.String("path", path),
		zap.String("city", reading.City),
		zap.Bool("created", writeHeader),
	)
	return path, nil
}

// filePath computes result/<slug>/aqi_<slug>_<year>_<mon>.csv from the
// clock's current Vietnam time.
func (w *Writer) filePath(slug string) string {
	now := w.clk.Now()
	name := fmt.Sprintf("aqi_%s_%d_%s.csv", slug, now.Year(), strings.ToLower(now.Format("Jan")))
	return filepath.Join(w.root, slug, name)
}
