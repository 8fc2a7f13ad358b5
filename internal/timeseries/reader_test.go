package timeseries

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietair/aqi-crawler/internal/clock"
)

func writeCSV(t *testing.T, root, slug, name string, rows []string) {
	t.Helper()
	dir := filepath.Join(root, slug)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := strings.Join(Header, ",") + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func row(ts time.Time, cityName string, aqi int) string {
	return fmt.Sprintf("%s,%s,%d,/dl/web/weather/ic-weather-01d.svg,6 km/h,70%%",
		ts.Format(time.RFC3339), cityName, aqi)
}

func TestLoadAll(t *testing.T) {
	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, clock.Vietnam())
	root := t.TempDir()
	writeCSV(t, root, "hanoi", "aqi_hanoi_2025_jun.csv", []string{
		row(base, "Hà Nội", 42),
		row(base.Add(24*time.Hour), "Hà Nội", 55),
	})
	writeCSV(t, root, "hue", "aqi_hue_2025_jun.csv", []string{
		row(base.Add(time.Hour), "Huế", 61),
	})

	points, err := LoadAll(root)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 42.0, points[0].AQI)
	assert.Equal(t, "Hà Nội", points[0].City)
	assert.True(t, points[0].Time.Equal(base))
}

func TestLoadAllMalformedFileAborts(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, root, "hanoi", "aqi_hanoi_2025_jun.csv", []string{
		"not-a-timestamp,Hà Nội,42,icon,6 km/h,70%",
	})

	_, err := LoadAll(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse timestamp")
}

func TestLoadAllIgnoresNonCSV(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("notes"), 0o600))

	points, err := LoadAll(root)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestWindow(t *testing.T) {
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, clock.Vietnam())

	// 60 days of readings for one city, plus a second city that went
	// quiet 40 days before the global max.
	var points []Point
	for day := 0; day < 60; day++ {
		points = append(points, Point{Time: base.AddDate(0, 0, day), City: "Hà Nội", AQI: float64(day)})
	}
	points = append(points, Point{Time: base.AddDate(0, 0, 19), City: "Huế", AQI: 80})

	windowed := Window(points, 30*24*time.Hour)

	maxTS := base.AddDate(0, 0, 59)
	cutoff := maxTS.AddDate(0, 0, -30)
	for _, p := range windowed {
		assert.False(t, p.Time.Before(cutoff), "point at %s predates cutoff %s", p.Time, cutoff)
	}
	// Days 29..59 inclusive survive for the active city; the stale city
	// is dropped entirely.
	assert.Len(t, windowed, 31)
	assert.Equal(t, []string{"Huế"}, CitiesOutside(points, windowed))
}

func TestWindowEmpty(t *testing.T) {
	assert.Nil(t, Window(nil, 30*24*time.Hour))
}
