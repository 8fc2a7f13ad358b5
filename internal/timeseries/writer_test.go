package timeseries

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/clock"
	"github.com/vietair/aqi-crawler/internal/validate"
)

func testReading(ts string) validate.Reading {
	return validate.Reading{
		Timestamp:   ts,
		City:        "Hà Nội",
		AQI:         "152",
		WeatherIcon: "/dl/web/weather/ic-weather-02d.svg",
		WindSpeed:   "12.4 km/h",
		Humidity:    "78%",
	}
}

func TestNewWriter(t *testing.T) {
	t.Run("creates root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "result")
		_, err := NewWriter(root, clock.System{}, zap.NewNop())
		require.NoError(t, err)
		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
	t.Run("empty root rejected", func(t *testing.T) {
		_, err := NewWriter("  ", clock.System{}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestAppend(t *testing.T) {
	frozen := time.Date(2025, time.June, 5, 9, 30, 0, 0, clock.Vietnam())
	root := t.TempDir()
	w, err := NewWriter(root, clock.Fixed{T: frozen}, zap.NewNop())
	require.NoError(t, err)

	t.Run("path encodes slug year and month", func(t *testing.T) {
		path, err := w.Append(testReading("2025-06-05T09:30:00+07:00"), "hanoi")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "hanoi", "aqi_hanoi_2025_jun.csv"), path)
	})

	t.Run("header written once and rows appended in order", func(t *testing.T) {
		path, err := w.Append(testReading("2025-06-05T10:30:00+07:00"), "hanoi")
		require.NoError(t, err)
		_, err = w.Append(testReading("2025-06-05T11:30:00+07:00"), "hanoi")
		require.NoError(t, err)

		data, err := os.ReadFile(path) // #nosec G304 -- temp dir path built by the test.
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		require.Len(t, lines, 4, "one header plus three data rows")
		assert.Equal(t, strings.Join(Header, ","), lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "2025-06-05T09:30:00+07:00,"))
		assert.True(t, strings.HasPrefix(lines[2], "2025-06-05T10:30:00+07:00,"))
		assert.True(t, strings.HasPrefix(lines[3], "2025-06-05T11:30:00+07:00,"))
	})

	t.Run("empty slug rejected", func(t *testing.T) {
		_, err := w.Append(testReading("2025-06-05T09:30:00+07:00"), "")
		assert.Error(t, err)
	})
}

func TestAppendExistingFileKeepsHeader(t *testing.T) {
	frozen := time.Date(2025, time.June, 5, 9, 30, 0, 0, clock.Vietnam())
	root := t.TempDir()

	// Seed a file with a header and two rows, as if written by earlier runs.
	dir := filepath.Join(root, "da-nang")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	seed := strings.Join(Header, ",") + "\n" +
		"2025-06-01T08:00:00+07:00,Đà Nẵng,42,/dl/web/weather/ic-weather-01d.svg,6 km/h,70%\n" +
		"2025-06-02T08:00:00+07:00,Đà Nẵng,55,/dl/web/weather/ic-weather-01d.svg,7 km/h,65%\n"
	path := filepath.Join(dir, "aqi_da-nang_2025_jun.csv")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	w, err := NewWriter(root, clock.Fixed{T: frozen}, zap.NewNop())
	require.NoError(t, err)

	reading := testReading("2025-06-05T09:30:00+07:00")
	reading.City = "Đà Nẵng"
	gotPath, err := w.Append(reading, "da-nang")
	require.NoError(t, err)
	assert.Equal(t, path, gotPath)

	data, err := os.ReadFile(path) // #nosec G304 -- temp dir path built by the test.
	require.NoError(t, err)
	content := string(data)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	assert.Len(t, lines, 4, "exactly one header line and three data lines")
	assert.Equal(t, 1, strings.Count(content, "timestamp,city,aqi"))
}
