package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietair/aqi-crawler/internal/city"
	"github.com/vietair/aqi-crawler/internal/clock"
	"github.com/vietair/aqi-crawler/internal/scrape"
)

func TestAQI(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		invalid bool
	}{
		{name: "plain", raw: "152", want: "152"},
		{name: "zero", raw: "0", want: "0"},
		{name: "upper bound", raw: "500", want: "500"},
		{name: "surrounded by noise", raw: "AQI 87 (US)", want: "87"},
		{name: "trailing unit text survives strip", raw: "42\nUS AQI", want: "42"},
		{name: "above range", raw: "501", invalid: true},
		{name: "no digits", raw: "n/a", invalid: true},
		{name: "empty", raw: "", invalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AQI(tc.raw)
			if tc.invalid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWeatherIcon(t *testing.T) {
	t.Run("old layout", func(t *testing.T) {
		got, err := WeatherIcon("/dl/web/weather/ic-weather-01d.svg")
		require.NoError(t, err)
		assert.Equal(t, "/dl/web/weather/ic-weather-01d.svg", got)
	})
	t.Run("new layout", func(t *testing.T) {
		_, err := WeatherIcon("/dl/assets/weather/ic-weather-10n.svg")
		assert.NoError(t, err)
	})
	t.Run("foreign path", func(t *testing.T) {
		_, err := WeatherIcon("/static/img/logo.svg")
		assert.Error(t, err)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := WeatherIcon("")
		assert.Error(t, err)
	})
}

func TestWindSpeed(t *testing.T) {
	t.Run("mph converts", func(t *testing.T) {
		got, err := WindSpeed("8.5 mph")
		require.NoError(t, err)
		assert.Equal(t, "13.7 km/h", got)
	})
	t.Run("kmh unchanged", func(t *testing.T) {
		got, err := WindSpeed("10.2 km/h")
		require.NoError(t, err)
		assert.Equal(t, "10.2 km/h", got)
	})
	t.Run("integer kmh", func(t *testing.T) {
		got, err := WindSpeed(" 7 km/h ")
		require.NoError(t, err)
		assert.Equal(t, "7 km/h", got)
	})
	t.Run("unitless rejected", func(t *testing.T) {
		_, err := WindSpeed("12.4")
		assert.Error(t, err)
	})
	t.Run("trailing text rejected", func(t *testing.T) {
		_, err := WindSpeed("10 km/h gusting")
		assert.Error(t, err)
	})
}

func TestHumidity(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := Humidity("95%")
		require.NoError(t, err)
		assert.Equal(t, "95%", got)
	})
	t.Run("padded", func(t *testing.T) {
		got, err := Humidity(" 40% ")
		require.NoError(t, err)
		assert.Equal(t, "40%", got)
	})
	t.Run("non numeric", func(t *testing.T) {
		_, err := Humidity("abc%")
		assert.Error(t, err)
	})
	t.Run("internal space not accepted here", func(t *testing.T) {
		// The extractor normalizes "95 %" before validation runs.
		_, err := Humidity("95 %")
		assert.Error(t, err)
	})
}

func TestRecord(t *testing.T) {
	hanoi := city.City{Slug: "hanoi", DisplayName: "Hà Nội"}
	now := time.Date(2025, time.June, 5, 9, 30, 0, 0, clock.Vietnam())

	t.Run("all fields valid", func(t *testing.T) {
		raw := scrape.RawReading{
			AQI:       "152",
			IconSrc:   "/dl/web/weather/ic-weather-02d.svg",
			WindSpeed: "8.5 mph",
			Humidity:  "78%",
		}
		reading, err := Record(hanoi, raw, now)
		require.NoError(t, err)
		assert.Equal(t, "2025-06-05T09:30:00+07:00", reading.Timestamp)
		assert.Equal(t, "Hà Nội", reading.City)
		assert.Equal(t, "152", reading.AQI)
		assert.Equal(t, "13.7 km/h", reading.WindSpeed)
		assert.Equal(t, "78%", reading.Humidity)
		assert.Equal(t, []string{
			"2025-06-05T09:30:00+07:00", "Hà Nội", "152",
			"/dl/web/weather/ic-weather-02d.svg", "13.7 km/h", "78%",
		}, reading.Row())
	})

	t.Run("one bad field rejects the whole record", func(t *testing.T) {
		raw := scrape.RawReading{
			AQI:       "152",
			IconSrc:   "/dl/web/weather/ic-weather-02d.svg",
			WindSpeed: "8.5 mph",
			Humidity:  "abc%",
		}
		reading, err := Record(hanoi, raw, now)
		require.Error(t, err)
		assert.Equal(t, Reading{}, reading)

		var rej *RejectionError
		require.True(t, errors.As(err, &rej))
		assert.Equal(t, []string{"humidity"}, rej.FieldNames())
	})

	t.Run("every bad field is reported", func(t *testing.T) {
		_, err := Record(hanoi, scrape.RawReading{}, now)
		var rej *RejectionError
		require.True(t, errors.As(err, &rej))
		assert.Equal(t, []string{"aqi", "weather_icon", "wind_speed", "humidity"}, rej.FieldNames())
		for _, f := range rej.Fields {
			assert.Empty(t, f.Raw)
		}
	})
}
