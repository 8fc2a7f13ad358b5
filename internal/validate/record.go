package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/vietair/aqi-crawler/internal/city"
	"github.com/vietair/aqi-crawler/internal/scrape"
)

// FieldError reports one field that failed validation, keeping the raw
// value for the logs.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v (raw %q)", e.Field, e.Err, e.Raw)
}

// RejectionError aggregates every failed field of one fetch. It marks a
// data-quality failure: the cycle must not retry, because refetching the
// same markup yields the same fields.
type RejectionError struct {
	Fields []FieldError
}

func (e *RejectionError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "record rejected: " + strings.Join(parts, "; ")
}

// FieldNames lists the offending fields, for log output and metrics.
func (e *RejectionError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// Record validates all four raw fields and assembles a Reading stamped at
// now. It returns a *RejectionError listing every failed field when any
// of them is invalid; the four validators always all run so the log shows
// the full damage at once.
func Record(c city.City, raw scrape.RawReading, now time.Time) (Reading, error) {
	var rejected []FieldError

	aqi, err := AQI(raw.AQI)
	if err != nil {
		rejected = append(rejected, FieldError{Field: "aqi", Raw: raw.AQI, Err: err})
	}
	icon, err := WeatherIcon(raw.IconSrc)
	if err != nil {
		rejected = append(rejected, FieldError{Field: "weather_icon", Raw: raw.IconSrc, Err: err})
	}
	wind, err := WindSpeed(raw.WindSpeed)
	if err != nil {
		rejected = append(rejected, FieldError{Field: "wind_speed", Raw: raw.WindSpeed, Err: err})
	}
	humidity, err := Humidity(raw.Humidity)
	if err != nil {
		rejected = append(rejected, FieldError{Field: "humidity", Raw: raw.Humidity, Err: err})
	}
	if len(rejected) > 0 {
		return Reading{}, &RejectionError{Fields: rejected}
	}

	return Reading{
		Timestamp:   now.Format(time.RFC3339),
		City:        c.DisplayName,
		AQI:         aqi,
		WeatherIcon: icon,
		WindSpeed:   wind,
		Humidity:    humidity,
	}, nil
}
