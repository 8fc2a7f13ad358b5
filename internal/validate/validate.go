// Package validate range-checks and normalizes raw reading fields.
//
// Each validator is a pure function from one raw string to a normalized
// value or an error. A Reading exists only when all four fields pass;
// partial records never leave this package.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// mphToKmh is the exact factor the source site uses for imperial wind
// speeds (1 mile = 1.60934 km).
const mphToKmh = 1.60934

// iconPrefixes are the two asset layouts the site has shipped weather
// icons under; anything else means the selector grabbed the wrong image.
var iconPrefixes = []string{
	"/dl/web/weather/",
	"/dl/assets/weather/",
}

var (
	nonDigits       = regexp.MustCompile(`\D`)
	windPattern     = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(km/h|mph)$`)
	humidityPattern = regexp.MustCompile(`^\d{1,3}%$`)
)

// AQI strips all non-digit characters, parses the remainder and checks
// the 0..500 AQI scale. Stripping first is deliberate tolerance for
// extraneous text around the number.
func AQI(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return "", fmt.Errorf("no digits in %q", raw)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", fmt.Errorf("parse aqi %q: %w", raw, err)
	}
	if n < 0 || n > 500 {
		return "", fmt.Errorf("aqi %d outside 0..500", n)
	}
	return strconv.Itoa(n), nil
}

// WeatherIcon accepts icon paths under either known asset layout and
// returns them unchanged.
func WeatherIcon(raw string) (string, error) {
	for _, prefix := range iconPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return raw, nil
		}
	}
	return "", fmt.Errorf("icon path %q has no known prefix", raw)
}

// WindSpeed accepts "<number> km/h" or "<number> mph". Imperial values
// are converted to km/h and formatted to one decimal; metric values are
// returned trimmed and otherwise untouched.
func WindSpeed(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	m := windPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", fmt.Errorf("wind speed %q does not match <number> km/h|mph", raw)
	}
	if m[2] == "mph" {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return "", fmt.Errorf("parse wind speed %q: %w", raw, err)
		}
		return fmt.Sprintf("%.1f km/h", v*mphToKmh), nil
	}
	return trimmed, nil
}

// Humidity accepts "<1-3 digits>%" after trimming.
func Humidity(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !humidityPattern.MatchString(trimmed) {
		return "", fmt.Errorf("humidity %q does not match <digits>%%", raw)
	}
	return trimmed, nil
}

// Reading is a fully validated record, ready to persist. Field values are
// kept as display strings because the CSV format is the contract.
type Reading struct {
	Timestamp   string
	City        string
	AQI         string
	WeatherIcon string
	WindSpeed   string
	Humidity    string
}

// Row returns the CSV row for the reading, in header order.
func (r Reading) Row() []string {
	return []string{r.Timestamp, r.City, r.AQI, r.WeatherIcon, r.WindSpeed, r.Humidity}
}
