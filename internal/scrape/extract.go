// Package scrape pulls the raw reading fields out of a rendered city page.
//
// The source site's class names are build-generated and its layout shifts
// between releases, so extraction deliberately runs three small regular
// expressions over the data panel's text instead of walking the DOM. This
// package is the only place those patterns live; when the markup changes,
// the fix stays here.
package scrape

import (
	"regexp"
	"strings"
)

// Panel is the narrow slice of the rendered page the extractor consumes:
// the text content of the main data container plus the weather icon's
// source attribute. The fetcher produces it; everything downstream is
// testable without a browser.
type Panel struct {
	Text    string
	IconSrc string
}

// RawReading carries the four unvalidated field values. A field the page
// did not yield is an empty string, never an error; validation rejects it
// later with the raw value attached.
type RawReading struct {
	AQI       string
	IconSrc   string
	WindSpeed string
	Humidity  string
}

var (
	// The AQI number leads the panel text.
	aqiPattern = regexp.MustCompile(`^(\d+)`)
	// First wind speed with its unit; the site flips between metric and
	// imperial depending on locale cookies.
	windPattern = regexp.MustCompile(`(\d+(?:\.\d+)?\s*(?:km/h|mph))`)
	// Humidity percent, tolerating a space before the sign.
	humidityPattern = regexp.MustCompile(`(\d{1,3})\s?%`)
)

// Extract scans the panel for the four reading fields.
func Extract(p Panel) RawReading {
	text := strings.TrimSpace(p.Text)

	raw := RawReading{IconSrc: strings.TrimSpace(p.IconSrc)}
	if m := aqiPattern.FindStringSubmatch(text); m != nil {
		raw.AQI = m[1]
	}
	if m := windPattern.FindStringSubmatch(text); m != nil {
		raw.WindSpeed = strings.TrimSpace(m[1])
	}
	if m := humidityPattern.FindStringSubmatch(text); m != nil {
		raw.Humidity = m[1] + "%"
	}
	return raw
}
