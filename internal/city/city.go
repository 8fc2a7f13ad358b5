// Package city holds the registry of monitored Vietnamese cities.
package city

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// City identifies one monitored location on the source site.
type City struct {
	// Slug is the stable identifier used in file paths.
	Slug string `mapstructure:"slug" yaml:"slug"`
	// DisplayName is the Vietnamese name written into each record.
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
	// URL is the city page on the source site.
	URL string `mapstructure:"url" yaml:"url"`
}

// Defaults returns the compiled-in city table. A config file may replace
// it wholesale; it is never mutated.
func Defaults() []City {
	return []City{
		{Slug: "hanoi", DisplayName: "Hà Nội", URL: "https://www.iqair.com/vi/vietnam/hanoi/hanoi"},
		{Slug: "ho-chi-minh-city", DisplayName: "Hồ Chí Minh", URL: "https://www.iqair.com/vi/vietnam/ho-chi-minh-city/ho-chi-minh-city"},
		{Slug: "da-nang", DisplayName: "Đà Nẵng", URL: "https://www.iqair.com/vi/vietnam/da-nang/da-nang"},
		{Slug: "hai-phong", DisplayName: "Hải Phòng", URL: "https://www.iqair.com/vi/vietnam/thanh-pho-hai-phong/haiphong"},
		{Slug: "nha-trang", DisplayName: "Nha Trang", URL: "https://www.iqair.com/vi/vietnam/khanh-hoa/nha-trang"},
		{Slug: "can-tho", DisplayName: "Cần Thơ", URL: "https://www.iqair.com/vi/vietnam/thanh-pho-can-tho/can-tho"},
		{Slug: "hue", DisplayName: "Huế", URL: "https://www.iqair.com/vietnam/tinh-thua-thien-hue/hue"},
		{Slug: "vinh", DisplayName: "Vinh", URL: "https://www.iqair.com/vi/vietnam/tinh-nghe-an/vinh"},
	}
}

// FileSlug folds a display name into an ASCII, lowercase, hyphenated form
// suitable for filenames: "Hà Nội" becomes "ha-noi".
func FileSlug(displayName string) string {
	// đ/Đ carry no combining mark and survive NFD untouched.
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case 'đ':
			return 'd'
		case 'Đ':
			return 'D'
		}
		return r
	}, displayName)

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, mapped)
	if err != nil {
		folded = mapped
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.ReplaceAll(folded, " ", "-")
}
