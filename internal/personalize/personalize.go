// Package personalize derives the request-specific copy hints the landing page
// renders: the seasonal campaign and the visitor's country.
package personalize

import (
	"net/http"
	"strings"
	"time"
)

const (
	SeasonDefault     = "default"
	SeasonNewYear     = "new_year"
	SeasonSummer      = "summer"
	SeasonBlackFriday = "black_friday"
	SeasonHoliday     = "holiday"
)

// Season retrieves the seasonal copy key in effect at t. Dates are evaluated
// in UTC.
func Season(t time.Time) string {
	t = t.UTC()
	day := t.Day()

	switch month := t.Month(); {
	case month == time.January && day <= 15:
		return SeasonNewYear
	case month == time.November && day >= 20:
		return SeasonBlackFriday
	case month == time.December:
		return SeasonHoliday
	case month >= time.June && month <= time.August:
		return SeasonSummer
	default:
		return SeasonDefault
	}
}

// Headers set by the CDN in front of the landing page, in order of
// preference.
const (
	headerCloudflareCountry = "CF-IPCountry"
	headerCountryCode       = "X-Country-Code"
)

// Country retrieves the visitor's ISO 3166-1 alpha-2 country code as
// geolocated by the CDN. An empty string is returned when the country is
// unknown.
func Country(r *http.Request) string {
	for _, header := range []string{headerCloudflareCountry, headerCountryCode} {
		code := strings.ToUpper(strings.TrimSpace(r.Header.Get(header)))
		switch {
		case code == "":
			continue
		case code == "XX", code == "T1":
			// Cloudflare reports unknown and Tor origins this way.
			return ""
		case len(code) != 2:
			continue
		}
		return code
	}
	return ""
}
