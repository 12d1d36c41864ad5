// Package taxid detects the type of a tax identifier from its format. The
// result is advisory: verification and the reverse charge decision belong to
// Stripe.
package taxid

import (
	"regexp"
	"strings"
)

// Type is a Stripe tax ID type.
type Type string

const (
	EUVAT   Type = "eu_vat"
	USEIN   Type = "us_ein"
	CABN    Type = "ca_bn"
	AUABN   Type = "au_abn"
	Unknown Type = "unknown"
)

var (
	euVATRE = regexp.MustCompile(`^(AT|BE|BG|CY|CZ|DE|DK|EE|EL|ES|FI|FR|HR|HU|IE|IT|LT|LU|LV|MT|NL|PL|PT|RO|SE|SI|SK|XI)[0-9A-Z]{8,12}$`)
	usEINRE = regexp.MustCompile(`^\d{2}-?\d{7}$`)
	caBNRE  = regexp.MustCompile(`^\d{9}(RT\d{4})?$`)
	auABNRE = regexp.MustCompile(`^\d{11}$`)

	dashedEINRE = regexp.MustCompile(`^\d{2}-\d{7}$`)
)

// Result is the outcome of Detect. Value is the normalized identifier as it
// should be sent to Stripe.
type Result struct {
	Type  Type   `json:"type"`
	Value string `json:"value"`
	Valid bool   `json:"valid"`
}

// Normalize upper-cases raw and strips spaces, dots and dashes.
func Normalize(raw string) string {
	return strings.ReplaceAll(clean(raw), "-", "")
}

// Detect matches raw against the known formats in the order EU VAT, US EIN,
// Canada BN, Australia ABN. Nine bare digits match both an EIN and a BN; the
// country hint resolves them to a BN for "CA" and to an EIN otherwise.
func Detect(raw, country string) Result {
	cleaned := clean(raw)
	if cleaned == "" {
		return Result{Type: Unknown}
	}
	value := strings.ReplaceAll(cleaned, "-", "")
	country = strings.ToUpper(strings.TrimSpace(country))

	switch {
	case euVATRE.MatchString(value):
		return Result{Type: EUVAT, Value: value, Valid: true}
	case dashedEINRE.MatchString(cleaned):
		return Result{Type: USEIN, Value: cleaned, Valid: true}
	case usEINRE.MatchString(value) && country != "CA":
		return Result{Type: USEIN, Value: value[:2] + "-" + value[2:], Valid: true}
	case caBNRE.MatchString(value):
		return Result{Type: CABN, Value: value, Valid: true}
	case auABNRE.MatchString(value):
		return Result{Type: AUABN, Value: value, Valid: true}
	}

	return Result{Type: Unknown, Value: value}
}

// IsReverseCharge reports whether a Stripe tax calculation with the passed
// exclusive tax amount amounts to an EU reverse charge for a buyer holding a
// tax ID of type t.
func IsReverseCharge(t Type, taxAmountExclusive int64) bool {
	return t == EUVAT && taxAmountExclusive == 0
}

func clean(raw string) string {
	replacer := strings.NewReplacer(" ", "", ".", "", "\t", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(raw)))
}
