// Package deal derives a visitor's deal status from the instant the visitor
// was first seen. A visitor starts on the regular deal, moves to the first
// expired deal once FirstWindow elapses, and lands on the final (monthly) deal
// once FinalWindow elapses.
package deal

import (
	"errors"
	"time"

	"github.com/whatsagent/landing/internal/pricing"
)

var ErrInvalidWindows = errors.New("final deal window must be greater than first deal window")

// NewClock creates a Clock instance.
func NewClock(first, final time.Duration) (*Clock, error) {
	if first <= 0 || final <= first {
		return nil, ErrInvalidWindows
	}
	return &Clock{FirstWindow: first, FinalWindow: final}, nil
}

// Clock holds the deal windows measured from a visitor's first visit.
type Clock struct {
	FirstWindow time.Duration
	FinalWindow time.Duration
}

// Status retrieves the deal status of a visitor first seen at firstSeen.
func (c Clock) Status(firstSeen, now time.Time) pricing.DealStatus {
	switch {
	case now.Before(firstSeen.Add(c.FirstWindow)):
		return pricing.DealRegular
	case now.Before(firstSeen.Add(c.FinalWindow)):
		return pricing.DealFirstExpired
	default:
		return pricing.DealFinalExpired
	}
}

// Deadline retrieves the instant the visitor's current deal expires. The
// second return value is false once the visitor is on the final deal, which
// never expires.
func (c Clock) Deadline(firstSeen, now time.Time) (time.Time, bool) {
	switch c.Status(firstSeen, now) {
	case pricing.DealRegular:
		return firstSeen.Add(c.FirstWindow), true
	case pricing.DealFirstExpired:
		return firstSeen.Add(c.FinalWindow), true
	default:
		return time.Time{}, false
	}
}
