package rest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/whatsagent/landing/cmd/checkout/controller"
	"github.com/whatsagent/landing/internal/pricing"
	istripe "github.com/whatsagent/landing/internal/stripe"
)

type Address struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    Country `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Country is an ISO 3166-1 alpha-2 country code, upper-cased when decoded.
type Country string

func (c *Country) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = Country(strings.ToUpper(strings.TrimSpace(s)))
	return nil
}

func (a Address) toStripe() istripe.Address {
	return istripe.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    string(a.Country),
	}
}

// Cart is the part of a request naming what the visitor buys. The deal status
// is never taken from the request.
type Cart struct {
	Tier  string   `json:"tier" validate:"required,tier"`
	Bumps []string `json:"bumps" validate:"max=3,dive,bump"`
}

func (c Cart) toPricing(status pricing.DealStatus) pricing.Cart {
	bumps := make([]pricing.Bump, 0, len(c.Bumps))
	for _, bump := range c.Bumps {
		bumps = append(bumps, pricing.Bump(bump))
	}
	return pricing.Cart{
		Tier:       pricing.Tier(c.Tier),
		DealStatus: status,
		Bumps:      bumps,
	}
}

type TaxResult struct {
	CalculationID string          `json:"calculationId"`
	Currency      string          `json:"currency"`
	Billing       pricing.Billing `json:"billing"`
	Lines         []pricing.Line  `json:"lines"`
	Subtotal      int64           `json:"subtotal"`
	Tax           int64           `json:"tax"`
	Total         int64           `json:"total"`
	TaxIDType     string          `json:"taxIdType"`
	ReverseCharge bool            `json:"reverseCharge"`
}

func TaxResultFromController(res controller.TaxResult) TaxResult {
	return TaxResult{
		CalculationID: res.CalculationID,
		Currency:      res.Quote.Currency,
		Billing:       res.Quote.Billing,
		Lines:         res.Quote.Lines,
		Subtotal:      res.Subtotal,
		Tax:           res.Tax,
		Total:         res.Total,
		TaxIDType:     string(res.TaxID.Type),
		ReverseCharge: res.ReverseCharge,
	}
}

type PaymentIntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Subtotal        int64  `json:"subtotal"`
	Tax             int64  `json:"tax"`
	Total           int64  `json:"total"`
	ReverseCharge   bool   `json:"reverseCharge"`
}

func PaymentIntentResultFromController(res controller.PaymentIntentResult) PaymentIntentResult {
	return PaymentIntentResult{
		ClientSecret:    res.ClientSecret,
		PaymentIntentID: res.PaymentIntentID,
		Subtotal:        res.Subtotal,
		Tax:             res.Tax,
		Total:           res.Total,
		ReverseCharge:   res.ReverseCharge,
	}
}

// --- helpers ---

// dealStatus retrieves the deal status of the visitor, recording now as the
// first visit of a visitor never seen before.
func (api API) dealStatus(ctx context.Context, visitorID string) (pricing.DealStatus, time.Time, error) {
	now := api.clock.Now()
	firstSeen, err := api.visitors.FirstSeen(ctx, visitorID, now)
	if err != nil {
		return "", time.Time{}, err
	}
	return api.dealClock.Status(firstSeen, now), firstSeen, nil
}
