// Package pricing holds the WhatsAgent price table, the order bump catalog,
// and the logic that turns a cart into a priced quote. All amounts are US
// cents.
package pricing

import (
	"errors"
	"fmt"
)

const Currency = "usd"

var (
	ErrUnknownTier       = errors.New("unknown tier")
	ErrUnknownDealStatus = errors.New("unknown deal status")
	ErrUnknownBump       = errors.New("unknown order bump")
)

// Tier is a WhatsAgent plan.
type Tier string

const (
	TierStarter      Tier = "STARTER"
	TierProfessional Tier = "PROFESSIONAL"
	TierAgency       Tier = "AGENCY"
)

// Tiers lists every tier in display order.
var Tiers = []Tier{TierStarter, TierProfessional, TierAgency}

// DealStatus drives which price column applies and whether billing is one-time
// or monthly.
type DealStatus string

const (
	DealRegular      DealStatus = "regular"
	DealFirstExpired DealStatus = "first_expired"
	DealFinalExpired DealStatus = "final_expired"
)

// DealStatuses lists every deal status in the order a visitor moves through
// them.
var DealStatuses = []DealStatus{DealRegular, DealFirstExpired, DealFinalExpired}

type Billing string

const (
	BillingOneTime Billing = "one_time"
	BillingMonthly Billing = "monthly"
)

var table = map[DealStatus]map[Tier]int64{
	DealRegular: {
		TierStarter:      dollars(497),
		TierProfessional: dollars(997),
		TierAgency:       dollars(1997),
	},
	DealFirstExpired: {
		TierStarter:      dollars(697),
		TierProfessional: dollars(1297),
		TierAgency:       dollars(2497),
	},
	DealFinalExpired: {
		TierStarter:      dollars(97),
		TierProfessional: dollars(197),
		TierAgency:       dollars(397),
	},
}

var tierNames = map[Tier]string{
	TierStarter:      "WhatsAgent Starter",
	TierProfessional: "WhatsAgent Professional",
	TierAgency:       "WhatsAgent Agency",
}

// Price retrieves the price of tier under the passed deal status.
func Price(tier Tier, status DealStatus) (int64, error) {
	prices, ok := table[status]
	if !ok {
		return 0, fmt.Errorf("while pricing %q: %w", status, ErrUnknownDealStatus)
	}
	price, ok := prices[tier]
	if !ok {
		return 0, fmt.Errorf("while pricing %q: %w", tier, ErrUnknownTier)
	}
	return price, nil
}

// BillingFor reports how a tier purchased under status is billed. Only the
// final expired deal is billed monthly.
func BillingFor(status DealStatus) Billing {
	if status == DealFinalExpired {
		return BillingMonthly
	}
	return BillingOneTime
}

// TierName is the product name shown on receipts and Stripe line items.
func TierName(tier Tier) string {
	return tierNames[tier]
}

// IsTier indicates if s names a known tier.
func IsTier(s string) bool {
	_, ok := tierNames[Tier(s)]
	return ok
}

// TierPrices is a single row of the price table.
type TierPrices struct {
	Status  DealStatus     `json:"status"`
	Billing Billing        `json:"billing"`
	Prices  map[Tier]int64 `json:"prices"`
}

// Table returns the complete price table, one row per deal status.
func Table() []TierPrices {
	rows := make([]TierPrices, 0, len(DealStatuses))
	for _, status := range DealStatuses {
		prices := make(map[Tier]int64, len(Tiers))
		for tier, price := range table[status] {
			prices[tier] = price
		}
		rows = append(rows, TierPrices{
			Status:  status,
			Billing: BillingFor(status),
			Prices:  prices,
		})
	}
	return rows
}

func dollars(n int64) int64 { return n * 100 }
