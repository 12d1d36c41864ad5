package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/whatsagent/landing/internal/experiment"
	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/personalize"
	"github.com/whatsagent/landing/internal/pricing"
)

// Offer renders everything the landing page personalizes for the visitor:
// the deal in effect and its deadline, the prices under that deal, the
// seasonal campaign, the geolocated country, and the experiment variants.
type Offer struct{ API }

func (ep Offer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type price struct {
		Tier  pricing.Tier `json:"tier"`
		Name  string       `json:"name"`
		Price int64        `json:"price"`
	}
	type response struct {
		DealStatus  pricing.DealStatus `json:"dealStatus"`
		Billing     pricing.Billing    `json:"billing"`
		Deadline    *time.Time         `json:"deadline"`
		Currency    string             `json:"currency"`
		Prices      []price            `json:"prices"`
		Bumps       []pricing.BumpInfo `json:"bumps"`
		Season      string             `json:"season"`
		Country     string             `json:"country"`
		Experiments map[string]string  `json:"experiments"`
	}

	visitorID, ok := ihttp.VisitorFromContext(r.Context())
	if !ok {
		ihttp.ErrInternal(ep.logger, w, errMissingVisitor)
		return
	}

	status, firstSeen, err := ep.dealStatus(r.Context(), visitorID)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	assignments, err := ep.experiments.AssignAll(r.Context(), visitorID)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	ep.countExposures(assignments)

	now := ep.clock.Now()
	resp := response{
		DealStatus:  status,
		Billing:     pricing.BillingFor(status),
		Currency:    pricing.Currency,
		Prices:      make([]price, 0, len(pricing.Tiers)),
		Bumps:       pricing.Bumps,
		Season:      personalize.Season(now),
		Country:     personalize.Country(r),
		Experiments: experiment.Variants(assignments),
	}
	if deadline, ok := ep.dealClock.Deadline(firstSeen, now); ok {
		resp.Deadline = &deadline
	}

	for _, tier := range pricing.Tiers {
		amount, err := pricing.Price(tier, status)
		if err != nil {
			ihttp.ErrInternal(ep.logger, w, err)
			return
		}
		resp.Prices = append(resp.Prices, price{Tier: tier, Name: pricing.TierName(tier), Price: amount})
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}
