package rest

import (
	"encoding/json"
	"net/http"

	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/pricing"
)

type Pricing struct{ API }

func (ep Pricing) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Currency string               `json:"currency"`
		Tiers    []pricing.Tier       `json:"tiers"`
		Table    []pricing.TierPrices `json:"table"`
		Bumps    []pricing.BumpInfo   `json:"bumps"`
	}

	resp := response{
		Currency: pricing.Currency,
		Tiers:    pricing.Tiers,
		Table:    pricing.Table(),
		Bumps:    pricing.Bumps,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}
