package rest

import (
	"encoding/json"
	"net/http"

	"github.com/whatsagent/landing/cmd/checkout/controller"
	ihttp "github.com/whatsagent/landing/internal/http"
)

type CalculateTax struct{ API }

func (ep CalculateTax) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type body struct {
		Cart
		Address Address `json:"address" validate:"required"`
		TaxID   string  `json:"taxId" validate:"max=32"`
	}

	var b body
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	if err := ep.valid.Struct(b); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	visitorID, ok := ihttp.VisitorFromContext(r.Context())
	if !ok {
		ihttp.ErrInternal(ep.logger, w, errMissingVisitor)
		return
	}

	status, _, err := ep.dealStatus(r.Context(), visitorID)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	res, err := ep.ctrl.CalculateTax(
		r.Context(),
		controller.CalculateTaxInput{
			Cart:    b.Cart.toPricing(status),
			Address: b.Address.toStripe(),
			TaxID:   b.TaxID,
		},
	)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	ep.metrics.TaxCalculated(res.ReverseCharge)

	if err := json.NewEncoder(w).Encode(TaxResultFromController(*res)); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}
