package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/whatsagent/landing/cmd/checkout/controller"
	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/metrics"
)

// PaymentIntent prepares the embedded payment form for the visitor's one-time
// cart.
type PaymentIntent struct{ API }

func (ep PaymentIntent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type body struct {
		Cart
		Email   string  `json:"email" validate:"required,email"`
		Name    string  `json:"name" validate:"max=256"`
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

	res, err := ep.ctrl.PaymentIntent(
		r.Context(),
		controller.PaymentIntentInput{
			VisitorID: visitorID,
			Email:     b.Email,
			Name:      b.Name,
			Cart:      b.Cart.toPricing(status),
			Address:   b.Address.toStripe(),
			TaxID:     b.TaxID,
		},
	)
	if errors.Is(err, controller.ErrMonthlyRequiresSession) {
		ihttp.ErrUnprocessable(ep.logger, w, "Monthly billing is only available through the hosted checkout.")
		return
	}
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	ep.metrics.TaxCalculated(res.ReverseCharge)
	ep.metrics.CheckoutCreated(metrics.KindPaymentIntent, b.Tier, string(status))

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(PaymentIntentResultFromController(*res)); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}
