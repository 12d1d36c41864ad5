package rest

import (
	"encoding/json"
	"net/http"

	"github.com/whatsagent/landing/cmd/checkout/controller"
	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/metrics"
)

// CheckoutSession opens a hosted Stripe Checkout for the visitor's cart. The
// only flow that sells monthly billing.
type CheckoutSession struct{ API }

func (ep CheckoutSession) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type body struct {
		Cart
		Email string `json:"email" validate:"omitempty,email"`
	}
	type response struct {
		URL string `json:"url"`
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

	url, err := ep.ctrl.CheckoutSession(
		r.Context(),
		controller.CheckoutSessionInput{
			VisitorID:  visitorID,
			Email:      b.Email,
			Cart:       b.Cart.toPricing(status),
			SuccessURL: ep.options.SuccessURL,
			CancelURL:  ep.options.CancelURL,
		},
	)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	ep.metrics.CheckoutCreated(metrics.KindSession, b.Tier, string(status))

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(response{URL: url}); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}
