package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/whatsagent/landing/internal/event"
	ihttp "github.com/whatsagent/landing/internal/http"
	istripe "github.com/whatsagent/landing/internal/stripe"

	"go.uber.org/zap"
)

// maxWebhookBytes bounds the Stripe webhook request body.
const maxWebhookBytes = 65536

// Stripe receives Stripe webhooks. Events are verified and enqueued on the
// stream; processing happens asynchronously.
type Stripe struct {
	API
	constructor EventConstructor
}

func (ep Stripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	stripeEvent, err := ep.constructor.ConstructEvent(
		b,
		r.Header.Get("Stripe-Signature"),
	)
	if errors.Is(err, istripe.ErrAPIVersionMismatch) {
		// The endpoint is misconfigured; Stripe retries the event until it is
		// fixed.
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	if err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	stripeWebhookEvent := event.NewStripeWebhookEvent(stripeEvent)

	b, err = json.Marshal(&stripeWebhookEvent)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	ep.logger.Info(
		"writing stripe event",
		zap.String("stripe-event-id", stripeEvent.ID),
		zap.String("stripe-event-type", string(stripeEvent.Type)),
	)

	if err := ep.stream.Write(r.Context(), b); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
