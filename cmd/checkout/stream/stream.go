// Package stream provides an API for launching a Handler that reads and
// processes all checkout related events from the underlying stream.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/whatsagent/landing/cmd/checkout/model"
	"github.com/whatsagent/landing/cmd/checkout/staging"
	"github.com/whatsagent/landing/internal/email"
	"github.com/whatsagent/landing/internal/event"
	"github.com/whatsagent/landing/internal/gorm"
	"github.com/whatsagent/landing/internal/metrics"
	"github.com/whatsagent/landing/internal/stream"
	istripe "github.com/whatsagent/landing/internal/stripe"
	"github.com/whatsagent/landing/internal/taxid"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// errNoRetry indicates an event can never be processed successfully. Such an
// event is acknowledged so it is not claimed again.
var errNoRetry = errors.New("event will not be retried")

// errOrderDNE indicates the order an event refers to has not been recorded.
var errOrderDNE = errors.New("order does not exist")

const (
	// claimIdle is the time a message read by a consumer may stay
	// unacknowledged before another consumer claims it.
	claimIdle = time.Minute

	// defaultMaxDeliveries is the number of deliveries after which a failing
	// message is dead lettered.
	defaultMaxDeliveries = 10

	// delayedPaymentTTL is how long a staged cart is kept once its Checkout
	// Session completed awaiting a delayed payment method such as SEPA Debit.
	delayedPaymentTTL = 21 * 24 * time.Hour
)

// IStore encompasses all interactions with the checkout store.
type IStore interface {
	FirstOrderByStripeEventID(context.Context, string) (*model.Order, error)
	FirstOrderByStripeObjectID(context.Context, string) (*model.Order, error)
	FirstInvoiceByStripeEventID(context.Context, string) (*model.Invoice, error)

	CreateOrder(context.Context, *model.Order) error
	CreateInvoice(context.Context, *model.Invoice, string) error
	UpdateOrderStatusBySubscriptionID(context.Context, string, model.OrderStatus) (*model.Order, error)
	UpdateOrderStatusByPaymentIntentID(context.Context, string, model.OrderStatus) (*model.Order, error)
}

// IStaging retrieves the carts staged when checkouts were opened.
type IStaging interface {
	FetchCheckout(context.Context, string) (*staging.Checkout, error)
	ExtendCheckout(context.Context, string, time.Duration) error
}

// IStripe encompasses the Stripe calls made while processing events.
type IStripe interface {
	TaxTransaction(*stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error)
}

// IStream encompasses all interactions with the event stream.
type IStream interface {
	Claim(context.Context, time.Duration) (*stream.Message, error)
	Read(context.Context) (*stream.Message, error)
	Write(context.Context, []byte) error
	Ack(context.Context, *stream.Message) error
	DeadLetter(context.Context, *stream.Message, string) error
}

// IEmailer sends the emails triggered by events.
type IEmailer interface {
	SendOrderConfirmation(context.Context, string, email.OrderConfirmation) error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxDeliveries configures the Handler to dead letter a message that
// failed on its nth delivery. Non-positive values are ignored.
func WithMaxDeliveries(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxDeliveries = n
		}
	}
}

// NewHandler creates a Handler instance.
func NewHandler(
	logger *zap.Logger,
	staging IStaging,
	store IStore,
	stripe IStripe,
	stream IStream,
	emailer IEmailer,
	metrics *metrics.Metrics,
	options ...HandlerOption,
) *Handler {
	h := &Handler{
		logger:        logger,
		staging:       staging,
		store:         store,
		stripe:        stripe,
		stream:        stream,
		emailer:       emailer,
		metrics:       metrics,
		maxDeliveries: defaultMaxDeliveries,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Handler is responsible for reading and processing checkout related events
// from the underlying IStream passed into NewHandler.
type Handler struct {
	logger  *zap.Logger
	staging IStaging
	store   IStore
	stripe  IStripe
	stream  IStream
	emailer IEmailer
	metrics *metrics.Metrics

	maxDeliveries int64
}

// Launch reads and processes the underlying IStream. This is a blocking
// function. The context may be cancelled to shutdown the handler.
func (h Handler) Launch(ctx context.Context) error {
	for {
		m, err := h.read(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("while reading stream: %w", err)
		}

		if err := h.handleMessage(ctx, m); err != nil {
			if m.Deliveries >= h.maxDeliveries {
				h.deadLetter(ctx, m, err)
				continue
			}
			h.logger.Error(
				"handle stream event",
				zap.String("message-id", m.ID),
				zap.Int64("deliveries", m.Deliveries),
				zap.Error(err),
			)
			continue
		}

		if err := h.stream.Ack(ctx, m); err != nil {
			h.logger.Error("acknowledge stream event", zap.String("message-id", m.ID), zap.Error(err))
		}
	}
}

// handleMessage processes a single message. A nil error means the message
// is to be acknowledged.
func (h Handler) handleMessage(ctx context.Context, m *stream.Message) error {
	eventI, err := event.Parse(m.Payload)
	if err != nil {
		h.logger.Error("parse event", zap.String("message-id", m.ID), zap.Error(err))
		return nil
	}

	switch e := eventI.(type) {
	case *event.StripeWebhookEvent:
		err = h.handleStripeEvent(ctx, e)
	case *event.OrderPaidEvent:
		err = h.handleOrderPaid(ctx, e)
	default:
		h.logger.Sugar().Debugf("unrecognized event; type: %T", e)
	}
	if errors.Is(err, errNoRetry) {
		h.logger.Warn("dropping stream event", zap.String("message-id", m.ID), zap.Error(err))
		return nil
	}
	return err
}

// Stripe webhook event types processed by the Handler.
const (
	checkoutSessionCompleted    = "checkout.session.completed"
	checkoutAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
	checkoutAsyncPaymentFailure = "checkout.session.async_payment_failed"
	paymentIntentSucceeded      = "payment_intent.succeeded"
	paymentIntentPaymentFailed  = "payment_intent.payment_failed"
	invoicePaid                 = "invoice.paid"
	customerSubscriptionDeleted = "customer.subscription.deleted"
	chargeRefunded              = "charge.refunded"
)

func (h Handler) handleStripeEvent(ctx context.Context, e *event.StripeWebhookEvent) error {
	stripeEvent := e.StripeEvent
	eventType := string(stripeEvent.Type)

	var handler func(context.Context, stripe.Event) error
	switch eventType {
	case checkoutSessionCompleted, checkoutAsyncPaymentSuccess:
		handler = h.processCheckoutSession
	case checkoutAsyncPaymentFailure:
		handler = h.processCheckoutAsyncPaymentFailed
	case paymentIntentSucceeded:
		handler = h.processPaymentIntentSucceeded
	case paymentIntentPaymentFailed:
		handler = h.processPaymentIntentFailed
	case invoicePaid:
		handler = h.processInvoicePaid
	case customerSubscriptionDeleted:
		handler = h.processSubscriptionDeleted
	case chargeRefunded:
		handler = h.processChargeRefunded
	default:
		h.logger.Warn("unknown stripe webhook event", zap.String("type", eventType))
		h.metrics.WebhookEvent(eventType, metrics.ResultIgnored)
		return nil
	}

	var err error
	switch {
	case stripeEvent.ID == "":
		err = fmt.Errorf("stripe event ID empty: %w", errNoRetry)
	case stripeEvent.Data == nil:
		err = fmt.Errorf("stripe event data nil: %w", errNoRetry)
	default:
		err = handler(ctx, stripeEvent)
	}

	switch {
	case err == nil:
		h.metrics.WebhookEvent(eventType, metrics.ResultHandled)
	case errors.Is(err, errNoRetry):
		h.metrics.WebhookEvent(eventType, metrics.ResultMalformed)
	default:
		h.metrics.WebhookEvent(eventType, metrics.ResultFailed)
	}
	return err
}

// processCheckoutSession records the order of a paid Checkout Session. A
// session paid with a delayed method completes unpaid and is recorded once
// checkout.session.async_payment_succeeded reports it paid.
func (h Handler) processCheckoutSession(ctx context.Context, event stripe.Event) error {
	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return fmt.Errorf("unmarshal checkout; error: %v: %w", err, errNoRetry)
	}

	switch {
	case checkout.ClientReferenceID == "":
		return fmt.Errorf("checkout ClientReferenceID empty: %w", errNoRetry)
	case checkout.ID == "":
		return fmt.Errorf("checkout ID empty: %w", errNoRetry)
	case checkout.Mode == stripe.CheckoutSessionModeSubscription && checkout.Subscription == nil:
		return fmt.Errorf("checkout Subscription nil: %w", errNoRetry)
	case checkout.Mode == stripe.CheckoutSessionModeSubscription && checkout.Subscription.ID == "":
		return fmt.Errorf("checkout Subscription ID empty: %w", errNoRetry)
	case checkout.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid &&
		event.Type == checkoutSessionCompleted:
		return h.awaitDelayedPayment(ctx, checkout)
	case checkout.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid:
		return fmt.Errorf("checkout payment status is not \"paid\": %w", errNoRetry)
	}

	processed, err := h.processed(ctx, event.ID, checkout.ID)
	if err != nil || processed {
		return err
	}

	staged, err := h.fetchStaged(ctx, checkout.ClientReferenceID)
	if err != nil {
		return err
	}

	order := newOrder(event.ID, checkout.ID, staged)
	order.Currency = string(checkout.Currency)
	order.Subtotal = checkout.AmountSubtotal
	order.Total = checkout.AmountTotal
	if checkout.TotalDetails != nil {
		order.Tax = checkout.TotalDetails.AmountTax
	}
	if checkout.Customer != nil {
		order.StripeCustomerID = checkout.Customer.ID
	}
	if checkout.Subscription != nil {
		order.StripeSubscriptionID = checkout.Subscription.ID
	}
	if checkout.PaymentIntent != nil {
		order.StripePaymentIntentID = checkout.PaymentIntent.ID
	}
	if details := checkout.CustomerDetails; details != nil {
		if details.Email != "" {
			order.Email = details.Email
		}
		if len(details.TaxIDs) > 0 {
			order.TaxIDType = string(details.TaxIDs[0].Type)
		}
	}
	order.ReverseCharge = taxid.IsReverseCharge(taxid.Type(order.TaxIDType), order.Tax)

	return h.createOrder(ctx, order)
}

// awaitDelayedPayment keeps the staged cart of checkout until its delayed
// payment settles.
func (h Handler) awaitDelayedPayment(ctx context.Context, checkout stripe.CheckoutSession) error {
	err := h.staging.ExtendCheckout(ctx, checkout.ClientReferenceID, delayedPaymentTTL)
	if errors.Is(err, staging.ErrNotFound) {
		return fmt.Errorf("staged checkout %s: %v: %w", checkout.ClientReferenceID, err, errNoRetry)
	}
	if err != nil {
		return fmt.Errorf("while extending staged checkout; id: %s, error: %w", checkout.ClientReferenceID, err)
	}

	h.logger.Info(
		"checkout awaiting delayed payment",
		zap.String("checkout-id", checkout.ID),
		zap.String("staged-checkout-id", checkout.ClientReferenceID),
	)
	return nil
}

func (h Handler) processCheckoutAsyncPaymentFailed(_ context.Context, event stripe.Event) error {
	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return fmt.Errorf("unmarshal checkout; error: %v: %w", err, errNoRetry)
	}

	h.logger.Info(
		"checkout delayed payment failed",
		zap.String("checkout-id", checkout.ID),
		zap.String("staged-checkout-id", checkout.ClientReferenceID),
	)
	return nil
}

func (h Handler) processPaymentIntentSucceeded(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("unmarshal payment intent; error: %v: %w", err, errNoRetry)
	}

	stagedID := intent.Metadata[istripe.MetadataStagedCheckoutID]
	switch {
	case intent.ID == "":
		return fmt.Errorf("payment intent ID empty: %w", errNoRetry)
	case stagedID == "":
		// Intents created by Checkout Sessions carry no staged checkout and are
		// recorded through checkout.session.completed.
		h.logger.Debug("payment intent not staged", zap.String("payment-intent-id", intent.ID))
		return nil
	}

	processed, err := h.processed(ctx, event.ID, intent.ID)
	if err != nil || processed {
		return err
	}

	staged, err := h.fetchStaged(ctx, stagedID)
	if err != nil {
		return err
	}

	if calculationID := intent.Metadata[istripe.MetadataTaxCalculationID]; calculationID != "" {
		params := istripe.NewTaxTransaction(calculationID, intent.ID)
		params.Context = ctx
		if _, err := h.stripe.TaxTransaction(params); err != nil {
			return fmt.Errorf("while recording tax transaction; payment intent: %s, error: %w", intent.ID, err)
		}
	}

	order := newOrder(event.ID, intent.ID, staged)
	order.StripePaymentIntentID = intent.ID
	order.Currency = string(intent.Currency)
	order.Total = intent.Amount
	if intent.Customer != nil {
		order.StripeCustomerID = intent.Customer.ID
	}
	if order.Email == "" {
		order.Email = intent.ReceiptEmail
	}

	return h.createOrder(ctx, order)
}

func (h Handler) processPaymentIntentFailed(_ context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("unmarshal payment intent; error: %v: %w", err, errNoRetry)
	}

	h.logger.Info(
		"payment intent failed",
		zap.String("payment-intent-id", intent.ID),
		zap.String("staged-checkout-id", intent.Metadata[istripe.MetadataStagedCheckoutID]),
	)
	return nil
}

func (h Handler) processInvoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice; error: %v: %w", err, errNoRetry)
	}

	switch {
	case invoice.ID == "":
		return fmt.Errorf("invoice ID empty: %w", errNoRetry)
	case invoice.Subscription == nil:
		return fmt.Errorf("invoice Subscription nil: %w", errNoRetry)
	case invoice.Subscription.ID == "":
		return fmt.Errorf("invoice Subscription ID empty: %w", errNoRetry)
	}

	// The first invoice of a subscription is paid through the Checkout Session
	// and recorded with the order.
	if invoice.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		return nil
	}

	_, err := h.store.FirstInvoiceByStripeEventID(ctx, event.ID)
	if err == nil {
		// Invoice has already been processed, return early.
		return nil
	}
	if !errors.Is(err, gorm.ErrNotFound) {
		return fmt.Errorf("while retrieving invoice by event ID: %w", err)
	}

	err = h.store.CreateInvoice(
		ctx,
		&model.Invoice{
			StripeEventID:   event.ID,
			StripeInvoiceID: invoice.ID,
			Amount:          invoice.AmountPaid,
			Status:          model.InvoiceStatusPaid,
		},
		invoice.Subscription.ID,
	)
	if errors.Is(err, gorm.ErrNotFound) {
		// The order may not be recorded yet; the event is retried.
		return fmt.Errorf("subscription %s: %w", invoice.Subscription.ID, errOrderDNE)
	}
	if err != nil {
		return fmt.Errorf("while creating invoice: %w", err)
	}
	return nil
}

func (h Handler) processSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("unmarshal subscription; error: %v: %w", err, errNoRetry)
	}
	if subscription.ID == "" {
		return fmt.Errorf("subscription ID empty: %w", errNoRetry)
	}

	_, err := h.store.UpdateOrderStatusBySubscriptionID(ctx, subscription.ID, model.OrderStatusCanceled)
	if errors.Is(err, gorm.ErrNotFound) {
		return fmt.Errorf("subscription %s: %v: %w", subscription.ID, errOrderDNE, errNoRetry)
	}
	if err != nil {
		return fmt.Errorf("while canceling order: %w", err)
	}
	return nil
}

func (h Handler) processChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("unmarshal charge; error: %v: %w", err, errNoRetry)
	}

	switch {
	case charge.ID == "":
		return fmt.Errorf("charge ID empty: %w", errNoRetry)
	case charge.PaymentIntent == nil:
		return fmt.Errorf("charge PaymentIntent nil: %w", errNoRetry)
	case charge.PaymentIntent.ID == "":
		return fmt.Errorf("charge PaymentIntent ID empty: %w", errNoRetry)
	}

	// Partial refunds leave the order paid.
	if !charge.Refunded {
		return nil
	}

	_, err := h.store.UpdateOrderStatusByPaymentIntentID(ctx, charge.PaymentIntent.ID, model.OrderStatusRefunded)
	if errors.Is(err, gorm.ErrNotFound) {
		return fmt.Errorf("payment intent %s: %v: %w", charge.PaymentIntent.ID, errOrderDNE, errNoRetry)
	}
	if err != nil {
		return fmt.Errorf("while refunding order: %w", err)
	}
	return nil
}

func (h Handler) handleOrderPaid(ctx context.Context, e *event.OrderPaidEvent) error {
	if e.Email == "" {
		return fmt.Errorf("order %s email empty: %w", e.OrderID, errNoRetry)
	}

	if err := h.emailer.SendOrderConfirmation(
		ctx,
		e.Email,
		email.OrderConfirmation{
			OrderID:  e.OrderID.String(),
			Tier:     e.Tier,
			Bumps:    e.Bumps,
			Total:    e.Total,
			Currency: e.Currency,
		},
	); err != nil {
		return fmt.Errorf("while sending order confirmation; order: %s, error: %w", e.OrderID, err)
	}
	return nil
}

// --- helpers ---

// processed reports whether the event, or another event for the same Stripe
// object, has already produced an order.
func (h Handler) processed(ctx context.Context, eventID, objectID string) (bool, error) {
	_, err := h.store.FirstOrderByStripeEventID(ctx, eventID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrNotFound) {
		return false, fmt.Errorf("while retrieving order by event ID: %w", err)
	}

	_, err = h.store.FirstOrderByStripeObjectID(ctx, objectID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrNotFound) {
		return false, fmt.Errorf("while retrieving order by object ID: %w", err)
	}
	return false, nil
}

func (h Handler) fetchStaged(ctx context.Context, id string) (*staging.Checkout, error) {
	staged, err := h.staging.FetchCheckout(ctx, id)
	if errors.Is(err, staging.ErrNotFound) {
		return nil, fmt.Errorf("staged checkout %s: %v: %w", id, err, errNoRetry)
	}
	if err != nil {
		return nil, fmt.Errorf("while fetching staged checkout; id: %s, error: %w", id, err)
	}
	return staged, nil
}

func newOrder(eventID, objectID string, staged *staging.Checkout) *model.Order {
	return &model.Order{
		StripeEventID:  eventID,
		StripeObjectID: objectID,
		VisitorID:      staged.VisitorID,
		Email:          staged.Email,
		Tier:           staged.Tier,
		DealStatus:     staged.DealStatus,
		Billing:        staged.Billing,
		Bumps:          model.JoinBumps(staged.Bumps),
		Subtotal:       staged.Subtotal,
		Tax:            staged.Tax,
		Total:          staged.Total,
		TaxIDType:      staged.TaxIDType,
		ReverseCharge:  staged.ReverseCharge,
		Status:         model.OrderStatusPaid,
	}
}

// createOrder records the order and announces it on the stream.
func (h Handler) createOrder(ctx context.Context, order *model.Order) error {
	err := h.store.CreateOrder(ctx, order)
	if errors.Is(err, gorm.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("while creating order; event: %s, error: %w", order.StripeEventID, err)
	}

	h.logger.Info(
		"order paid",
		zap.String("order-id", order.ID.String()),
		zap.String("tier", order.Tier),
		zap.Int64("total", order.Total),
	)

	paid := event.NewOrderPaidEvent(
		order.ID,
		order.Email,
		order.Tier,
		order.BumpList(),
		order.Total,
		order.Currency,
	)

	b, err := json.Marshal(&paid)
	if err != nil {
		return fmt.Errorf("while marshalling order paid event: %w", err)
	}

	// The order is recorded; a retry would find it processed and never
	// announce it, so a failed write is only logged.
	if err := h.stream.Write(ctx, b); err != nil {
		h.logger.Error("write order paid event", zap.String("order-id", order.ID.String()), zap.Error(err))
	}
	return nil
}

// deadLetter moves m, which failed with err, off the event stream. If that
// fails too m stays pending and is dead lettered on its next delivery.
func (h Handler) deadLetter(ctx context.Context, m *stream.Message, err error) {
	h.logger.Error(
		"dead lettering stream event",
		zap.String("message-id", m.ID),
		zap.Int64("deliveries", m.Deliveries),
		zap.Error(err),
	)
	if err := h.stream.DeadLetter(ctx, m, err.Error()); err != nil {
		h.logger.Error("dead letter stream event", zap.String("message-id", m.ID), zap.Error(err))
		return
	}
	h.metrics.EventDeadLettered()
}

func (h Handler) read(ctx context.Context) (*stream.Message, error) {
	m, err := h.stream.Claim(ctx, claimIdle)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, stream.ErrNoPending) {
		return nil, fmt.Errorf("while claiming stream: %w", err)
	}

	// stream.Claim has returned stream.ErrNoPending, therefore we may read
	// the stream.
	m, err = h.stream.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("while reading stream: %w", err)
	}
	return m, nil
}
