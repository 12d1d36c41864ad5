// Package stripe wraps the Stripe API clients used by the checkout service and
// builds the request parameters it sends.
package stripe

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	checkout "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	taxcalculation "github.com/stripe/stripe-go/v76/tax/calculation"
	taxtransaction "github.com/stripe/stripe-go/v76/tax/transaction"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrAPIVersionMismatch indicates a webhook event was rendered with an API
// version other than the one stripe-go decodes.
var ErrAPIVersionMismatch = errors.New("stripe event api version mismatch")

// WebhookConfig configures the verification of webhook events.
type WebhookConfig struct {
	// Secret is the signing secret of the webhook endpoint.
	Secret string

	// IgnoreAPIVersionMismatch accepts events of any API version. Unless set,
	// the webhook endpoint must be pinned to stripe.APIVersion.
	IgnoreAPIVersionMismatch bool
}

// New creates a new Stripe instance. webhook configures ConstructEvent.
func New(
	checkout *checkout.Client,
	paymentIntents *paymentintent.Client,
	taxCalculations *taxcalculation.Client,
	taxTransactions *taxtransaction.Client,
	customers *customer.Client,
	webhook WebhookConfig,
) *Stripe {
	return &Stripe{
		checkout:        checkout,
		paymentIntents:  paymentIntents,
		taxCalculations: taxCalculations,
		taxTransactions: taxTransactions,
		customers:       customers,
		webhook:         webhook,
	}
}

// Stripe is responsible for Stripe API interactions.
type Stripe struct {
	checkout        *checkout.Client
	paymentIntents  *paymentintent.Client
	taxCalculations *taxcalculation.Client
	taxTransactions *taxtransaction.Client
	customers       *customer.Client
	webhook         WebhookConfig
}

// CheckoutSession creates a Checkout Session and returns its URL.
func (s Stripe) CheckoutSession(params *stripe.CheckoutSessionParams) (string, error) {
	sess, err := s.checkout.New(params)
	if err != nil {
		return "", fmt.Errorf("new checkout session; error: %w", err)
	}
	return sess.URL, nil
}

// PaymentIntent creates a PaymentIntent.
func (s Stripe) PaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	intent, err := s.paymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("new payment intent; error: %w", err)
	}
	return intent, nil
}

// TaxCalculation calculates tax with Stripe Tax.
func (s Stripe) TaxCalculation(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
	calc, err := s.taxCalculations.New(params)
	if err != nil {
		return nil, fmt.Errorf("new tax calculation; error: %w", err)
	}
	return calc, nil
}

// TaxTransaction records a paid tax calculation as a Stripe Tax transaction.
func (s Stripe) TaxTransaction(params *stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error) {
	tx, err := s.taxTransactions.CreateFromCalculation(params)
	if err != nil {
		return nil, fmt.Errorf("new tax transaction; error: %w", err)
	}
	return tx, nil
}

// Customer creates a Customer.
func (s Stripe) Customer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	cust, err := s.customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("new customer; error: %w", err)
	}
	return cust, nil
}

// ConstructEvent verifies the webhook signature of b and decodes the event.
// An event of another API version is rejected with ErrAPIVersionMismatch
// unless the WebhookConfig ignores mismatches.
func (s Stripe) ConstructEvent(b []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		b,
		signature,
		s.webhook.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("construct webhook event; error: %w", err)
	}
	if err := checkAPIVersion(event, s.webhook.IgnoreAPIVersionMismatch); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

func checkAPIVersion(event stripe.Event, ignoreMismatch bool) error {
	if ignoreMismatch || event.APIVersion == "" || event.APIVersion == stripe.APIVersion {
		return nil
	}
	return fmt.Errorf(
		"event: %s, api version: %s, expected: %s: %w",
		event.ID,
		event.APIVersion,
		stripe.APIVersion,
		ErrAPIVersionMismatch,
	)
}
