// Package controller prices, taxes, and stages WhatsAgent carts and opens the
// Stripe checkouts through which they are paid.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/whatsagent/landing/cmd/checkout/staging"
	"github.com/whatsagent/landing/internal/pricing"
	istripe "github.com/whatsagent/landing/internal/stripe"
	"github.com/whatsagent/landing/internal/taxid"
	itime "github.com/whatsagent/landing/internal/time"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// ErrMonthlyRequiresSession indicates a monthly cart was submitted to the
// PaymentIntent flow. Subscriptions are only sold through Checkout Sessions.
var ErrMonthlyRequiresSession = errors.New("monthly billing requires a checkout session")

const (
	// sessionTTL is how long a Checkout Session stays payable.
	sessionTTL = time.Hour
	// stagedTTL is how long a staged cart outlives its checkout so the
	// webhook confirming payment can still be processed.
	stagedTTL = sessionTTL + 24*time.Hour
)

// IStripe encompasses the Stripe API calls made by the Controller.
type IStripe interface {
	CheckoutSession(*stripe.CheckoutSessionParams) (string, error)
	PaymentIntent(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	TaxCalculation(*stripe.TaxCalculationParams) (*stripe.TaxCalculation, error)
	Customer(*stripe.CustomerParams) (*stripe.Customer, error)
}

// IStaging encompasses staged checkout interactions.
type IStaging interface {
	StageCheckout(context.Context, staging.Checkout, time.Time) (string, error)
}

// New creates a new Controller instance.
func New(
	logger *zap.Logger,
	stripe IStripe,
	staging IStaging,
	clock itime.Clock,
) *Controller {
	return &Controller{
		logger:  logger,
		stripe:  stripe,
		staging: staging,
		clock:   clock,
	}
}

// Controller is responsible for checkout business logic.
type Controller struct {
	logger  *zap.Logger
	stripe  IStripe
	staging IStaging
	clock   itime.Clock
}

// CalculateTaxInput is the input of CalculateTax. TaxID is the raw identifier
// entered by the buyer, possibly empty.
type CalculateTaxInput struct {
	Cart    pricing.Cart
	Address istripe.Address
	TaxID   string
}

// TaxResult is a cart priced and taxed by Stripe Tax. Amounts are in the
// smallest currency unit.
type TaxResult struct {
	CalculationID string
	Quote         pricing.Quote
	TaxID         taxid.Result
	Subtotal      int64
	Tax           int64
	Total         int64
	ReverseCharge bool
}

// CalculateTax prices the cart and has Stripe Tax compute the tax owed by a
// buyer billed at the address. The tax ID format is detected with the address
// country as hint; an EU VAT ID that Stripe charges no tax for is a reverse
// charge.
func (ctrl Controller) CalculateTax(ctx context.Context, input CalculateTaxInput) (*TaxResult, error) {
	quote, err := pricing.NewQuote(input.Cart)
	if err != nil {
		return nil, err
	}
	return ctrl.calculateTax(ctx, quote, input.Address, input.TaxID)
}

func (ctrl Controller) calculateTax(
	ctx context.Context,
	quote pricing.Quote,
	address istripe.Address,
	rawTaxID string,
) (*TaxResult, error) {
	taxID := taxid.Detect(rawTaxID, address.Country)

	params := istripe.NewTaxCalculation(quote, address, taxID)
	params.Context = ctx

	calc, err := ctrl.stripe.TaxCalculation(params)
	if err != nil {
		return nil, fmt.Errorf("while calculating tax; tier: %s, error: %w", quote.Cart.Tier, err)
	}

	result := &TaxResult{
		CalculationID: calc.ID,
		Quote:         quote,
		TaxID:         taxID,
		Subtotal:      quote.Subtotal,
		Tax:           calc.TaxAmountExclusive,
		Total:         calc.AmountTotal,
		ReverseCharge: taxid.IsReverseCharge(taxID.Type, calc.TaxAmountExclusive),
	}

	ctrl.logger.Debug(
		"calculated tax",
		zap.String("calculation", calc.ID),
		zap.String("tax-id-type", string(taxID.Type)),
		zap.Int64("tax", result.Tax),
		zap.Bool("reverse-charge", result.ReverseCharge),
	)
	return result, nil
}

// CheckoutSessionInput is the input of CheckoutSession.
type CheckoutSessionInput struct {
	VisitorID  string
	Email      string
	Cart       pricing.Cart
	SuccessURL string
	CancelURL  string
}

// CheckoutSession prices and stages the cart and creates a hosted Stripe
// Checkout Session for it. Stripe Tax computes the tax within the session. The
// session URL is returned.
func (ctrl Controller) CheckoutSession(ctx context.Context, input CheckoutSessionInput) (string, error) {
	quote, err := pricing.NewQuote(input.Cart)
	if err != nil {
		return "", err
	}

	now := ctrl.clock.Now()
	stagedID, err := ctrl.staging.StageCheckout(
		ctx,
		stagedCheckout(input.VisitorID, input.Email, quote),
		now.Add(stagedTTL),
	)
	if err != nil {
		return "", fmt.Errorf("while staging checkout: %w", err)
	}

	params := istripe.NewCheckoutSession(istripe.CheckoutSessionInput{
		Quote:             quote,
		SuccessURL:        input.SuccessURL,
		CancelURL:         input.CancelURL,
		Email:             input.Email,
		ClientReferenceID: stagedID,
		ExpiresAt:         now.Add(sessionTTL),
	})
	params.Context = ctx

	url, err := ctrl.stripe.CheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("while creating checkout session; staged: %s, error: %w", stagedID, err)
	}

	return url, nil
}

// PaymentIntentInput is the input of PaymentIntent.
type PaymentIntentInput struct {
	VisitorID string
	Email     string
	Name      string
	Cart      pricing.Cart
	Address   istripe.Address
	TaxID     string
}

// PaymentIntentResult is the outcome of PaymentIntent.
type PaymentIntentResult struct {
	ClientSecret    string
	PaymentIntentID string
	TaxResult
}

// PaymentIntent prices, taxes, and stages a one-time cart and creates a
// PaymentIntent for its tax inclusive total, to be confirmed by the embedded
// payment form. A buyer with a recognized tax ID is created as a Stripe
// customer carrying it. Monthly carts are rejected with
// ErrMonthlyRequiresSession.
func (ctrl Controller) PaymentIntent(ctx context.Context, input PaymentIntentInput) (*PaymentIntentResult, error) {
	quote, err := pricing.NewQuote(input.Cart)
	if err != nil {
		return nil, err
	}
	if quote.Billing == pricing.BillingMonthly {
		return nil, ErrMonthlyRequiresSession
	}

	tax, err := ctrl.calculateTax(ctx, quote, input.Address, input.TaxID)
	if err != nil {
		return nil, err
	}

	var customerID string
	if tax.TaxID.Valid {
		params := istripe.NewCustomer(input.Email, input.Name, input.Address, tax.TaxID)
		params.Context = ctx

		cust, err := ctrl.stripe.Customer(params)
		if err != nil {
			return nil, fmt.Errorf("while creating customer: %w", err)
		}
		customerID = cust.ID
	}

	staged := stagedCheckout(input.VisitorID, input.Email, quote)
	staged.Tax = tax.Tax
	staged.Total = tax.Total
	staged.TaxIDType = string(tax.TaxID.Type)
	staged.ReverseCharge = tax.ReverseCharge

	stagedID, err := ctrl.staging.StageCheckout(ctx, staged, ctrl.clock.Now().Add(stagedTTL))
	if err != nil {
		return nil, fmt.Errorf("while staging checkout: %w", err)
	}

	params := istripe.NewPaymentIntent(istripe.PaymentIntentInput{
		Quote:            quote,
		Amount:           tax.Total,
		Email:            input.Email,
		CustomerID:       customerID,
		StagedCheckoutID: stagedID,
		TaxCalculationID: tax.CalculationID,
	})
	params.Context = ctx

	intent, err := ctrl.stripe.PaymentIntent(params)
	if err != nil {
		return nil, fmt.Errorf("while creating payment intent; staged: %s, error: %w", stagedID, err)
	}

	return &PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		TaxResult:       *tax,
	}, nil
}

// --- helpers ---

func stagedCheckout(visitorID, email string, quote pricing.Quote) staging.Checkout {
	bumps := make([]string, 0, len(quote.Cart.Bumps))
	for _, bump := range quote.Cart.Bumps {
		bumps = append(bumps, string(bump))
	}

	return staging.Checkout{
		VisitorID:  visitorID,
		Email:      email,
		Tier:       string(quote.Cart.Tier),
		DealStatus: string(quote.Cart.DealStatus),
		Billing:    string(quote.Billing),
		Bumps:      bumps,
		Subtotal:   quote.Subtotal,
		Total:      quote.Subtotal,
	}
}
