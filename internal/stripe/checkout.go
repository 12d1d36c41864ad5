package stripe

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/whatsagent/landing/internal/pricing"
	"github.com/whatsagent/landing/internal/taxid"
)

// SaaSTaxCode is the Stripe product tax code for business-use software as a
// service.
const SaaSTaxCode = "txcd_10103001"

// Metadata keys attached to Stripe objects created by the checkout service.
const (
	MetadataStagedCheckoutID = "staged_checkout_id"
	MetadataTaxCalculationID = "tax_calculation_id"
	MetadataTier             = "tier"
	MetadataDealStatus       = "deal_status"
	MetadataBumps            = "bumps"
)

// Address is a billing address.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a Address) params() *stripe.AddressParams {
	params := &stripe.AddressParams{
		Line1:      stripe.String(a.Line1),
		City:       stripe.String(a.City),
		PostalCode: stripe.String(a.PostalCode),
		Country:    stripe.String(strings.ToUpper(a.Country)),
	}
	if a.Line2 != "" {
		params.Line2 = stripe.String(a.Line2)
	}
	if a.State != "" {
		params.State = stripe.String(a.State)
	}
	return params
}

// NewTaxCalculation builds the tax calculation of quote for a buyer billed at
// address. taxID is attached to the customer details only when its format was
// recognized.
func NewTaxCalculation(quote pricing.Quote, address Address, taxID taxid.Result) *stripe.TaxCalculationParams {
	params := &stripe.TaxCalculationParams{
		Currency: stripe.String(quote.Currency),
		CustomerDetails: &stripe.TaxCalculationCustomerDetailsParams{
			Address:       address.params(),
			AddressSource: stripe.String("billing"),
		},
	}

	if taxID.Valid {
		params.CustomerDetails.TaxIDs = []*stripe.TaxCalculationCustomerDetailsTaxIDParams{
			{
				Type:  stripe.String(string(taxID.Type)),
				Value: stripe.String(taxID.Value),
			},
		}
	}

	for _, line := range quote.Lines {
		params.LineItems = append(params.LineItems, &stripe.TaxCalculationLineItemParams{
			Amount:      stripe.Int64(line.Amount),
			Reference:   stripe.String(line.Reference),
			TaxBehavior: stripe.String("exclusive"),
			TaxCode:     stripe.String(SaaSTaxCode),
		})
	}

	return params
}

// CheckoutSessionInput is the input of NewCheckoutSession.
type CheckoutSessionInput struct {
	Quote             pricing.Quote
	SuccessURL        string
	CancelURL         string
	Email             string
	ClientReferenceID string
	ExpiresAt         time.Time
}

// NewCheckoutSession builds a hosted Checkout Session for the quote. A
// monthly quote results in a subscription session in which the tier is a
// recurring monthly price and the bumps are one-time items on the first
// invoice. Stripe Tax and tax ID collection are always enabled.
func NewCheckoutSession(input CheckoutSessionInput) *stripe.CheckoutSessionParams {
	mode := stripe.CheckoutSessionModePayment
	if input.Quote.Billing == pricing.BillingMonthly {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		CancelURL:                stripe.String(input.CancelURL),
		SuccessURL:               stripe.String(input.SuccessURL),
		Mode:                     stripe.String(string(mode)),
		ClientReferenceID:        stripe.String(input.ClientReferenceID),
		ExpiresAt:                stripe.Int64(input.ExpiresAt.Unix()),
		BillingAddressCollection: stripe.String("required"),
		AutomaticTax: &stripe.CheckoutSessionAutomaticTaxParams{
			Enabled: stripe.Bool(true),
		},
		TaxIDCollection: &stripe.CheckoutSessionTaxIDCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}

	if input.Email != "" {
		params.CustomerEmail = stripe.String(input.Email)
	}

	for _, line := range input.Quote.Lines {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(input.Quote.Currency),
			UnitAmount:  stripe.Int64(line.Amount),
			TaxBehavior: stripe.String("exclusive"),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:    stripe.String(line.Name),
				TaxCode: stripe.String(SaaSTaxCode),
			},
		}
		if line.Recurring {
			priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String("month"),
			}
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(1),
		})
	}

	addCartMetadata(params, input.Quote.Cart)
	return params
}

// PaymentIntentInput is the input of NewPaymentIntent.
type PaymentIntentInput struct {
	Quote            pricing.Quote
	Amount           int64
	Email            string
	CustomerID       string
	StagedCheckoutID string
	TaxCalculationID string
}

// NewPaymentIntent builds a PaymentIntent charging amount, the tax inclusive
// total of the quote, to be confirmed client-side.
func NewPaymentIntent(input PaymentIntentInput) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.Amount),
		Currency: stripe.String(input.Quote.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(pricing.TierName(input.Quote.Cart.Tier)),
	}

	if input.Email != "" {
		params.ReceiptEmail = stripe.String(input.Email)
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}

	addCartMetadata(params, input.Quote.Cart)
	params.AddMetadata(MetadataStagedCheckoutID, input.StagedCheckoutID)
	if input.TaxCalculationID != "" {
		params.AddMetadata(MetadataTaxCalculationID, input.TaxCalculationID)
	}
	return params
}

// NewTaxTransaction builds the Stripe Tax transaction recording the paid
// calculation. reference identifies the payment, typically the PaymentIntent
// ID. Retries with the same reference are idempotent.
func NewTaxTransaction(calculationID, reference string) *stripe.TaxTransactionCreateFromCalculationParams {
	params := &stripe.TaxTransactionCreateFromCalculationParams{
		Calculation: stripe.String(calculationID),
		Reference:   stripe.String(reference),
	}
	params.SetIdempotencyKey("tax-transaction-" + reference)
	return params
}

// NewCustomer builds a Customer carrying the buyer's billing address and,
// when recognized, tax ID so Stripe can verify it.
func NewCustomer(email, name string, address Address, taxID taxid.Result) *stripe.CustomerParams {
	params := &stripe.CustomerParams{
		Email:   stripe.String(email),
		Address: address.params(),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	if taxID.Valid {
		params.TaxIDData = []*stripe.CustomerTaxIDDataParams{
			{
				Type:  stripe.String(string(taxID.Type)),
				Value: stripe.String(taxID.Value),
			},
		}
	}
	return params
}

type metadataAdder interface {
	AddMetadata(key, value string)
}

func addCartMetadata(params metadataAdder, cart pricing.Cart) {
	bumps := make([]string, 0, len(cart.Bumps))
	for _, bump := range cart.Bumps {
		bumps = append(bumps, string(bump))
	}

	params.AddMetadata(MetadataTier, string(cart.Tier))
	params.AddMetadata(MetadataDealStatus, string(cart.DealStatus))
	params.AddMetadata(MetadataBumps, strings.Join(bumps, ","))
}
