package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/whatsagent/landing/internal/pricing"
	"github.com/whatsagent/landing/internal/taxid"
)

var address = Address{
	Line1:      "Unter den Linden 1",
	City:       "Berlin",
	PostalCode: "10117",
	Country:    "de",
}

func quote(t *testing.T, cart pricing.Cart) pricing.Quote {
	t.Helper()
	q, err := pricing.NewQuote(cart)
	require.Nil(t, err)
	return q
}

func TestNewTaxCalculation(t *testing.T) {
	q := quote(t, pricing.Cart{
		Tier:       pricing.TierProfessional,
		DealStatus: pricing.DealRegular,
		Bumps:      []pricing.Bump{pricing.BumpCreditsBundle},
	})

	t.Run("with eu vat", func(t *testing.T) {
		params := NewTaxCalculation(q, address, taxid.Detect("DE123456789", "DE"))

		require.Equal(t, "usd", *params.Currency)
		require.Equal(t, "DE", *params.CustomerDetails.Address.Country)
		require.Equal(t, "billing", *params.CustomerDetails.AddressSource)
		require.Nil(t, params.CustomerDetails.Address.State)

		require.Len(t, params.CustomerDetails.TaxIDs, 1)
		require.Equal(t, "eu_vat", *params.CustomerDetails.TaxIDs[0].Type)
		require.Equal(t, "DE123456789", *params.CustomerDetails.TaxIDs[0].Value)

		require.Len(t, params.LineItems, 2)
		require.Equal(t, "PROFESSIONAL", *params.LineItems[0].Reference)
		require.Equal(t, int64(99700), *params.LineItems[0].Amount)
		require.Equal(t, "credits_bundle", *params.LineItems[1].Reference)
		require.Equal(t, "exclusive", *params.LineItems[1].TaxBehavior)
		require.Equal(t, SaaSTaxCode, *params.LineItems[1].TaxCode)
	})

	t.Run("unrecognized tax id is omitted", func(t *testing.T) {
		params := NewTaxCalculation(q, address, taxid.Detect("nope", "DE"))
		require.Empty(t, params.CustomerDetails.TaxIDs)
	})
}

func TestNewCheckoutSession(t *testing.T) {
	expiresAt := time.Date(2026, time.March, 1, 13, 0, 0, 0, time.UTC)

	t.Run("one-time", func(t *testing.T) {
		params := NewCheckoutSession(CheckoutSessionInput{
			Quote: quote(t, pricing.Cart{
				Tier:       pricing.TierStarter,
				DealStatus: pricing.DealFirstExpired,
				Bumps:      []pricing.Bump{pricing.BumpFuegenixBlueprint},
			}),
			SuccessURL:        "https://whatsagent.io/thanks",
			CancelURL:         "https://whatsagent.io/",
			Email:             "buyer@example.com",
			ClientReferenceID: "staged-id",
			ExpiresAt:         expiresAt,
		})

		require.Equal(t, string(stripe.CheckoutSessionModePayment), *params.Mode)
		require.Equal(t, "staged-id", *params.ClientReferenceID)
		require.Equal(t, expiresAt.Unix(), *params.ExpiresAt)
		require.Equal(t, "buyer@example.com", *params.CustomerEmail)
		require.True(t, *params.AutomaticTax.Enabled)
		require.True(t, *params.TaxIDCollection.Enabled)

		require.Len(t, params.LineItems, 2)
		require.Equal(t, int64(69700), *params.LineItems[0].PriceData.UnitAmount)
		require.Nil(t, params.LineItems[0].PriceData.Recurring)
		require.Equal(t, int64(9700), *params.LineItems[1].PriceData.UnitAmount)

		require.Equal(t, "STARTER", params.Metadata[MetadataTier])
		require.Equal(t, "first_expired", params.Metadata[MetadataDealStatus])
		require.Equal(t, "fuegenix_blueprint", params.Metadata[MetadataBumps])
	})

	t.Run("monthly", func(t *testing.T) {
		params := NewCheckoutSession(CheckoutSessionInput{
			Quote: quote(t, pricing.Cart{
				Tier:       pricing.TierAgency,
				DealStatus: pricing.DealFinalExpired,
				Bumps:      []pricing.Bump{pricing.BumpSkoolMastermind},
			}),
			SuccessURL:        "https://whatsagent.io/thanks",
			CancelURL:         "https://whatsagent.io/",
			ClientReferenceID: "staged-id",
			ExpiresAt:         expiresAt,
		})

		require.Equal(t, string(stripe.CheckoutSessionModeSubscription), *params.Mode)
		require.Nil(t, params.CustomerEmail)
		require.Equal(t, "month", *params.LineItems[0].PriceData.Recurring.Interval)
		require.Equal(t, int64(39700), *params.LineItems[0].PriceData.UnitAmount)
		require.Nil(t, params.LineItems[1].PriceData.Recurring)
	})
}

func TestNewPaymentIntent(t *testing.T) {
	params := NewPaymentIntent(PaymentIntentInput{
		Quote: quote(t, pricing.Cart{
			Tier:       pricing.TierAgency,
			DealStatus: pricing.DealRegular,
		}),
		Amount:           237643,
		Email:            "buyer@example.com",
		CustomerID:       "cus_123",
		StagedCheckoutID: "staged-id",
		TaxCalculationID: "taxcalc_123",
	})

	require.Equal(t, int64(237643), *params.Amount)
	require.Equal(t, "usd", *params.Currency)
	require.True(t, *params.AutomaticPaymentMethods.Enabled)
	require.Equal(t, "cus_123", *params.Customer)
	require.Equal(t, "staged-id", params.Metadata[MetadataStagedCheckoutID])
	require.Equal(t, "taxcalc_123", params.Metadata[MetadataTaxCalculationID])
	require.Equal(t, "", params.Metadata[MetadataBumps])
}

func TestNewTaxTransaction(t *testing.T) {
	params := NewTaxTransaction("taxcalc_123", "pi_123")
	require.Equal(t, "taxcalc_123", *params.Calculation)
	require.Equal(t, "pi_123", *params.Reference)
	require.Equal(t, "tax-transaction-pi_123", *params.IdempotencyKey)
}

func TestNewCustomer(t *testing.T) {
	params := NewCustomer("buyer@example.com", "", address, taxid.Detect("51 824 753 556", "AU"))
	require.Equal(t, "buyer@example.com", *params.Email)
	require.Nil(t, params.Name)
	require.Len(t, params.TaxIDData, 1)
	require.Equal(t, "au_abn", *params.TaxIDData[0].Type)
	require.Equal(t, "51824753556", *params.TaxIDData[0].Value)
}
