//go:build mailgunintegration
// +build mailgunintegration

package email

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/stretchr/testify/require"
)

func TestSendOrderConfirmation(t *testing.T) {
	tests := map[string]struct {
		to    string
		order OrderConfirmation
	}{
		"starter": {
			to: os.Getenv("CHECKOUT_EMAIL_TEST_TO"),
			order: OrderConfirmation{
				OrderID:  "integration",
				Tier:     "Starter",
				Bumps:    []string{"Credits Bundle"},
				Total:    69400,
				Currency: "usd",
			},
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			mg := mailgun.NewMailgun(os.Getenv("CHECKOUT_MAILGUN_DOMAIN"), os.Getenv("CHECKOUT_MAILGUN_API_KEY"))
			emailer := NewMailgunEmailer(mg, os.Getenv("CHECKOUT_EMAIL_FROM"))

			err := emailer.SendOrderConfirmation(ctx, test.to, test.order)
			require.Nil(t, err)
		})
	}
}
