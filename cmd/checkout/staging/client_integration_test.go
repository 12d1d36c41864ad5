//go:build integration
// +build integration

package staging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iredis "github.com/whatsagent/landing/internal/redis"
)

func TestIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	suite := iredis.InitSuite(ctx, t)
	client := NewClient(suite.Redis)

	expected := Checkout{
		VisitorID:  "visitor-abcdefghijklmnop",
		Email:      "buyer@example.com",
		Tier:       "AGENCY",
		DealStatus: "regular",
		Billing:    "one_time",
		Bumps:      []string{"credits_bundle"},
		Subtotal:   219400,
		Total:      219400,
	}

	var id string
	t.Run("stage checkout", func(t *testing.T) {
		res, err := client.StageCheckout(ctx, expected, time.Now().Add(2*time.Second))
		require.Nil(t, err)
		id = res
	})

	t.Run("fetch checkout", func(t *testing.T) {
		actual, err := client.FetchCheckout(ctx, id)
		require.Nil(t, err)
		assert.Equal(t, expected, *actual)
	})

	t.Run("extend checkout", func(t *testing.T) {
		extended, err := client.StageCheckout(ctx, expected, time.Now().Add(2*time.Second))
		require.Nil(t, err)
		require.Nil(t, client.ExtendCheckout(ctx, extended, time.Minute))

		time.Sleep(3 * time.Second)
		actual, err := client.FetchCheckout(ctx, extended)
		require.Nil(t, err)
		assert.Equal(t, expected, *actual)
	})

	t.Run("fetch expired checkout", func(t *testing.T) {
		_, err := client.FetchCheckout(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("extend expired checkout", func(t *testing.T) {
		err := client.ExtendCheckout(ctx, id, time.Minute)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
