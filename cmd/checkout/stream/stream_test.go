package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/whatsagent/landing/cmd/checkout/db"
	"github.com/whatsagent/landing/cmd/checkout/model"
	"github.com/whatsagent/landing/cmd/checkout/staging"
	"github.com/whatsagent/landing/internal/email"
	"github.com/whatsagent/landing/internal/event"
	igorm "github.com/whatsagent/landing/internal/gorm"
	"github.com/whatsagent/landing/internal/metrics"
	imodel "github.com/whatsagent/landing/internal/model"
	"github.com/whatsagent/landing/internal/stream"
	istripe "github.com/whatsagent/landing/internal/stripe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func TestEventHandlerInputValidation(t *testing.T) {
	type expected struct {
		err error
	}
	tests := map[string]struct {
		event *event.StripeWebhookEvent
		exp   expected
	}{
		"event ID": {
			event: stripeEvent("", checkoutSessionCompleted, `{}`),
			exp: expected{
				err: fmt.Errorf("stripe event ID empty: %w", errNoRetry),
			},
		},
		"event data": {
			event: &event.StripeWebhookEvent{
				StripeEvent: stripe.Event{ID: uuid.NewString(), Type: checkoutSessionCompleted},
			},
			exp: expected{
				err: fmt.Errorf("stripe event data nil: %w", errNoRetry),
			},
		},
		"checkout ClientReferenceID": {
			event: stripeEvent(uuid.NewString(), checkoutSessionCompleted, `{
				"client_reference_id": "",
				"mode": "payment"
			}`),
			exp: expected{
				err: fmt.Errorf("checkout ClientReferenceID empty: %w", errNoRetry),
			},
		},
		"checkout ID": {
			event: stripeEvent(uuid.NewString(), checkoutSessionCompleted, `{
				"id": "",
				"client_reference_id": "non-empty",
				"mode": "payment"
			}`),
			exp: expected{
				err: fmt.Errorf("checkout ID empty: %w", errNoRetry),
			},
		},
		"subscription checkout Subscription": {
			event: stripeEvent(uuid.NewString(), checkoutSessionCompleted, `{
				"id": "non-empty",
				"client_reference_id": "non-empty",
				"mode": "subscription"
			}`),
			exp: expected{
				err: fmt.Errorf("checkout Subscription nil: %w", errNoRetry),
			},
		},
		"subscription checkout Subscription ID": {
			event: stripeEvent(uuid.NewString(), checkoutSessionCompleted, `{
				"subscription": {"id": ""},
				"id": "non-empty",
				"client_reference_id": "non-empty",
				"mode": "subscription"
			}`),
			exp: expected{
				err: fmt.Errorf("checkout Subscription ID empty: %w", errNoRetry),
			},
		},
		"checkout PaymentStatus": {
			event: stripeEvent(uuid.NewString(), checkoutAsyncPaymentSuccess, `{
				"payment_status": "unpaid",
				"id": "non-empty",
				"client_reference_id": "non-empty",
				"mode": "payment"
			}`),
			exp: expected{
				err: fmt.Errorf("checkout payment status is not \"paid\": %w", errNoRetry),
			},
		},
		"payment intent ID": {
			event: stripeEvent(uuid.NewString(), paymentIntentSucceeded, `{"id": ""}`),
			exp: expected{
				err: fmt.Errorf("payment intent ID empty: %w", errNoRetry),
			},
		},
		"invoice ID": {
			event: stripeEvent(uuid.NewString(), invoicePaid, `{"id": ""}`),
			exp: expected{
				err: fmt.Errorf("invoice ID empty: %w", errNoRetry),
			},
		},
		"invoice Subscription": {
			event: stripeEvent(uuid.NewString(), invoicePaid, `{"id": "non-empty"}`),
			exp: expected{
				err: fmt.Errorf("invoice Subscription nil: %w", errNoRetry),
			},
		},
		"invoice Subscription ID": {
			event: stripeEvent(uuid.NewString(), invoicePaid, `{
				"subscription": {"id": ""},
				"id": "non-empty"
			}`),
			exp: expected{
				err: fmt.Errorf("invoice Subscription ID empty: %w", errNoRetry),
			},
		},
		"subscription ID": {
			event: stripeEvent(uuid.NewString(), customerSubscriptionDeleted, `{"id": ""}`),
			exp: expected{
				err: fmt.Errorf("subscription ID empty: %w", errNoRetry),
			},
		},
		"charge PaymentIntent": {
			event: stripeEvent(uuid.NewString(), chargeRefunded, `{"id": "non-empty"}`),
			exp: expected{
				err: fmt.Errorf("charge PaymentIntent nil: %w", errNoRetry),
			},
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			s := newSuite()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			err := s.handler.handleStripeEvent(ctx, test.event)
			require.ErrorIs(t, err, errNoRetry)
			require.Equal(t, test.exp.err.Error(), err.Error())
			require.Empty(t, s.store.orders)
		})
	}
}

func TestCheckoutSessionCompleted(t *testing.T) {
	t.Parallel()

	type expected struct {
		order   model.Order
		written int
		err     error
	}
	tests := map[string]struct {
		raw      string
		staged   map[string]*staging.Checkout
		existing []*model.Order
		exp      expected
	}{
		"one-time": {
			raw: `{
				"id": "cs_1",
				"client_reference_id": "staged-1",
				"mode": "payment",
				"payment_status": "paid",
				"currency": "usd",
				"amount_subtotal": 99700,
				"amount_total": 99700,
				"total_details": {"amount_tax": 0},
				"customer": {"id": "cus_1"},
				"payment_intent": {"id": "pi_1"},
				"customer_details": {
					"email": "buyer@example.com",
					"tax_ids": [{"type": "eu_vat", "value": "DE123456789"}]
				}
			}`,
			staged: map[string]*staging.Checkout{"staged-1": stagedCheckout()},
			exp: expected{
				order: model.Order{
					StripeEventID:         "evt_1",
					StripeObjectID:        "cs_1",
					StripeCustomerID:      "cus_1",
					StripePaymentIntentID: "pi_1",
					VisitorID:             "visitor-1",
					Email:                 "buyer@example.com",
					Tier:                  "PROFESSIONAL",
					DealStatus:            "regular",
					Billing:               "one_time",
					Bumps:                 "credits_bundle",
					Currency:              "usd",
					Subtotal:              99700,
					Total:                 99700,
					TaxIDType:             "eu_vat",
					ReverseCharge:         true,
					Status:                model.OrderStatusPaid,
				},
				written: 1,
			},
		},
		"subscription": {
			raw: `{
				"id": "cs_2",
				"client_reference_id": "staged-1",
				"mode": "subscription",
				"payment_status": "paid",
				"currency": "usd",
				"amount_subtotal": 39700,
				"amount_total": 47243,
				"total_details": {"amount_tax": 7543},
				"customer": {"id": "cus_2"},
				"subscription": {"id": "sub_2"}
			}`,
			staged: map[string]*staging.Checkout{"staged-1": stagedCheckout()},
			exp: expected{
				order: model.Order{
					StripeEventID:        "evt_1",
					StripeObjectID:       "cs_2",
					StripeCustomerID:     "cus_2",
					StripeSubscriptionID: "sub_2",
					VisitorID:            "visitor-1",
					Email:                "staged@example.com",
					Tier:                 "PROFESSIONAL",
					DealStatus:           "regular",
					Billing:              "one_time",
					Bumps:                "credits_bundle",
					Currency:             "usd",
					Subtotal:             39700,
					Tax:                  7543,
					Total:                47243,
					Status:               model.OrderStatusPaid,
				},
				written: 1,
			},
		},
		"already processed": {
			raw: `{
				"id": "cs_1",
				"client_reference_id": "staged-1",
				"mode": "payment",
				"payment_status": "paid"
			}`,
			staged:   map[string]*staging.Checkout{"staged-1": stagedCheckout()},
			existing: []*model.Order{{StripeEventID: "evt_0", StripeObjectID: "cs_1"}},
			exp:      expected{},
		},
		"staged checkout expired": {
			raw: `{
				"id": "cs_1",
				"client_reference_id": "staged-1",
				"mode": "payment",
				"payment_status": "paid"
			}`,
			exp: expected{err: errNoRetry},
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := newSuite()
			s.staged = test.staged
			s.store.orders = test.existing

			err := s.handler.handleStripeEvent(
				context.Background(),
				stripeEvent("evt_1", checkoutSessionCompleted, test.raw),
			)
			if test.exp.err != nil {
				require.ErrorIs(t, err, test.exp.err)
				return
			}
			require.Nil(t, err)
			require.Len(t, s.written(), test.exp.written)

			if test.exp.written == 0 {
				require.Len(t, s.store.orders, len(test.existing))
				return
			}

			require.Len(t, s.store.orders, 1)
			order := *s.store.orders[0]
			order.Model = imodel.Model{}
			require.Equal(t, test.exp.order, order)

			parsed, err := event.Parse(s.written()[0])
			require.Nil(t, err)
			paid, ok := parsed.(*event.OrderPaidEvent)
			require.True(t, ok)
			require.Equal(t, s.store.orders[0].ID, paid.OrderID)
			require.Equal(t, test.exp.order.Email, paid.Email)
			require.Equal(t, []string{"credits_bundle"}, paid.Bumps)
			require.Equal(t, test.exp.order.Total, paid.Total)
		})
	}
}

func TestCheckoutSessionDelayedPayment(t *testing.T) {
	t.Parallel()

	unpaid := `{
		"id": "cs_3",
		"client_reference_id": "staged-1",
		"mode": "payment",
		"payment_status": "unpaid",
		"currency": "eur",
		"amount_subtotal": 99700,
		"amount_total": 99700
	}`
	paid := `{
		"id": "cs_3",
		"client_reference_id": "staged-1",
		"mode": "payment",
		"payment_status": "paid",
		"currency": "eur",
		"amount_subtotal": 99700,
		"amount_total": 99700,
		"payment_intent": {"id": "pi_3"}
	}`

	t.Run("settles", func(t *testing.T) {
		t.Parallel()

		s := newSuite()
		s.staged = map[string]*staging.Checkout{"staged-1": stagedCheckout()}

		err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", checkoutSessionCompleted, unpaid))
		require.Nil(t, err)
		require.Empty(t, s.store.orders)
		require.Empty(t, s.written())
		require.Equal(t, map[string]time.Duration{"staged-1": delayedPaymentTTL}, s.extended)

		err = s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_2", checkoutAsyncPaymentSuccess, paid))
		require.Nil(t, err)
		require.Len(t, s.store.orders, 1)
		require.Equal(t, "evt_2", s.store.orders[0].StripeEventID)
		require.Equal(t, "cs_3", s.store.orders[0].StripeObjectID)
		require.Equal(t, "pi_3", s.store.orders[0].StripePaymentIntentID)
		require.Equal(t, "eur", s.store.orders[0].Currency)
		require.Len(t, s.written(), 1)

		// A redelivered settlement is recorded once.
		err = s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_2", checkoutAsyncPaymentSuccess, paid))
		require.Nil(t, err)
		require.Len(t, s.store.orders, 1)
	})

	t.Run("fails", func(t *testing.T) {
		t.Parallel()

		s := newSuite()
		s.staged = map[string]*staging.Checkout{"staged-1": stagedCheckout()}

		err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", checkoutSessionCompleted, unpaid))
		require.Nil(t, err)

		err = s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_2", checkoutAsyncPaymentFailure, unpaid))
		require.Nil(t, err)
		require.Empty(t, s.store.orders)
		require.Empty(t, s.written())
	})

	t.Run("staged checkout expired", func(t *testing.T) {
		t.Parallel()

		s := newSuite()
		err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", checkoutSessionCompleted, unpaid))
		require.ErrorIs(t, err, errNoRetry)
		require.Empty(t, s.extended)
	})
}

func TestPaymentIntentSucceeded(t *testing.T) {
	t.Parallel()

	s := newSuite()
	s.staged = map[string]*staging.Checkout{"staged-1": stagedCheckout()}

	raw := fmt.Sprintf(`{
		"id": "pi_1",
		"amount": 118643,
		"currency": "usd",
		"customer": {"id": "cus_1"},
		"metadata": {%q: "staged-1", %q: "taxcalc_1"}
	}`, istripe.MetadataStagedCheckoutID, istripe.MetadataTaxCalculationID)

	err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", paymentIntentSucceeded, raw))
	require.Nil(t, err)

	params := s.stripe.PopTaxTransaction()
	require.Equal(t, "taxcalc_1", *params.Calculation)
	require.Equal(t, "pi_1", *params.Reference)

	require.Len(t, s.store.orders, 1)
	order := s.store.orders[0]
	require.Equal(t, "pi_1", order.StripeObjectID)
	require.Equal(t, "pi_1", order.StripePaymentIntentID)
	require.Equal(t, "cus_1", order.StripeCustomerID)
	require.Equal(t, "staged@example.com", order.Email)
	require.Equal(t, int64(118643), order.Total)
	require.Equal(t, int64(99700), order.Subtotal)
	require.Len(t, s.written(), 1)

	// A redelivery finds the order processed.
	err = s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", paymentIntentSucceeded, raw))
	require.Nil(t, err)
	require.Len(t, s.store.orders, 1)
	require.Equal(t, 0, s.stripe.Calls())
}

func TestPaymentIntentSucceededNotStaged(t *testing.T) {
	t.Parallel()

	s := newSuite()
	err := s.handler.handleStripeEvent(
		context.Background(),
		stripeEvent("evt_1", paymentIntentSucceeded, `{"id": "pi_1", "amount": 100}`),
	)
	require.Nil(t, err)
	require.Empty(t, s.store.orders)
}

func TestPaymentIntentSucceededTaxTransactionFailure(t *testing.T) {
	t.Parallel()

	errStripe := errors.New("stripe unavailable")

	s := newSuite()
	s.staged = map[string]*staging.Checkout{"staged-1": stagedCheckout()}
	s.handler.stripe = istripe.NewMock(istripe.WithError(errStripe))

	raw := fmt.Sprintf(
		`{"id": "pi_1", "metadata": {%q: "staged-1", %q: "taxcalc_1"}}`,
		istripe.MetadataStagedCheckoutID,
		istripe.MetadataTaxCalculationID,
	)
	err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", paymentIntentSucceeded, raw))
	require.ErrorIs(t, err, errStripe)
	require.NotErrorIs(t, err, errNoRetry)
	require.Empty(t, s.store.orders)
}

func TestInvoicePaid(t *testing.T) {
	t.Parallel()

	type expected struct {
		invoices int
		err      error
	}
	tests := map[string]struct {
		raw      string
		existing []*model.Order
		exp      expected
	}{
		"renewal": {
			raw: `{
				"id": "in_1",
				"billing_reason": "subscription_cycle",
				"amount_paid": 39700,
				"subscription": {"id": "sub_1"}
			}`,
			existing: []*model.Order{{StripeSubscriptionID: "sub_1"}},
			exp:      expected{invoices: 1},
		},
		"first invoice": {
			raw: `{
				"id": "in_1",
				"billing_reason": "subscription_create",
				"amount_paid": 39700,
				"subscription": {"id": "sub_1"}
			}`,
			existing: []*model.Order{{StripeSubscriptionID: "sub_1"}},
			exp:      expected{invoices: 0},
		},
		"order not recorded": {
			raw: `{
				"id": "in_1",
				"billing_reason": "subscription_cycle",
				"amount_paid": 39700,
				"subscription": {"id": "sub_1"}
			}`,
			exp: expected{err: errOrderDNE},
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := newSuite()
			s.store.orders = test.existing

			err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", invoicePaid, test.raw))
			if test.exp.err != nil {
				require.ErrorIs(t, err, test.exp.err)
				require.NotErrorIs(t, err, errNoRetry)
				return
			}
			require.Nil(t, err)
			require.Len(t, s.store.invoices, test.exp.invoices)

			if test.exp.invoices == 0 {
				return
			}
			invoice := s.store.invoices[0]
			require.Equal(t, "in_1", invoice.StripeInvoiceID)
			require.Equal(t, int64(39700), invoice.Amount)
			require.Equal(t, model.InvoiceStatusPaid, invoice.Status)

			// A redelivery finds the invoice processed.
			err = s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", invoicePaid, test.raw))
			require.Nil(t, err)
			require.Len(t, s.store.invoices, 1)
		})
	}
}

func TestOrderStatusChanges(t *testing.T) {
	t.Parallel()

	type expected struct {
		status model.OrderStatus
		err    error
	}
	tests := map[string]struct {
		eventType string
		raw       string
		exp       expected
	}{
		"subscription deleted": {
			eventType: customerSubscriptionDeleted,
			raw:       `{"id": "sub_1"}`,
			exp:       expected{status: model.OrderStatusCanceled},
		},
		"unknown subscription deleted": {
			eventType: customerSubscriptionDeleted,
			raw:       `{"id": "sub_2"}`,
			exp:       expected{status: model.OrderStatusPaid, err: errNoRetry},
		},
		"charge refunded": {
			eventType: chargeRefunded,
			raw:       `{"id": "ch_1", "refunded": true, "payment_intent": {"id": "pi_1"}}`,
			exp:       expected{status: model.OrderStatusRefunded},
		},
		"charge partially refunded": {
			eventType: chargeRefunded,
			raw:       `{"id": "ch_1", "refunded": false, "payment_intent": {"id": "pi_1"}}`,
			exp:       expected{status: model.OrderStatusPaid},
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := newSuite()
			s.store.orders = []*model.Order{{
				StripeSubscriptionID:  "sub_1",
				StripePaymentIntentID: "pi_1",
				Status:                model.OrderStatusPaid,
			}}

			err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", test.eventType, test.raw))
			if test.exp.err != nil {
				require.ErrorIs(t, err, test.exp.err)
			} else {
				require.Nil(t, err)
			}
			require.Equal(t, test.exp.status, s.store.orders[0].Status)
		})
	}
}

func TestUnknownStripeEvent(t *testing.T) {
	t.Parallel()

	s := newSuite()
	err := s.handler.handleStripeEvent(context.Background(), stripeEvent("evt_1", "customer.created", `{}`))
	require.Nil(t, err)
}

func TestHandleOrderPaid(t *testing.T) {
	t.Parallel()

	s := newSuite()
	orderID := uuid.New()
	paid := event.NewOrderPaidEvent(orderID, "buyer@example.com", "STARTER", []string{"credits_bundle"}, 59400, "usd")

	err := s.handler.handleOrderPaid(context.Background(), &paid)
	require.Nil(t, err)

	sent := s.emailer.OrderConfirmations("buyer@example.com")
	require.Len(t, sent, 1)
	require.Equal(t, email.OrderConfirmation{
		OrderID:  orderID.String(),
		Tier:     "STARTER",
		Bumps:    []string{"credits_bundle"},
		Total:    59400,
		Currency: "usd",
	}, sent[0])

	noEmail := event.NewOrderPaidEvent(orderID, "", "STARTER", nil, 49700, "usd")
	require.ErrorIs(t, s.handler.handleOrderPaid(context.Background(), &noEmail), errNoRetry)
}

func TestLaunch(t *testing.T) {
	t.Parallel()

	paid := event.NewOrderPaidEvent(uuid.New(), "buyer@example.com", "AGENCY", nil, 199700, "usd")
	b, err := json.Marshal(&paid)
	require.Nil(t, err)

	messages := make(chan *stream.Message, 2)
	messages <- &stream.Message{ID: "1-0", Payload: []byte(`{"kind": "nope"}`)}
	messages <- &stream.Message{ID: "2-0", Payload: b}

	var (
		mutex sync.Mutex
		acked []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSuite()
	s.handler.stream = stream.NewClientMock(
		stream.WithClaim(func(context.Context, time.Duration) (*stream.Message, error) {
			return nil, stream.ErrNoPending
		}),
		stream.WithRead(func(ctx context.Context) (*stream.Message, error) {
			select {
			case m := <-messages:
				return m, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
		stream.WithAck(func(_ context.Context, m *stream.Message) error {
			mutex.Lock()
			defer mutex.Unlock()
			acked = append(acked, m.ID)
			if len(acked) == 2 {
				cancel()
			}
			return nil
		}),
	)

	done := make(chan error)
	go func() { done <- s.handler.Launch(ctx) }()

	select {
	case err := <-done:
		require.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not shut down")
	}

	require.Equal(t, []string{"1-0", "2-0"}, acked)
	require.Len(t, s.emailer.OrderConfirmations("buyer@example.com"), 1)
}

func TestLaunchLeavesFailedEventPending(t *testing.T) {
	t.Parallel()

	paid := event.NewOrderPaidEvent(uuid.New(), "buyer@example.com", "AGENCY", nil, 199700, "usd")
	b, err := json.Marshal(&paid)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reads int
	s := newSuite()
	s.handler.emailer = email.NewMock(email.WithError(errors.New("mailgun unavailable")))
	s.handler.stream = stream.NewClientMock(
		stream.WithClaim(func(context.Context, time.Duration) (*stream.Message, error) {
			return nil, stream.ErrNoPending
		}),
		stream.WithRead(func(ctx context.Context) (*stream.Message, error) {
			reads++
			if reads > 1 {
				cancel()
				return nil, ctx.Err()
			}
			return &stream.Message{ID: "1-0", Payload: b}, nil
		}),
		stream.WithAck(func(context.Context, *stream.Message) error {
			t.Error("failed event acknowledged")
			return nil
		}),
	)

	require.Nil(t, s.handler.Launch(ctx))
}

func TestLaunchDeadLettersExhaustedEvent(t *testing.T) {
	t.Parallel()

	paid := event.NewOrderPaidEvent(uuid.New(), "buyer@example.com", "AGENCY", nil, 199700, "usd")
	b, err := json.Marshal(&paid)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan *stream.Message, 2)
	messages <- &stream.Message{ID: "1-0", Payload: b, Deliveries: 2}
	messages <- &stream.Message{ID: "1-0", Payload: b, Deliveries: 3}

	s := newSuite()
	s.handler = NewHandler(
		zap.NewNop(),
		staging.NewClientMock(),
		s.store.mock(),
		s.stripe,
		stream.NewClientMock(
			stream.WithClaim(func(ctx context.Context, _ time.Duration) (*stream.Message, error) {
				select {
				case m := <-messages:
					return m, nil
				default:
					cancel()
					return nil, ctx.Err()
				}
			}),
			stream.WithAck(func(context.Context, *stream.Message) error {
				t.Error("failed event acknowledged")
				return nil
			}),
		),
		email.NewMock(email.WithError(errors.New("mailbox does not exist"))),
		metrics.New(),
		WithMaxDeliveries(3),
	)
	mock := s.handler.stream.(*stream.ClientMock)

	require.Nil(t, s.handler.Launch(ctx))

	deadLetters := mock.DeadLetters()
	require.Len(t, deadLetters, 1)
	require.Equal(t, "1-0", deadLetters[0].Message.ID)
	require.Equal(t, int64(3), deadLetters[0].Message.Deliveries)
	require.Contains(t, deadLetters[0].Reason, "mailbox does not exist")
	require.Empty(t, mock.Acks())
}

// --- helpers ---

type suite struct {
	handler *Handler
	store   *store
	stripe  *istripe.Mock
	emailer *email.Mock
	stream  *stream.ClientMock
	staged  map[string]*staging.Checkout

	mutex    sync.Mutex
	extended map[string]time.Duration
}

func newSuite() *suite {
	s := &suite{
		store:    &store{},
		stripe:   istripe.NewMock(),
		emailer:  email.NewMock(),
		stream:   stream.NewClientMock(),
		extended: make(map[string]time.Duration),
	}

	stager := staging.NewClientMock(
		staging.WithFetchCheckout(func(_ context.Context, id string) (*staging.Checkout, error) {
			checkout, ok := s.staged[id]
			if !ok {
				return nil, staging.ErrNotFound
			}
			return checkout, nil
		}),
		staging.WithExtendCheckout(func(_ context.Context, id string, ttl time.Duration) error {
			if _, ok := s.staged[id]; !ok {
				return staging.ErrNotFound
			}
			s.mutex.Lock()
			defer s.mutex.Unlock()
			s.extended[id] = ttl
			return nil
		}),
	)

	s.handler = NewHandler(
		zap.NewNop(),
		stager,
		s.store.mock(),
		s.stripe,
		s.stream,
		s.emailer,
		metrics.New(),
	)
	return s
}

func (s *suite) written() [][]byte {
	return s.stream.Writes()
}

func stripeEvent(id, eventType, raw string) *event.StripeWebhookEvent {
	e := event.NewStripeWebhookEvent(stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	})
	return &e
}

func stagedCheckout() *staging.Checkout {
	return &staging.Checkout{
		VisitorID:  "visitor-1",
		Email:      "staged@example.com",
		Tier:       "PROFESSIONAL",
		DealStatus: "regular",
		Billing:    "one_time",
		Bumps:      []string{"credits_bundle"},
		Subtotal:   99700,
		Tax:        18943,
		Total:      118643,
	}
}

// store keeps orders and invoices in memory behind a db.StoreMock.
type store struct {
	mutex    sync.Mutex
	orders   []*model.Order
	invoices []*model.Invoice
}

func (s *store) mock() *db.StoreMock {
	return db.NewStoreMock(
		db.WithFirstOrderByStripeEventID(func(_ context.Context, id string) (*model.Order, error) {
			return s.findOrder(func(o *model.Order) bool { return o.StripeEventID == id })
		}),
		db.WithFirstOrderByStripeObjectID(func(_ context.Context, id string) (*model.Order, error) {
			return s.findOrder(func(o *model.Order) bool { return o.StripeObjectID == id })
		}),
		db.WithFirstInvoiceByStripeEventID(func(_ context.Context, id string) (*model.Invoice, error) {
			s.mutex.Lock()
			defer s.mutex.Unlock()
			for _, invoice := range s.invoices {
				if invoice.StripeEventID == id {
					return invoice, nil
				}
			}
			return nil, igorm.ErrNotFound
		}),
		db.WithCreateOrder(func(_ context.Context, order *model.Order) error {
			if _, err := s.findOrder(func(o *model.Order) bool { return o.StripeObjectID == order.StripeObjectID }); err == nil {
				return igorm.ErrAlreadyExists
			}
			s.mutex.Lock()
			defer s.mutex.Unlock()
			order.ID = uuid.New()
			s.orders = append(s.orders, order)
			return nil
		}),
		db.WithCreateInvoice(func(_ context.Context, invoice *model.Invoice, subscriptionID string) error {
			order, err := s.findOrder(func(o *model.Order) bool { return o.StripeSubscriptionID == subscriptionID })
			if err != nil {
				return err
			}
			s.mutex.Lock()
			defer s.mutex.Unlock()
			invoice.OrderID = order.ID
			s.invoices = append(s.invoices, invoice)
			return nil
		}),
		db.WithUpdateOrderStatusBySubscriptionID(func(_ context.Context, id string, status model.OrderStatus) (*model.Order, error) {
			return s.updateStatus(func(o *model.Order) bool { return o.StripeSubscriptionID == id }, status)
		}),
		db.WithUpdateOrderStatusByPaymentIntentID(func(_ context.Context, id string, status model.OrderStatus) (*model.Order, error) {
			return s.updateStatus(func(o *model.Order) bool { return o.StripePaymentIntentID == id }, status)
		}),
	)
}

func (s *store) findOrder(match func(*model.Order) bool) (*model.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, order := range s.orders {
		if match(order) {
			return order, nil
		}
	}
	return nil, fmt.Errorf("order lookup: %w", igorm.ErrNotFound)
}

func (s *store) updateStatus(match func(*model.Order) bool, status model.OrderStatus) (*model.Order, error) {
	order, err := s.findOrder(match)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	order.Status = status
	return order, nil
}
