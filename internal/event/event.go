// Package event provides types relevant to signal checkout changes outward
// to event consumers.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
)

var errKindInvalid = errors.New("kind is not string type")

// Parse accepts a slice of bytes (b) and decodes these bytes into the
// appropriate event type.
func Parse(b []byte) (interface{}, error) {
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal event; error: %w", err)
	}

	str, ok := m["kind"].(string)
	if !ok {
		return nil, errKindInvalid
	}

	var event interface{}
	switch Kind(str) {
	case StripeWebhook:
		event = &StripeWebhookEvent{}
	case OrderPaid:
		event = &OrderPaidEvent{}
	default:
		return nil, fmt.Errorf("unexpected event; kind: %s, error: %w", str, errKindInvalid)
	}

	if err := json.Unmarshal(b, event); err != nil {
		return nil, fmt.Errorf("unmarshal event; type: %T, error: %w", event, err)
	}

	return event, nil
}

type Kind string

const (
	StripeWebhook Kind = "stripe_webhook"
	OrderPaid     Kind = "order_paid"
)

// New creates a new Event instance.
func New(kind Kind) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// Event is a generic checkout system event.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// StripeWebhookEvent is fired when a Stripe webhook event is available to be
// processed.
type StripeWebhookEvent struct {
	Event
	StripeEvent stripe.Event `json:"stripeEvent"`
}

// NewStripeWebhookEvent creates a new StripeWebhookEvent instance.
func NewStripeWebhookEvent(stripeEvent stripe.Event) StripeWebhookEvent {
	return StripeWebhookEvent{
		Event:       New(StripeWebhook),
		StripeEvent: stripeEvent,
	}
}

// OrderPaidEvent is fired when an order has been paid for and recorded.
type OrderPaidEvent struct {
	Event
	OrderID  uuid.UUID `json:"orderId"`
	Email    string    `json:"email"`
	Tier     string    `json:"tier"`
	Bumps    []string  `json:"bumps"`
	Total    int64     `json:"total"`
	Currency string    `json:"currency"`
}

// NewOrderPaidEvent creates a new OrderPaidEvent instance.
func NewOrderPaidEvent(
	orderID uuid.UUID,
	email string,
	tier string,
	bumps []string,
	total int64,
	currency string,
) OrderPaidEvent {
	return OrderPaidEvent{
		Event:    New(OrderPaid),
		OrderID:  orderID,
		Email:    email,
		Tier:     tier,
		Bumps:    bumps,
		Total:    total,
		Currency: currency,
	}
}
