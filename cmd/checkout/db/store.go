package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/whatsagent/landing/cmd/checkout/model"
	igorm "github.com/whatsagent/landing/internal/gorm"

	"gorm.io/gorm"
)

// NewStore creates a new Store instance.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Store is responsible for checkout store interactions.
type Store struct {
	db *gorm.DB
}

// Ping verifies the DB connection is alive.
func (s Store) Ping(ctx context.Context) error {
	return igorm.NewStore(s.db).Ping(ctx)
}

// FirstOrderByID retrieves the order with the specified id, invoices
// included. If the order is not found, gorm.ErrNotFound is returned.
func (s Store) FirstOrderByID(ctx context.Context, order *model.Order) error {
	if err := igorm.NewStore(s.db).First(ctx, order); err != nil {
		return fmt.Errorf("while retrieving order by id: %w", err)
	}
	return nil
}

// FirstOrderByStripeEventID retrieves the order created by the passed Stripe
// event ID. If no order is found, gorm.ErrNotFound is returned.
func (s Store) FirstOrderByStripeEventID(ctx context.Context, stripeEventID string) (*model.Order, error) {
	var order model.Order
	err := s.db.
		WithContext(ctx).
		Where("stripe_event_id = ?", stripeEventID).
		First(&order).Error
	if err != nil {
		return nil, fmt.Errorf("while retrieving order by stripe event ID: %w", err)
	}

	return &order, nil
}

// FirstOrderByStripeObjectID retrieves the order paid through the Checkout
// Session or PaymentIntent with the passed ID. If no order is found,
// gorm.ErrNotFound is returned.
func (s Store) FirstOrderByStripeObjectID(ctx context.Context, stripeObjectID string) (*model.Order, error) {
	var order model.Order
	err := s.db.
		WithContext(ctx).
		Where("stripe_object_id = ?", stripeObjectID).
		First(&order).Error
	if err != nil {
		return nil, fmt.Errorf("while retrieving order by stripe object ID: %w", err)
	}

	return &order, nil
}

// FirstInvoiceByStripeEventID retrieves the invoice with the passed stripe
// event ID. If no invoice is found, gorm.ErrNotFound is returned.
func (s Store) FirstInvoiceByStripeEventID(ctx context.Context, stripeEventID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := s.db.
		WithContext(ctx).
		Where("stripe_event_id = ?", stripeEventID).
		First(&invoice).Error
	if err != nil {
		return nil, fmt.Errorf("while retrieving invoice by stripe event ID: %w", err)
	}

	return &invoice, nil
}

// CreateOrder creates the passed order in the store. If an order paid through
// the same Stripe object already exists, gorm.ErrAlreadyExists is returned.
func (s Store) CreateOrder(ctx context.Context, order *model.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Order
		err := tx.Where("stripe_object_id = ?", order.StripeObjectID).First(&existing).Error
		if err == nil {
			return igorm.ErrAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("while retrieving order by stripe object ID: %w", err)
		}

		if err := igorm.NewStore(tx).Create(ctx, order); err != nil {
			return fmt.Errorf("while creating order: %w", err)
		}

		return nil
	})
}

// CreateInvoice creates the invoice if an order with the specified stripe
// subscription ID exists. If it does not, gorm.ErrNotFound is returned.
func (s Store) CreateInvoice(ctx context.Context, invoice *model.Invoice, stripeSubscriptionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.
			Where("stripe_subscription_id = ?", stripeSubscriptionID).
			First(&order).Error; err != nil {
			return fmt.Errorf("while retrieving invoice order: %w", err)
		}

		invoice.OrderID = order.ID

		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("while creating invoice: %w", err)
		}

		return nil
	})
}

// UpdateOrderStatusBySubscriptionID sets the status of the order associated
// with the Stripe subscription ID. The updated order is returned.
func (s Store) UpdateOrderStatusBySubscriptionID(
	ctx context.Context,
	stripeSubscriptionID string,
	status model.OrderStatus,
) (*model.Order, error) {
	return s.updateOrderStatus(ctx, "stripe_subscription_id = ?", stripeSubscriptionID, status)
}

// UpdateOrderStatusByPaymentIntentID sets the status of the order paid with
// the Stripe PaymentIntent ID. The updated order is returned.
func (s Store) UpdateOrderStatusByPaymentIntentID(
	ctx context.Context,
	stripePaymentIntentID string,
	status model.OrderStatus,
) (*model.Order, error) {
	return s.updateOrderStatus(ctx, "stripe_payment_intent_id = ?", stripePaymentIntentID, status)
}

func (s Store) updateOrderStatus(
	ctx context.Context,
	query string,
	arg string,
	status model.OrderStatus,
) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(query, arg).First(&order).Error; err != nil {
			return fmt.Errorf("while retrieving order to update: %w", err)
		}

		if err := tx.Model(&order).Update("status", status).Error; err != nil {
			return fmt.Errorf("while updating order status: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
