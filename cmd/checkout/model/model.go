// Package model defines the persisted entities of the checkout service.
package model

import (
	"context"
	"strings"

	"github.com/whatsagent/landing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is a paid WhatsAgent purchase. StripeObjectID is the ID of the
// Checkout Session or PaymentIntent through which it was paid. Amounts are
// in the smallest currency unit.
type Order struct {
	model.Model
	StripeEventID         string
	StripeObjectID        string
	StripeCustomerID      string
	StripeSubscriptionID  string
	StripePaymentIntentID string

	VisitorID  string
	Email      string
	Tier       string
	DealStatus string
	Billing    string
	Bumps      string

	Currency      string
	Subtotal      int64
	Tax           int64
	Total         int64
	TaxIDType     string
	ReverseCharge bool

	Status OrderStatus

	Invoices []Invoice
}

// BumpList splits the comma-separated Bumps column.
func (o Order) BumpList() []string {
	if o.Bumps == "" {
		return []string{}
	}
	return strings.Split(o.Bumps, ",")
}

// JoinBumps joins bumps into the form stored by the Bumps column.
func JoinBumps(bumps []string) string {
	return strings.Join(bumps, ",")
}

// Create creates the order in db.
func (o *Order) Create(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Create(o).Error
}

// First retrieves the order with the ID of o.
func (o *Order) First(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Preload("Invoices").First(o, o.ID).Error
}

type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRefunded OrderStatus = "refunded"
)

// Invoice is a paid renewal of a monthly order.
type Invoice struct {
	model.Model
	OrderID uuid.UUID

	StripeEventID   string
	StripeInvoiceID string
	Amount          int64

	Status InvoiceStatus
}

type InvoiceStatus string

const (
	InvoiceStatusPaid InvoiceStatus = "paid"
)
