package db

import (
	"context"
	"errors"

	"github.com/whatsagent/landing/cmd/checkout/model"
)

var errUnconfigured = errors.New("unconfigured mock call")

// NewStoreMock creates a new StoreMock instance.
func NewStoreMock(options ...StoreMockOption) *StoreMock {
	mock := &StoreMock{}

	for _, option := range options {
		option(mock)
	}

	return mock
}

// StoreMockOption is a function type that may configure a StoreMock instance.
type StoreMockOption func(*StoreMock)

// WithFirstOrderByStripeEventID configures a StoreMock instance to execute the passed
// function when FirstOrderByStripeEventID is called.
func WithFirstOrderByStripeEventID(fn firstOrderByStripeEventIDFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.firstOrderByStripeEventID = fn }
}

// WithFirstOrderByStripeObjectID configures a StoreMock instance to execute the passed
// function when FirstOrderByStripeObjectID is called.
func WithFirstOrderByStripeObjectID(fn firstOrderByStripeObjectIDFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.firstOrderByStripeObjectID = fn }
}

// WithFirstInvoiceByStripeEventID configures a StoreMock instance to execute the passed
// function when FirstInvoiceByStripeEventID is called.
func WithFirstInvoiceByStripeEventID(fn firstInvoiceByStripeEventIDFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.firstInvoiceByStripeEventID = fn }
}

// WithCreateOrder configures a StoreMock instance to execute the passed
// function when CreateOrder is called.
func WithCreateOrder(fn createOrderFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.createOrder = fn }
}

// WithCreateInvoice configures a StoreMock instance to execute the passed
// function when CreateInvoice is called.
func WithCreateInvoice(fn createInvoiceFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.createInvoice = fn }
}

// WithUpdateOrderStatusBySubscriptionID configures a StoreMock instance to execute the passed
// function when UpdateOrderStatusBySubscriptionID is called.
func WithUpdateOrderStatusBySubscriptionID(fn updateOrderStatusBySubscriptionIDFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.updateOrderStatusBySubscriptionID = fn }
}

// WithUpdateOrderStatusByPaymentIntentID configures a StoreMock instance to execute the passed
// function when UpdateOrderStatusByPaymentIntentID is called.
func WithUpdateOrderStatusByPaymentIntentID(fn updateOrderStatusByPaymentIntentIDFunc) StoreMockOption {
	return func(mock *StoreMock) { mock.updateOrderStatusByPaymentIntentID = fn }
}

type (
	firstOrderByStripeEventIDFunc          func(context.Context, string) (*model.Order, error)
	firstOrderByStripeObjectIDFunc         func(context.Context, string) (*model.Order, error)
	firstInvoiceByStripeEventIDFunc        func(context.Context, string) (*model.Invoice, error)
	createOrderFunc                        func(context.Context, *model.Order) error
	createInvoiceFunc                      func(context.Context, *model.Invoice, string) error
	updateOrderStatusBySubscriptionIDFunc  func(context.Context, string, model.OrderStatus) (*model.Order, error)
	updateOrderStatusByPaymentIntentIDFunc func(context.Context, string, model.OrderStatus) (*model.Order, error)
)

// StoreMock provides an implementation for mocking db.Store interactions.
// This is typically utilized for unit-testing.
type StoreMock struct {
	firstOrderByStripeEventID          firstOrderByStripeEventIDFunc
	firstOrderByStripeObjectID         firstOrderByStripeObjectIDFunc
	firstInvoiceByStripeEventID        firstInvoiceByStripeEventIDFunc
	createOrder                        createOrderFunc
	createInvoice                      createInvoiceFunc
	updateOrderStatusBySubscriptionID  updateOrderStatusBySubscriptionIDFunc
	updateOrderStatusByPaymentIntentID updateOrderStatusByPaymentIntentIDFunc
}

// FirstOrderByStripeEventID calls the function configured with WithFirstOrderByStripeEventID.
func (mock StoreMock) FirstOrderByStripeEventID(ctx context.Context, stripeEventID string) (*model.Order, error) {
	if mock.firstOrderByStripeEventID == nil {
		return nil, errUnconfigured
	}
	return mock.firstOrderByStripeEventID(ctx, stripeEventID)
}

// FirstOrderByStripeObjectID calls the function configured with WithFirstOrderByStripeObjectID.
func (mock StoreMock) FirstOrderByStripeObjectID(ctx context.Context, stripeObjectID string) (*model.Order, error) {
	if mock.firstOrderByStripeObjectID == nil {
		return nil, errUnconfigured
	}
	return mock.firstOrderByStripeObjectID(ctx, stripeObjectID)
}

// FirstInvoiceByStripeEventID calls the function configured with WithFirstInvoiceByStripeEventID.
func (mock StoreMock) FirstInvoiceByStripeEventID(ctx context.Context, stripeEventID string) (*model.Invoice, error) {
	if mock.firstInvoiceByStripeEventID == nil {
		return nil, errUnconfigured
	}
	return mock.firstInvoiceByStripeEventID(ctx, stripeEventID)
}

// CreateOrder calls the function configured with WithCreateOrder.
func (mock StoreMock) CreateOrder(ctx context.Context, order *model.Order) error {
	if mock.createOrder == nil {
		return errUnconfigured
	}
	return mock.createOrder(ctx, order)
}

// CreateInvoice calls the function configured with WithCreateInvoice.
func (mock StoreMock) CreateInvoice(ctx context.Context, invoice *model.Invoice, stripeSubscriptionID string) error {
	if mock.createInvoice == nil {
		return errUnconfigured
	}
	return mock.createInvoice(ctx, invoice, stripeSubscriptionID)
}

// UpdateOrderStatusBySubscriptionID calls the function configured with WithUpdateOrderStatusBySubscriptionID.
func (mock StoreMock) UpdateOrderStatusBySubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.OrderStatus) (*model.Order, error) {
	if mock.updateOrderStatusBySubscriptionID == nil {
		return nil, errUnconfigured
	}
	return mock.updateOrderStatusBySubscriptionID(ctx, stripeSubscriptionID, status)
}

// UpdateOrderStatusByPaymentIntentID calls the function configured with WithUpdateOrderStatusByPaymentIntentID.
func (mock StoreMock) UpdateOrderStatusByPaymentIntentID(ctx context.Context, stripePaymentIntentID string, status model.OrderStatus) (*model.Order, error) {
	if mock.updateOrderStatusByPaymentIntentID == nil {
		return nil, errUnconfigured
	}
	return mock.updateOrderStatusByPaymentIntentID(ctx, stripePaymentIntentID, status)
}
