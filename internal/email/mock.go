package email

import (
	"context"
	"errors"
	"sync"
)

var errUnconfigured = errors.New("unconfigured mock call")

// NewMock creates a new Mock instance. Every sent e-mail is recorded unless
// WithError is passed.
func NewMock(options ...MockOption) *Mock {
	m := &Mock{
		mutex:  new(sync.RWMutex),
		orders: make(map[string][]OrderConfirmation),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// MockOption is a function type that may configure a Mock instance.
type MockOption func(*Mock)

// WithError configures the Mock to fail every send with err.
func WithError(err error) MockOption {
	return func(m *Mock) { m.err = err }
}

// Mock records e-mails instead of sending them. This is typically used for
// unit-testing.
type Mock struct {
	mutex  *sync.RWMutex
	err    error
	orders map[string][]OrderConfirmation
}

func (m *Mock) SendOrderConfirmation(ctx context.Context, to string, order OrderConfirmation) error {
	if m.err != nil {
		return m.err
	}
	if to == "" {
		return errUnconfigured
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.orders[to] = append(m.orders[to], order)
	return nil
}

// OrderConfirmations retrieves the order confirmations sent to the "to"
// e-mail.
func (m *Mock) OrderConfirmations(to string) []OrderConfirmation {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.orders[to]
}
