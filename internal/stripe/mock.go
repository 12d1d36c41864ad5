package stripe

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"

	"github.com/stripe/stripe-go/v76"
)

var errMissingSignature = errors.New("missing webhook signature")

// MockOption is a function type that may configure a Mock instance.
type MockOption func(*Mock)

// WithTaxCalculation configures the Mock to answer TaxCalculation calls with
// fn.
func WithTaxCalculation(fn func(*stripe.TaxCalculationParams) (*stripe.TaxCalculation, error)) MockOption {
	return func(m *Mock) { m.taxCalculation = fn }
}

// WithError configures the Mock to fail every Stripe call with err.
func WithError(err error) MockOption {
	return func(m *Mock) { m.err = err }
}

// NewMock creates a new Mock instance. Unless configured otherwise, tax
// calculations return zero tax.
func NewMock(options ...MockOption) *Mock {
	m := &Mock{
		mutex: new(sync.Mutex),
		taxCalculation: func(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
			var total int64
			for _, item := range params.LineItems {
				total += *item.Amount
			}
			return &stripe.TaxCalculation{ID: "taxcalc_mock", AmountTotal: total}, nil
		},
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Mock records the parameters of Stripe calls. This type is typically used
// during unit-testing.
type Mock struct {
	mutex *sync.Mutex
	err   error

	taxCalculation func(*stripe.TaxCalculationParams) (*stripe.TaxCalculation, error)

	checkoutSessions []*stripe.CheckoutSessionParams
	paymentIntents   []*stripe.PaymentIntentParams
	taxCalculations  []*stripe.TaxCalculationParams
	taxTransactions  []*stripe.TaxTransactionCreateFromCalculationParams
	customers        []*stripe.CustomerParams
}

func (m *Mock) CheckoutSession(params *stripe.CheckoutSessionParams) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.checkoutSessions = append(m.checkoutSessions, params)
	return "https://checkout.stripe.com/c/pay/cs_test_mock", nil
}

func (m *Mock) PaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.paymentIntents = append(m.paymentIntents, params)
	return &stripe.PaymentIntent{
		ID:           "pi_mock",
		ClientSecret: "pi_mock_secret_mock",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
	}, nil
}

func (m *Mock) TaxCalculation(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.taxCalculations = append(m.taxCalculations, params)
	return m.taxCalculation(params)
}

func (m *Mock) TaxTransaction(params *stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.taxTransactions = append(m.taxTransactions, params)
	return &stripe.TaxTransaction{ID: "tax_mock", Reference: *params.Reference}, nil
}

func (m *Mock) Customer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.customers = append(m.customers, params)
	return &stripe.Customer{ID: "cus_mock"}, nil
}

// ConstructEvent decodes b without verifying the signature. An empty
// signature is rejected, and so is an event of another API version.
func (m *Mock) ConstructEvent(b []byte, signature string) (stripe.Event, error) {
	var event stripe.Event
	if signature == "" {
		return event, errMissingSignature
	}
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&event); err != nil {
		return event, err
	}
	if err := checkAPIVersion(event, false); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

func (m *Mock) PopCheckoutSession() *stripe.CheckoutSessionParams {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	session := m.checkoutSessions[0]
	m.checkoutSessions = m.checkoutSessions[1:]
	return session
}

func (m *Mock) PopPaymentIntent() *stripe.PaymentIntentParams {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	intent := m.paymentIntents[0]
	m.paymentIntents = m.paymentIntents[1:]
	return intent
}

func (m *Mock) PopTaxCalculation() *stripe.TaxCalculationParams {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	calc := m.taxCalculations[0]
	m.taxCalculations = m.taxCalculations[1:]
	return calc
}

func (m *Mock) PopTaxTransaction() *stripe.TaxTransactionCreateFromCalculationParams {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	tx := m.taxTransactions[0]
	m.taxTransactions = m.taxTransactions[1:]
	return tx
}

func (m *Mock) PopCustomer() *stripe.CustomerParams {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	cust := m.customers[0]
	m.customers = m.customers[1:]
	return cust
}

// Calls retrieves the number of recorded calls not yet popped.
func (m *Mock) Calls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.checkoutSessions) + len(m.paymentIntents) + len(m.taxCalculations) + len(m.taxTransactions) + len(m.customers)
}
