// Package email sends transactional e-mails to buyers.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
)

// NewMailgunEmailer creates a new MailgunEmailer instance. E-mails are sent
// from the from address.
func NewMailgunEmailer(mg mailgun.Mailgun, from string) *MailgunEmailer {
	return &MailgunEmailer{
		mg:   mg,
		from: from,
	}
}

// MailgunEmailer is responsible for mailgun API interactions.
type MailgunEmailer struct {
	mg   mailgun.Mailgun
	from string
}

const orderConfirmation = "order_confirmation"

// OrderConfirmation holds the details rendered by the order confirmation
// e-mail.
type OrderConfirmation struct {
	OrderID string
	Tier    string
	Bumps   []string
	// Total is the amount charged in the smallest currency unit.
	Total    int64
	Currency string
}

// SendOrderConfirmation sends an order_confirmation email to the "to" email
// specified. Mailgun templates are used, acquire access to the Mailgun UI to
// learn more.
func (e MailgunEmailer) SendOrderConfirmation(ctx context.Context, to string, order OrderConfirmation) error {
	msg := e.mg.NewMessage(e.from, "Your WhatsAgent order is confirmed.", "", to)
	msg.SetTemplate(orderConfirmation)

	vars := map[string]interface{}{
		"orderId": order.OrderID,
		"tier":    order.Tier,
		"bumps":   strings.Join(order.Bumps, ", "),
		"total":   formatAmount(order.Total, order.Currency),
	}
	for key, value := range vars {
		if err := msg.AddTemplateVariable(key, value); err != nil {
			return fmt.Errorf("while adding template variable %s: %w", key, err)
		}
	}

	return e.send(ctx, msg)
}

// --- private ---

func (e MailgunEmailer) send(ctx context.Context, msg *mailgun.Message) error {
	if _, _, err := e.mg.Send(ctx, msg); err != nil {
		return fmt.Errorf("while sending email: %w", err)
	}
	return nil
}

// --- helper ---

func formatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}
