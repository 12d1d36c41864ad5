package pricing

import "fmt"

// Cart is what a visitor intends to buy.
type Cart struct {
	Tier       Tier
	DealStatus DealStatus
	Bumps      []Bump
}

// Line is a single priced entry of a Quote. Reference is stable and is used as
// the Stripe tax line item reference.
type Line struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
	Savings   int64  `json:"savings,omitempty"`
	Recurring bool   `json:"recurring"`
}

// Quote is a priced Cart.
type Quote struct {
	Cart     Cart    `json:"-"`
	Currency string  `json:"currency"`
	Billing  Billing `json:"billing"`
	Lines    []Line  `json:"lines"`
	Subtotal int64   `json:"subtotal"`
}

// NewQuote prices cart. The tier line comes first followed by bump lines in
// the order requested; a bump requested more than once is charged once. Bumps
// are one-time charges even when the tier is billed monthly.
func NewQuote(cart Cart) (Quote, error) {
	price, err := Price(cart.Tier, cart.DealStatus)
	if err != nil {
		return Quote{}, fmt.Errorf("while quoting cart: %w", err)
	}

	billing := BillingFor(cart.DealStatus)
	quote := Quote{
		Currency: Currency,
		Billing:  billing,
		Lines: []Line{
			{
				Reference: string(cart.Tier),
				Name:      TierName(cart.Tier),
				Amount:    price,
				Recurring: billing == BillingMonthly,
			},
		},
		Subtotal: price,
	}

	seen := make(map[Bump]struct{}, len(cart.Bumps))
	bumps := make([]Bump, 0, len(cart.Bumps))
	for _, bump := range cart.Bumps {
		if _, ok := seen[bump]; ok {
			continue
		}
		seen[bump] = struct{}{}

		info, err := LookupBump(bump)
		if err != nil {
			return Quote{}, fmt.Errorf("while quoting cart: %w", err)
		}

		bumps = append(bumps, bump)
		quote.Lines = append(quote.Lines, Line{
			Reference: string(info.Bump),
			Name:      info.Name,
			Amount:    info.Price,
			Savings:   info.Savings,
		})
		quote.Subtotal += info.Price
	}

	quote.Cart = Cart{Tier: cart.Tier, DealStatus: cart.DealStatus, Bumps: bumps}
	return quote, nil
}

// Recurring sums the lines billed every month.
func (q Quote) Recurring() int64 {
	var sum int64
	for _, line := range q.Lines {
		if line.Recurring {
			sum += line.Amount
		}
	}
	return sum
}
