// Package staging holds carts between checkout creation and payment in
// Redis. A staged checkout is referenced by Stripe through the Checkout
// Session client_reference_id or the PaymentIntent metadata.
package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound indicates the staged checkout does not exist or has expired.
var ErrNotFound = errors.New("staged checkout not found")

// errCollisions indicates every generated id was already staged.
var errCollisions = errors.New("staged checkout id collisions")

// NewClient creates a new Client instance.
func NewClient(redis *redis.Client) *Client {
	return &Client{redis: redis}
}

// Client manages the cache client and provides an API for interacting with
// staged checkouts.
type Client struct {
	redis *redis.Client
}

// StageCheckout stores the checkout in staging store. The checkout will expire
// at the time passed via expiresAt. An identifier unique to staged checkout is
// returned.
func (c Client) StageCheckout(
	ctx context.Context,
	checkout Checkout,
	expiresAt time.Time,
) (string, error) {
	b, err := encode(checkout)
	if err != nil {
		return "", fmt.Errorf("encode checkout; error: %w", err)
	}

	// NOTE: In the event there is a collision in Redis because the same UUID is
	// generated twice, retry up to ten times.
	const attempts = 10

	for i := 0; i < attempts; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("random id; error: %w", err)
		}

		ok, err := c.redis.SetNX(ctx, keygen(id.String()), b, time.Until(expiresAt)).Result()
		if err != nil {
			return "", fmt.Errorf("stage checkout; id: %s, error: %w", id.String(), err)
		}
		if ok {
			return id.String(), nil
		}
	}

	return "", errCollisions
}

// FetchCheckout retrieves a checkout specific to the passed id from the
// staging store. If the checkout has expired, ErrNotFound is returned.
func (c Client) FetchCheckout(
	ctx context.Context,
	id string,
) (*Checkout, error) {
	res, err := c.redis.Get(ctx, keygen(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("fetch checkout; id: %s, error: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch checkout; id: %s, error: %w", id, err)
	}

	var checkout Checkout
	if err := decode([]byte(res), &checkout); err != nil {
		return nil, fmt.Errorf("decode checkout; id: %s, error: %w", id, err)
	}

	return &checkout, nil
}

// ExtendCheckout keeps the staged checkout for ttl from now. If the checkout
// has expired, ErrNotFound is returned.
func (c Client) ExtendCheckout(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := c.redis.Expire(ctx, keygen(id), ttl).Result()
	if err != nil {
		return fmt.Errorf("extend checkout; id: %s, error: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("extend checkout; id: %s, error: %w", id, ErrNotFound)
	}
	return nil
}

// Checkout is a priced WhatsAgent cart awaiting payment. Amounts are in the
// smallest currency unit.
type Checkout struct {
	VisitorID  string
	Email      string
	Tier       string
	DealStatus string
	Billing    string
	Bumps      []string

	Subtotal      int64
	Tax           int64
	Total         int64
	TaxIDType     string
	ReverseCharge bool
}

// --- helpers ---

const (
	prefix = "wa-checkout-"
)

func keygen(id string) string {
	return fmt.Sprintf("%s%s", prefix, id)
}

func encode(obj interface{}) ([]byte, error) {
	return msgpack.Marshal(obj)
}

func decode(b []byte, obj interface{}) error {
	return msgpack.Unmarshal(b, obj)
}
