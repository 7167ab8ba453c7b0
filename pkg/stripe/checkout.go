package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// CheckoutSessions exposes the hosted checkout operations the purchase flow needs.
type CheckoutSessions interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	GetSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
	ListCompletedSince(ctx context.Context, since time.Time) ([]*stripe.CheckoutSession, error)
}

type checkoutSessions struct {
	api *stripe.Client
}

// NewCheckoutSessions returns the live session gateway backed by client.
func NewCheckoutSessions(client *Client) CheckoutSessions {
	if client == nil || client.api == nil {
		return nil
	}
	return &checkoutSessions{api: client.api}
}

func (c *checkoutSessions) CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	return c.api.V1CheckoutSessions.Create(ctx, params)
}

func (c *checkoutSessions) GetSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	return c.api.V1CheckoutSessions.Retrieve(ctx, id, nil)
}

// ListLineItems expands each price's product so medication ids in product
// metadata are available.
func (c *checkoutSessions) ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.AddExpand("data.price.product")
	return collect(c.api.V1CheckoutSessions.ListLineItems(ctx, params))
}

// ListCompletedSince returns complete sessions created at or after since.
func (c *checkoutSessions) ListCompletedSince(ctx context.Context, since time.Time) ([]*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		Status:       stripe.String(string(stripe.CheckoutSessionStatusComplete)),
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()},
	}
	return collect(c.api.V1CheckoutSessions.List(ctx, params))
}

func collect[T any](seq stripe.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
