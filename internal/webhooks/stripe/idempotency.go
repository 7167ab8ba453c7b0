package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/homedoc-backend/pkg/redis"
)

const eventClaimScope = "stripe:event"

// EventGuard drops Stripe redeliveries of an event id seen within ttl.
type EventGuard struct {
	claims redis.Claimer
	ttl    time.Duration
}

func NewEventGuard(claims redis.Claimer, ttl time.Duration) (*EventGuard, error) {
	if claims == nil {
		return nil, errors.New("claim store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("webhook dedupe ttl must be positive, got %s", ttl)
	}
	return &EventGuard{claims: claims, ttl: ttl}, nil
}

// Seen claims eventID and reports whether an earlier delivery already did.
func (g *EventGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("stripe event id is required")
	}
	first, err := g.claims.Claim(ctx, eventClaimScope, eventID, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return !first, nil
}

// Forget releases eventID after a failed attempt so Stripe's retry is handled.
func (g *EventGuard) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("stripe event id is required")
	}
	return g.claims.Unclaim(ctx, eventClaimScope, eventID)
}
