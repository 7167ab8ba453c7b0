// Package idempotency dedupes Pub/Sub deliveries per consumer. Pub/Sub is
// at-least-once, so every consumer claims an event id before acting on it.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/pkg/redis"
)

// DefaultTTL outlives the subscription's seven day message retention.
const DefaultTTL = 7 * 24 * time.Hour

// Manager claims event ids under the "consumer:<name>" scope.
type Manager struct {
	claims redis.Claimer
	ttl    time.Duration
}

// NewManager builds a manager; a zero ttl means DefaultTTL.
func NewManager(claims redis.Claimer, ttl time.Duration) (*Manager, error) {
	switch {
	case claims == nil:
		return nil, errors.New("claim store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case ttl == 0:
		ttl = DefaultTTL
	}
	return &Manager{claims: claims, ttl: ttl}, nil
}

// CheckAndMarkProcessed reports whether consumer already handled eventID and
// otherwise claims it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	scope, err := consumerScope(consumer, eventID)
	if err != nil {
		return false, err
	}
	first, err := m.claims.Claim(ctx, scope, eventID.String(), m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s for %s: %w", eventID, consumer, err)
	}
	return !first, nil
}

// Release drops a claim so a redelivery is processed again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	scope, err := consumerScope(consumer, eventID)
	if err != nil {
		return err
	}
	return m.claims.Unclaim(ctx, scope, eventID.String())
}

func consumerScope(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return "consumer:" + consumer, nil
}
