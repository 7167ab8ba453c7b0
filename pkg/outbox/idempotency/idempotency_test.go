package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homedoc-backend/pkg/redis/redistest"
)

func TestCheckAndMarkProcessedClaimsOnce(t *testing.T) {
	claims := redistest.New()
	manager, err := NewManager(claims, 24*time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "order-notifications", eventID)
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, 24*time.Hour, claims.TTL("claim:consumer:order-notifications:"+eventID.String()))

	already, err = manager.CheckAndMarkProcessed(context.Background(), "order-notifications", eventID)
	require.NoError(t, err)
	require.True(t, already)

	// other consumers keep their own claims
	already, err = manager.CheckAndMarkProcessed(context.Background(), "analytics", eventID)
	require.NoError(t, err)
	require.False(t, already)
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	claims := redistest.New()
	manager, err := NewManager(claims, 0)
	require.NoError(t, err)

	eventID := uuid.New()
	_, err = manager.CheckAndMarkProcessed(context.Background(), "c", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Release(context.Background(), "c", eventID))

	already, err := manager.CheckAndMarkProcessed(context.Background(), "c", eventID)
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, DefaultTTL, claims.TTL("claim:consumer:c:"+eventID.String()))
}

func TestCheckAndMarkProcessedErrors(t *testing.T) {
	claims := redistest.New()
	claims.Err = errors.New("boom")
	manager, err := NewManager(claims, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "c", uuid.New())
	require.ErrorContains(t, err, "boom")

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	require.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "c", uuid.Nil)
	require.Error(t, err)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(redistest.New(), -time.Second)
	require.Error(t, err)
}
