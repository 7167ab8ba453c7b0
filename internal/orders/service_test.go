package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

type stubRepo struct {
	Repository
	findErr error
}

func (s stubRepo) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, s.findErr
}

func (s stubRepo) ListByDoctor(context.Context, uuid.UUID, int) ([]models.Order, error) {
	return nil, s.findErr
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestServiceGetMapsOrder(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order, err := repo.CreateOrder(ctx, newOrder(uuid.New(), "cs_read"))
	require.NoError(t, err)
	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{{
		OrderID:         order.ID,
		MedicationID:    uuid.New(),
		Quantity:        2,
		PriceAtPurchase: decimal.RequireFromString("9.99"),
		Subtotal:        decimal.RequireFromString("19.98"),
	}}))

	svc, err := NewService(repo)
	require.NoError(t, err)

	dto, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, dto.ID)
	require.InDelta(t, 19.98, dto.TotalAmount, 0.0001)
	require.Len(t, dto.Items, 1)
	require.InDelta(t, 9.99, dto.Items[0].PriceAtPurchase, 0.0001)

	list, err := svc.ListForDoctor(ctx, order.DoctorID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestServiceGetErrors(t *testing.T) {
	ctx := context.Background()

	svc, err := NewService(stubRepo{findErr: gorm.ErrRecordNotFound})
	require.NoError(t, err)

	_, err = svc.Get(ctx, uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.ListForDoctor(ctx, uuid.Nil, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	failing, err := NewService(stubRepo{findErr: errors.New("connection reset")})
	require.NoError(t, err)
	_, err = failing.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}
