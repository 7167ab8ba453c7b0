package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
)

// CartRepository defines the persistence surface for a doctor's pending cart.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.CartItem, error)
	DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)
}
