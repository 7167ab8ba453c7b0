package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds the cart repository to the provided DB handle.
func NewRepository(db *gorm.DB) CartRepository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteByDoctor removes every cart row owned by the doctor and reports how many were deleted.
func (r *repository) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
