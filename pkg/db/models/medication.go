package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Medication is a catalog entry referenced by cart and order lines.
type Medication struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Strength    string          `gorm:"column:strength;not null;default:''"`
	DosageForm  string          `gorm:"column:dosage_form;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsAvailable bool            `gorm:"column:is_available;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Medication) TableName() string { return "medications" }

func (m *Medication) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
