package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/enums"
)

// Profile is the purchaser identity matched by email at settlement.
type Profile struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email     string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName  string            `gorm:"column:full_name;not null;default:''"`
	Role      enums.ProfileRole `gorm:"column:role;type:text;not null;default:'doctor'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string { return "user_profiles" }

func (p *Profile) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
