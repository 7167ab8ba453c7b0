package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/enums"
)

// Notification is an in-app message shown in a doctor's feed.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DoctorID  uuid.UUID              `gorm:"column:doctor_id;type:uuid;not null;index:idx_doctor_notifications_feed" json:"doctor_id"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex:ux_doctor_notifications_order_type" json:"order_id,omitempty"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null;uniqueIndex:ux_doctor_notifications_order_type" json:"type"`
	Title     string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message   string                 `gorm:"column:message;type:text;not null" json:"message"`
	Link      *string                `gorm:"column:link;type:text" json:"link,omitempty"`
	ReadAt    *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string { return "doctor_notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
