package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/pagination"
)

// Repository persists doctor notifications.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, doctorID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, doctorID uuid.UUID, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type listNotificationsParams struct {
	DoctorID   uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// notificationMarkResult separates "already read" (Found) from "not yours".
type notificationMarkResult struct {
	Updated bool
	Found   bool
}

type gormRepository struct {
	conn *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &gormRepository{conn: conn}
}

// feed scopes a query to one doctor's notifications.
func (r *gormRepository) feed(ctx context.Context, doctorID uuid.UUID) *gorm.DB {
	return r.conn.WithContext(ctx).Model(&models.Notification{}).Where("doctor_id = ?", doctorID)
}

func unread(q *gorm.DB) *gorm.DB { return q.Where("read_at IS NULL") }

// Create inserts the notification; it reports false when an equivalent
// per-order notification already exists.
func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) (bool, error) {
	res := r.conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(notification)
	return res.RowsAffected > 0, res.Error
}

func (r *gormRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	q := r.feed(ctx, params.DoctorID)
	if params.UnreadOnly {
		q = q.Scopes(unread)
	}
	var rows []models.Notification
	if err := q.Scopes(pagination.Scope(params.Cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *gormRepository) MarkRead(ctx context.Context, doctorID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	var current models.Notification
	err := r.feed(ctx, doctorID).Select("id", "read_at").Where("id = ?", notificationID).Take(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notificationMarkResult{}, nil
	case err != nil:
		return notificationMarkResult{}, err
	case current.ReadAt != nil:
		return notificationMarkResult{Found: true}, nil
	}
	res := r.feed(ctx, doctorID).Scopes(unread).Where("id = ?", notificationID).UpdateColumn("read_at", now)
	return notificationMarkResult{Found: true, Updated: res.RowsAffected > 0}, res.Error
}

func (r *gormRepository) MarkAllRead(ctx context.Context, doctorID uuid.UUID, now time.Time) (int64, error) {
	res := r.feed(ctx, doctorID).Scopes(unread).UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.conn.WithContext(ctx).Where("read_at IS NOT NULL AND read_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
