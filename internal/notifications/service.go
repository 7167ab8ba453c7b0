package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/pagination"
)

// Service exposes a doctor's notification feed.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, doctorID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, doctorID uuid.UUID) (int64, error)
}

type ListParams struct {
	DoctorID   uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult carries one page and the opaque cursor for the next one.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

var errDoctorRequired = pkgerrors.New(pkgerrors.CodeValidation, "doctor_id is required")

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.DoctorID == uuid.Nil {
		return nil, errDoctorRequired
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, listNotificationsParams{
		DoctorID:   params.DoctorID,
		Limit:      pagination.NormalizeLimit(params.Limit),
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page := &ListResult{Items: rows}
	if page.Items == nil {
		page.Items = []models.Notification{}
	}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// MarkRead is idempotent for notifications the doctor owns; anything else is
// NOT_FOUND so ids from other feeds are not disclosed.
func (s *service) MarkRead(ctx context.Context, doctorID, notificationID uuid.UUID) error {
	switch {
	case doctorID == uuid.Nil:
		return errDoctorRequired
	case notificationID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	res, err := s.repo.MarkRead(ctx, doctorID, notificationID, s.now().UTC())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !res.Found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	if doctorID == uuid.Nil {
		return 0, errDoctorRequired
	}
	n, err := s.repo.MarkAllRead(ctx, doctorID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
