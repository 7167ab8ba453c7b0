package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

// Service serves the order read surface.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]OrderDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the order read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]OrderDTO, error) {
	if doctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor id required")
	}
	records, err := s.repo.ListByDoctor(ctx, doctorID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(records))
	for i := range records {
		out = append(out, NewOrderDTO(&records[i]))
	}
	return out, nil
}
