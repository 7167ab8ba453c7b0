package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/homedoc-backend/api/responses"
	"github.com/angelmondragon/homedoc-backend/api/validators"
	internalorders "github.com/angelmondragon/homedoc-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var errUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")

// OrderDetail returns one order with its items.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, errUnavailable
		}
		orderID, err := validators.ParseUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), orderID)
	})
}

// DoctorOrders lists the most recent orders placed by a doctor.
func DoctorOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, errUnavailable
		}
		doctorID, err := validators.ParseUUID(r.URL.Query().Get("doctor_id"), "doctor_id")
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			return nil, err
		}
		return svc.ListForDoctor(r.Context(), doctorID, limit)
	})
}
