package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
)

// OrderSummary is the slice of the order echoed to the result page.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	TotalAmount float64           `json:"total_amount"`
	Status      enums.OrderStatus `json:"status"`
}

// Result describes a settled checkout session.
type Result struct {
	Order *models.Order
	// Duplicate is set when the session had already been materialized.
	Duplicate bool
}

// Summary returns the client-facing view of the order.
func (r *Result) Summary() OrderSummary {
	if r == nil || r.Order == nil {
		return OrderSummary{}
	}
	return OrderSummary{
		ID:          r.Order.ID,
		TotalAmount: r.Order.TotalAmount.InexactFloat64(),
		Status:      r.Order.Status,
	}
}
