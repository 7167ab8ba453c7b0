package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
)

// OrderItemDTO is one purchased line as returned to clients.
type OrderItemDTO struct {
	MedicationID    uuid.UUID `json:"medication_id"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase float64   `json:"price_at_purchase"`
	Subtotal        float64   `json:"subtotal"`
}

// OrderDTO is the read view of a materialized order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	DoctorID        uuid.UUID           `json:"doctor_id"`
	TotalAmount     float64             `json:"total_amount"`
	Status          enums.OrderStatus   `json:"status"`
	ShippingAddress string              `json:"shipping_address"`
	Notes           string              `json:"notes,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	StripeSessionID string              `json:"stripe_session_id"`
	Items           []OrderItemDTO      `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

// NewOrderDTO maps a persisted order and its items into the read view.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		DoctorID:        order.DoctorID,
		TotalAmount:     order.TotalAmount.InexactFloat64(),
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		StripeSessionID: order.StripeSessionID,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			MedicationID:    item.MedicationID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase.InexactFloat64(),
			Subtotal:        item.Subtotal.InexactFloat64(),
		})
	}
	return dto
}
