package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPaidItem is one line of a paid order as published downstream.
type OrderPaidItem struct {
	MedicationID    uuid.UUID       `json:"medication_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// OrderPaidEvent is emitted when a checkout session settles into an order.
type OrderPaidEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	StripeSessionID string          `json:"stripe_session_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Items           []OrderPaidItem `json:"items"`
	PaidAt          time.Time       `json:"paid_at"`
}
