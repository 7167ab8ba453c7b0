package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Medication is the catalog data sent with each cart line.
type Medication struct {
	ID         uuid.UUID
	Name       string
	Price      decimal.Decimal
	Strength   string
	DosageForm string
}

// CartLine is one line of the cart being checked out.
type CartLine struct {
	MedicationID uuid.UUID
	Quantity     int
	Medication   Medication
}

// SessionInput captures everything needed to open a hosted checkout session.
type SessionInput struct {
	Cart            []CartLine
	ShippingAddress string
	OrderNotes      string
	Email           string
	Origin          string
}

// SessionResult is returned to the client so it can redirect to the hosted page.
type SessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}
