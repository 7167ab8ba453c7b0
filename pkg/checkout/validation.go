package checkout

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/money"
)

// LineInput describes one cart line as submitted at checkout.
type LineInput struct {
	MedicationID uuid.UUID
	Name         string
	Quantity     int
	Price        decimal.Decimal
}

// LineViolation exposes the data returned to callers when a line is rejected.
type LineViolation struct {
	Index        int       `json:"index"`
	MedicationID uuid.UUID `json:"medication_id"`
	Reason       string    `json:"reason"`
}

// ValidateLines rejects empty carts and any line with a missing id, blank name,
// non-positive quantity, or a price that is not positive or rounds below one cent.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var violations []LineViolation
	for i, line := range lines {
		reason := ""
		switch {
		case line.MedicationID == uuid.Nil:
			reason = "medication id is required"
		case strings.TrimSpace(line.Name) == "":
			reason = "medication name is required"
		case line.Quantity < 1:
			reason = "quantity must be a positive integer"
		case !line.Price.IsPositive():
			reason = "price must be positive"
		case money.ToMinorUnits(line.Price) < 1:
			reason = "price must be at least one cent"
		}
		if reason != "" {
			violations = append(violations, LineViolation{Index: i, MedicationID: line.MedicationID, Reason: reason})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cart line(s): %d", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
