package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homedoc-backend/api/responses"
	"github.com/angelmondragon/homedoc-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/homedoc-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const maxEmailLen = 254

type checkoutMedicationRequest struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Strength   string          `json:"strength"`
	DosageForm string          `json:"dosage_form"`
}

type checkoutLineRequest struct {
	MedicationID string                    `json:"medication_id"`
	Quantity     int                       `json:"quantity"`
	Medication   checkoutMedicationRequest `json:"medication"`
}

type checkoutSessionRequest struct {
	Cart            []checkoutLineRequest `json:"cart"`
	ShippingAddress string                `json:"shippingAddress"`
	OrderNotes      string                `json:"orderNotes"`
	Email           string                `json:"email"`
}

// toInput trims the contact fields before validating them and parses every
// medication id, naming the offending cart field on failure.
func (r checkoutSessionRequest) toInput(origin string) (checkoutsvc.SessionInput, error) {
	email := validators.SanitizeString(r.Email, maxEmailLen)
	if email != "" {
		if err := validators.Var("email", email, "email"); err != nil {
			return checkoutsvc.SessionInput{}, err
		}
	}

	lines := make([]checkoutsvc.CartLine, 0, len(r.Cart))
	for i, line := range r.Cart {
		lineID, err := parseCartID(line.MedicationID, fmt.Sprintf("cart[%d].medication_id", i))
		if err != nil {
			return checkoutsvc.SessionInput{}, err
		}
		catalogID, err := parseCartID(line.Medication.ID, fmt.Sprintf("cart[%d].medication.id", i))
		if err != nil {
			return checkoutsvc.SessionInput{}, err
		}
		lines = append(lines, checkoutsvc.CartLine{
			MedicationID: lineID,
			Quantity:     line.Quantity,
			Medication: checkoutsvc.Medication{
				ID:         catalogID,
				Name:       line.Medication.Name,
				Price:      line.Medication.Price,
				Strength:   line.Medication.Strength,
				DosageForm: line.Medication.DosageForm,
			},
		})
	}
	return checkoutsvc.SessionInput{
		Cart:            lines,
		ShippingAddress: strings.TrimSpace(r.ShippingAddress),
		OrderNotes:      strings.TrimSpace(r.OrderNotes),
		Email:           email,
		Origin:          origin,
	}, nil
}

// parseCartID accepts a blank id, which the service resolves from the other
// id on the line, or a uuid.
func parseCartID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a valid uuid").WithDetails(map[string]string{field: "must be a valid uuid"})
	}
	return id, nil
}

// CheckoutSession opens a hosted payment session for the submitted cart and
// returns its id and redirect URL.
func CheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteFailure(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}
		input, err := payload.toInput(r.Header.Get("Origin"))
		if err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateSession(ctx, input)
		if err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, result)
	}
}
