package controllers

import (
	"net/http"

	"github.com/angelmondragon/homedoc-backend/api/responses"
	"github.com/angelmondragon/homedoc-backend/api/validators"
	"github.com/angelmondragon/homedoc-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const maxSessionIDLen = 255

type verifyPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

type verifyPaymentResponse struct {
	Success bool                  `json:"success"`
	Order   payments.OrderSummary `json:"order"`
}

// VerifyPayment confirms a checkout session was paid and returns the order it
// produced. Repeat calls for the same session return the same order.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteFailure(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}

		result, err := svc.Verify(ctx, validators.SanitizeString(payload.SessionID, maxSessionIDLen))
		if err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, verifyPaymentResponse{
			Success: true,
			Order:   result.Summary(),
		})
	}
}
