package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homedoc-backend/internal/payments"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/types"
)

type stubPaymentService struct {
	sessionID string
	result    *payments.Result
	err       error
}

func (s *stubPaymentService) Verify(ctx context.Context, sessionID string) (*payments.Result, error) {
	s.sessionID = sessionID
	return s.result, s.err
}

func TestVerifyPaymentSuccess(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := &stubPaymentService{result: &payments.Result{Order: &models.Order{
		ID:          orderID,
		TotalAmount: decimal.RequireFromString("19.98"),
		Status:      enums.OrderStatusCompleted,
	}}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", strings.NewReader(`{"sessionId":" cs_test_1 "}`))
	rec := httptest.NewRecorder()
	VerifyPayment(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool `json:"success"`
		Order   struct {
			ID          uuid.UUID `json:"id"`
			TotalAmount float64   `json:"total_amount"`
			Status      string    `json:"status"`
		} `json:"order"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, orderID, resp.Order.ID)
	assert.InDelta(t, 19.98, resp.Order.TotalAmount, 0.0001)
	assert.Equal(t, string(enums.OrderStatusCompleted), resp.Order.Status)
	assert.Equal(t, "cs_test_1", svc.sessionID)
}

func TestVerifyPaymentFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unpaid", pkgerrors.New(pkgerrors.CodePaymentIncomplete, "payment not completed"), http.StatusPaymentRequired, "payment not completed"},
		{"unknown purchaser", pkgerrors.New(pkgerrors.CodeIdentity, "profile not found"), http.StatusUnprocessableEntity, "profile not found"},
		{"missing session", pkgerrors.New(pkgerrors.CodeValidation, "session id is required"), http.StatusBadRequest, "session id is required"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/verify-payment", strings.NewReader(`{"sessionId":"cs_test_1"}`))
			rec := httptest.NewRecorder()
			VerifyPayment(&stubPaymentService{err: tt.err}, nil).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			var resp types.FailureEnvelope
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
}
