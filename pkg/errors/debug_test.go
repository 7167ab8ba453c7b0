package errors

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

func TestDumpCapturesPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_medication_orders_stripe_session_id", TableName: "medication_orders"}
	d := Dump(Wrap(CodeInternal, pgErr, "insert order"))

	require.Equal(t, CodeInternal, d.Code)
	require.Equal(t, "23505", d.PGCode)
	require.Equal(t, "medication_orders", d.PGTable)
	require.Len(t, d.Chain, 2)
}

func TestDumpCapturesStripeDetail(t *testing.T) {
	stripeErr := &stripe.Error{Code: stripe.ErrorCodeResourceMissing, RequestID: "req_1", HTTPStatusCode: 404}
	d := Dump(Wrap(CodeNotFound, stripeErr, "session not found"))

	require.Equal(t, "resource_missing", d.StripeCode)
	require.Equal(t, "req_1", d.StripeRequestID)
	require.Equal(t, 404, d.StripeStatus)
	require.Empty(t, d.PGCode)
}

func TestDumpNil(t *testing.T) {
	require.Equal(t, ErrorDump{}, Dump(nil))
}
