package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// ErrorDump is the log-only view of a failure. It is never sent to callers.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	StripeCode      string `json:"stripe_code,omitempty"`
	StripeRequestID string `json:"stripe_request_id,omitempty"`
	StripeStatus    int    `json:"stripe_status,omitempty"`
}

// extractors fill driver specific fields; the first match wins.
var extractors = []func(error, *ErrorDump) bool{
	func(err error, d *ErrorDump) bool {
		var se *stripe.Error
		if !stdErrors.As(err, &se) {
			return false
		}
		d.StripeCode, d.StripeRequestID, d.StripeStatus = string(se.Code), se.RequestID, se.HTTPStatusCode
		return true
	},
	func(err error, d *ErrorDump) bool {
		var pe *pgconn.PgError
		if !stdErrors.As(err, &pe) {
			return false
		}
		d.PGCode, d.PGConstraint, d.PGTable = pe.Code, pe.ConstraintName, pe.TableName
		d.PGColumn, d.PGDetail, d.PGMessage = pe.ColumnName, pe.Detail, pe.Message
		return true
	},
	func(err error, d *ErrorDump) bool {
		var pe *pq.Error
		if !stdErrors.As(err, &pe) {
			return false
		}
		d.PGCode, d.PGConstraint, d.PGTable = string(pe.Code), pe.Constraint, pe.Table
		d.PGColumn, d.PGDetail, d.PGMessage = pe.Column, pe.Detail, pe.Message
		return true
	},
}

// Dump flattens err for structured logs: its typed code, every link of the
// chain and any postgres or stripe diagnostics.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.code
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	for _, extract := range extractors {
		if extract(err, &d) {
			break
		}
	}
	return d
}
