// Package errors carries the service's typed error codes and how each one is
// rendered to HTTP callers.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodePaymentIncomplete Code = "PAYMENT_INCOMPLETE"
	CodeIdentity          Code = "IDENTITY_UNRESOLVED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
	CodeUpstream          Code = "UPSTREAM_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ClientCaused marks codes whose message is safe and useful to echo to the caller.
	ClientCaused bool
	// Expected marks outcomes the service handles routinely; they log at warn.
	Expected bool
}

// bits keeps the table below on one line per code.
type bits uint8

const (
	retryable bits = 1 << iota
	details
	client
	expected
)

func meta(status int, public string, b bits) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      b&retryable != 0,
		DetailsAllowed: b&details != 0,
		ClientCaused:   b&client != 0,
		Expected:       b&expected != 0,
	}
}

// Upstream is client caused so Stripe's message reaches the caller, but it is
// not expected and logs as an error.
var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", details|client|expected),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", client|expected),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", client|expected),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", details|client|expected),
	CodePaymentIncomplete: meta(http.StatusPaymentRequired, "payment not completed", details|client|expected),
	CodeIdentity:          meta(http.StatusUnprocessableEntity, "profile not found", client|expected),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|details),
	CodeUpstream:          meta(http.StatusBadGateway, "payment processor error", retryable|client),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and caller-facing message to err. A nil err yields New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code reports CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// Error renders "CODE: message", followed by the cause when there is one.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := string(e.code) + ": " + e.message
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost typed error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
