// Package validators decodes and checks request input, reporting failures as
// VALIDATION_ERROR with per-field details.
package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}()

// fixed messages by validate tag; parameterized tags are handled in describe.
var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"uuid":     "must be a valid uuid",
	"uuid4":    "must be a valid uuid",
	"url":      "must be a valid url",
}

var bounded = map[string]string{
	"min": "must be at least %s",
	"max": "must be at most %s",
	"gt":  "must be greater than %s",
	"gte": "must be at least %s",
	"lte": "must be at most %s",
}

// DecodeJSONBody decodes at most 1 MiB of JSON into dest and runs struct
// validation. Unknown fields are ignored; storefront clients send extra cart
// attributes. Trailing data after the first value is rejected.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		return bodyError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return bodyError(errors.New("unexpected data after JSON value"))
	}
	return Struct(dest)
}

func bodyError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
		WithDetails(map[string]any{"error": err.Error()})
}

// Struct validates dest against its validate tags.
func Struct(dest any) error {
	return fieldErrors(validate.Struct(dest), func(fe validator.FieldError) string {
		// Drop the root struct name so nested fields read "cart[0].quantity".
		if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
			return path
		}
		return fe.Field()
	})
}

// Var validates a single value against tag and reports failures under field.
func Var(field string, value any, tag string) error {
	err := fieldErrors(validate.Var(value, tag), func(validator.FieldError) string { return field })
	if typed := pkgerrors.As(err); typed != nil {
		if d, ok := typed.Details().(map[string]string); ok && len(d) == 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" "+d[field]).WithDetails(d)
		}
	}
	return err
}

func fieldErrors(err error, name func(validator.FieldError) string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[name(fe)] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	if format, ok := bounded[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Param())
	}
	return "is invalid"
}
