package stripe

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

// TranslateError maps processor failures onto typed errors. Unknown resources
// become NOT_FOUND; everything else is an upstream failure carrying the
// processor's own message.
func TranslateError(err error, fallback string) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := strings.TrimSpace(stripeErr.Msg)
		if msg == "" {
			msg = fallback
		}
		if stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg)
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = fallback
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg)
}
