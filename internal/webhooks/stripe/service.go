package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/homedoc-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

type paymentVerifier interface {
	Verify(ctx context.Context, sessionID string) (*payments.Result, error)
}

type ServiceParams struct {
	Verifier paymentVerifier
	Logger   *logger.Logger
}

// Service settles checkout sessions reported by Stripe webhooks.
type Service struct {
	verifier paymentVerifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment verifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{verifier: params.Verifier, logg: params.Logger}, nil
}

// HandleEvent materializes orders for completed checkout sessions. Sessions that
// are not yet paid or whose purchaser is unknown are acknowledged without error
// since a redelivery would not change the outcome.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		if strings.TrimSpace(sess.ID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
		}
		return s.settle(ctx, event, sess.ID)
	default:
		return nil
	}
}

func (s *Service) settle(ctx context.Context, event *stripe.Event, sessionID string) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":     event.ID,
		"stripe_event_type":   string(event.Type),
		"checkout_session_id": sessionID,
	})

	res, err := s.verifier.Verify(ctx, sessionID)
	switch {
	case err == nil:
		if res != nil && res.Order != nil {
			s.logg.Info(s.logg.WithField(ctx, "order_id", res.Order.ID.String()), "checkout session settled from webhook")
		}
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodePaymentIncomplete):
		s.logg.Info(ctx, "checkout session not paid yet, awaiting async payment event")
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeIdentity):
		s.logg.Warn(ctx, "checkout session purchaser has no profile")
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		// no snapshot and no usable line items; a redelivery cannot change that
		s.logg.Error(ctx, "checkout session cannot be materialized", err)
		return nil
	default:
		return err
	}
}
