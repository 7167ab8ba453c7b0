package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/angelmondragon/homedoc-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const defaultReconcileLookback = 24 * time.Hour

type completedSessionLister interface {
	ListCompletedSince(ctx context.Context, since time.Time) ([]*stripe.CheckoutSession, error)
}

type SessionReconcileJobParams struct {
	Logger   *logger.Logger
	Sessions completedSessionLister
	Verifier payments.Service
	Lookback time.Duration
}

// NewSessionReconcileJob re-verifies recently completed checkout sessions so
// paid sessions whose browser never reached verify-payment still get an order.
func NewSessionReconcileJob(params SessionReconcileJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Sessions == nil:
		return nil, fmt.Errorf("session lister required")
	case params.Verifier == nil:
		return nil, fmt.Errorf("payment verifier required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	return &sessionReconcileJob{
		logg:     params.Logger,
		sessions: params.Sessions,
		verifier: params.Verifier,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type sessionReconcileJob struct {
	logg     *logger.Logger
	sessions completedSessionLister
	verifier payments.Service
	lookback time.Duration
	now      func() time.Time
}

func (j *sessionReconcileJob) Name() string { return "checkout-session-reconcile" }

func (j *sessionReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	sessions, err := j.sessions.ListCompletedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("list completed sessions: %w", err)
	}

	var (
		errs                       error
		created, existing, skipped int
	)
	for _, sess := range sessions {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if sess == nil || sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			skipped++
			continue
		}
		sessCtx := j.logg.WithSessionID(ctx, sess.ID)
		result, err := j.verifier.Verify(sessCtx, sess.ID)
		switch {
		case err == nil && result != nil && result.Duplicate:
			existing++
		case err == nil:
			created++
			j.logg.Info(sessCtx, "order recovered from unverified session")
		case pkgerrors.IsCode(err, pkgerrors.CodePaymentIncomplete),
			pkgerrors.IsCode(err, pkgerrors.CodeIdentity),
			pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			skipped++
			j.logg.Warn(j.logg.WithField(sessCtx, "reason", err.Error()), "session not reconcilable")
		default:
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"since":            since,
		"sessions_scanned": len(sessions),
		"orders_created":   created,
		"orders_existing":  existing,
		"sessions_skipped": skipped,
		"sessions_failed":  len(multierr.Errors(errs)),
	}), "checkout session reconcile complete")
	return errs
}
