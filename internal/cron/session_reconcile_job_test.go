package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/angelmondragon/homedoc-backend/internal/payments"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/stripe/stripetest"
)

type stubVerifier struct {
	calls   []string
	results map[string]*payments.Result
	errs    map[string]error
}

func (s *stubVerifier) Verify(_ context.Context, sessionID string) (*payments.Result, error) {
	s.calls = append(s.calls, sessionID)
	if err := s.errs[sessionID]; err != nil {
		return nil, err
	}
	if res := s.results[sessionID]; res != nil {
		return res, nil
	}
	return &payments.Result{Order: &models.Order{ID: uuid.New()}}, nil
}

func completedSession(id string, created time.Time, status stripe.CheckoutSessionPaymentStatus) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: status,
		Created:       created.Unix(),
	}
}

func newReconcileJob(t *testing.T, sessions completedSessionLister, verifier payments.Service, now time.Time) *sessionReconcileJob {
	t.Helper()
	jobIface, err := NewSessionReconcileJob(SessionReconcileJobParams{
		Logger:   testLogger(),
		Sessions: sessions,
		Verifier: verifier,
		Lookback: time.Hour,
	})
	require.NoError(t, err)
	job := jobIface.(*sessionReconcileJob)
	job.now = func() time.Time { return now }
	return job
}

func TestSessionReconcileJobVerifiesPaidSessionsInWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := stripetest.NewSessions()
	fake.Put(completedSession("cs_a", now.Add(-10*time.Minute), stripe.CheckoutSessionPaymentStatusPaid))
	fake.Put(completedSession("cs_b", now.Add(-20*time.Minute), stripe.CheckoutSessionPaymentStatusPaid))
	fake.Put(completedSession("cs_old", now.Add(-2*time.Hour), stripe.CheckoutSessionPaymentStatusPaid))
	fake.Put(completedSession("cs_unpaid", now.Add(-5*time.Minute), stripe.CheckoutSessionPaymentStatusUnpaid))

	verifier := &stubVerifier{results: map[string]*payments.Result{
		"cs_b": {Order: &models.Order{ID: uuid.New()}, Duplicate: true},
	}}
	job := newReconcileJob(t, fake, verifier, now)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []string{"cs_a", "cs_b"}, verifier.calls)
}

func TestSessionReconcileJobSkipsBusinessRejections(t *testing.T) {
	now := time.Now()
	fake := stripetest.NewSessions()
	fake.Put(completedSession("cs_noprofile", now, stripe.CheckoutSessionPaymentStatusPaid))
	fake.Put(completedSession("cs_nocart", now, stripe.CheckoutSessionPaymentStatusPaid))
	verifier := &stubVerifier{errs: map[string]error{
		"cs_noprofile": pkgerrors.New(pkgerrors.CodeIdentity, "profile not found"),
		"cs_nocart":    pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session has no line items"),
	}}
	job := newReconcileJob(t, fake, verifier, now)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, verifier.calls, 2)
}

func TestSessionReconcileJobAggregatesFailures(t *testing.T) {
	now := time.Now()
	fake := stripetest.NewSessions()
	fake.Put(completedSession("cs_1", now, stripe.CheckoutSessionPaymentStatusPaid))
	fake.Put(completedSession("cs_2", now, stripe.CheckoutSessionPaymentStatusPaid))
	fake.Put(completedSession("cs_3", now, stripe.CheckoutSessionPaymentStatusPaid))
	verifier := &stubVerifier{errs: map[string]error{
		"cs_1": errors.New("db down"),
		"cs_3": pkgerrors.New(pkgerrors.CodeUpstream, "stripe down"),
	}}
	job := newReconcileJob(t, fake, verifier, now)

	err := job.Run(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Len(t, verifier.calls, 3)
}

func TestSessionReconcileJobListError(t *testing.T) {
	fake := stripetest.NewSessions()
	fake.ListErr = errors.New("rate limited")
	verifier := &stubVerifier{}
	job := newReconcileJob(t, fake, verifier, time.Now())

	require.ErrorContains(t, job.Run(context.Background()), "rate limited")
	require.Empty(t, verifier.calls)
}
