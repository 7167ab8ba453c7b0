package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Verification outcomes recorded by CheckoutMetrics.
const (
	OutcomeMaterialized = "materialized"
	OutcomeDuplicate    = "duplicate"
	OutcomeUnpaid       = "unpaid"
	OutcomeIdentity     = "identity"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// CheckoutMetrics records session creation and payment verification results.
type CheckoutMetrics struct {
	sessions      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	verifyLatency prometheus.Histogram
	cartClearFail prometheus.Counter
}

// NewCheckoutMetrics registers checkout metrics on the provided registerer. A
// nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Hosted checkout session creation attempts by result.",
	}, []string{"result"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verifications by outcome.",
	}, []string{"outcome"})
	verifyLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_verification_duration_seconds",
		Help:    "End-to-end payment verification latency.",
		Buckets: prometheus.DefBuckets,
	})
	cartClearFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_clear_failures_total",
		Help: "Carts left behind after a successful order.",
	})
	reg.MustRegister(sessions, verifications, verifyLatency, cartClearFail)
	return &CheckoutMetrics{
		sessions:      sessions,
		verifications: verifications,
		verifyLatency: verifyLatency,
		cartClearFail: cartClearFail,
	}
}

// SessionCreated counts a session creation attempt.
func (m *CheckoutMetrics) SessionCreated(ok bool) {
	if m == nil || m.sessions == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.sessions.WithLabelValues(result).Inc()
}

// Verified counts a verification outcome and its latency.
func (m *CheckoutMetrics) Verified(outcome string, duration time.Duration) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.verifyLatency.Observe(duration.Seconds())
}

// CartClearFailed counts a cart that could not be emptied after settlement.
func (m *CheckoutMetrics) CartClearFailed() {
	if m == nil || m.cartClearFail == nil {
		return
	}
	m.cartClearFail.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
