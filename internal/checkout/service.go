package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgcheckout "github.com/angelmondragon/homedoc-backend/pkg/checkout"
	"github.com/angelmondragon/homedoc-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/metrics"
	"github.com/angelmondragon/homedoc-backend/pkg/money"
	stripeclient "github.com/angelmondragon/homedoc-backend/pkg/stripe"
)

const (
	// placeholder the processor substitutes with the real session id on redirect
	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
	productMetadataID    = "medication_id"
)

// Service opens hosted checkout sessions.
type Service interface {
	CreateSession(ctx context.Context, input SessionInput) (*SessionResult, error)
}

// ServiceParams groups the dependencies of the checkout service.
type ServiceParams struct {
	Sessions stripeclient.CheckoutSessions
	Checkout config.CheckoutConfig
	Stripe   config.StripeConfig
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type service struct {
	sessions stripeclient.CheckoutSessions
	cfg      config.CheckoutConfig
	currency string
	limits   pkgcheckout.Limits
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Sessions == nil {
		return nil, errors.New("checkout session gateway required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Stripe.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{
		sessions: params.Sessions,
		cfg:      params.Checkout,
		currency: currency,
		limits: pkgcheckout.Limits{
			MaxValueLen: params.Stripe.MetadataMaxSize,
			MaxChunks:   params.Stripe.MetadataMaxChunks,
		},
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, input SessionInput) (*SessionResult, error) {
	lines := make([]pkgcheckout.LineInput, 0, len(input.Cart))
	for _, line := range input.Cart {
		lines = append(lines, pkgcheckout.LineInput{
			MedicationID: lineMedicationID(line),
			Name:         line.Medication.Name,
			Quantity:     line.Quantity,
			Price:        line.Medication.Price,
		})
	}
	if err := pkgcheckout.ValidateLines(lines); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	limit := s.maxValueLen()
	shipping := strings.TrimSpace(input.ShippingAddress)
	if utf8.RuneCountInString(shipping) > limit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shipping address exceeds %d characters", limit))
	}
	notes := strings.TrimSpace(input.OrderNotes)
	if utf8.RuneCountInString(notes) > limit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order notes exceed %d characters", limit))
	}

	snapshot := make(pkgcheckout.Snapshot, 0, len(lines))
	for _, line := range lines {
		snapshot = append(snapshot, pkgcheckout.SnapshotEntry{
			MedicationID: line.MedicationID,
			Quantity:     line.Quantity,
			Price:        money.Normalize(line.Price),
			Name:         strings.TrimSpace(line.Name),
		})
	}
	cartMetadata, err := pkgcheckout.EncodeSnapshot(snapshot, s.limits)
	if err != nil {
		return nil, err
	}

	origin := s.resolveOrigin(input.Origin)
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(email),
		SuccessURL:         stripe.String(origin + s.cfg.SuccessPath + "?session_id=" + sessionIDPlaceholder),
		CancelURL:          stripe.String(origin + s.cfg.CancelPath),
		LineItems:          s.lineItems(input.Cart, lines),
	}
	params.AddMetadata(pkgcheckout.MetadataShippingAddress, shipping)
	params.AddMetadata(pkgcheckout.MetadataOrderNotes, notes)
	for key, value := range cartMetadata {
		params.AddMetadata(key, value)
	}

	sess, err := s.sessions.CreateSession(ctx, params)
	if err != nil {
		s.metrics.SessionCreated(false)
		s.logg.Error(ctx, "checkout session creation failed", err)
		return nil, stripeclient.TranslateError(err, "create checkout session")
	}
	s.metrics.SessionCreated(true)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"checkout_session_id": sess.ID,
		"line_count":          len(lines),
		"cart_chunks":         len(cartMetadata),
	})
	s.logg.Info(logCtx, "checkout session created")

	return &SessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *service) lineItems(cart []CartLine, lines []pkgcheckout.LineInput) []*stripe.CheckoutSessionCreateLineItemParams {
	items := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(lines))
	for i, line := range lines {
		product := &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
			Name:     stripe.String(strings.TrimSpace(line.Name)),
			Metadata: map[string]string{productMetadataID: line.MedicationID.String()},
		}
		if desc := describe(cart[i].Medication); desc != "" {
			product.Description = stripe.String(desc)
		}
		items = append(items, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:    stripe.String(s.currency),
				UnitAmount:  stripe.Int64(money.ToMinorUnits(line.Price)),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}
	return items
}

func (s *service) maxValueLen() int {
	if s.limits.MaxValueLen > 0 {
		return s.limits.MaxValueLen
	}
	return 500
}

// resolveOrigin accepts only absolute http(s) origins and otherwise uses the configured default.
func (s *service) resolveOrigin(raw string) string {
	candidate := strings.TrimRight(strings.TrimSpace(raw), "/")
	if candidate != "" {
		if u, err := url.Parse(candidate); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return candidate
		}
	}
	return strings.TrimRight(s.cfg.DefaultOrigin, "/")
}

func lineMedicationID(line CartLine) uuid.UUID {
	if line.MedicationID != uuid.Nil {
		return line.MedicationID
	}
	return line.Medication.ID
}

func describe(m Medication) string {
	strength := strings.TrimSpace(m.Strength)
	form := strings.TrimSpace(m.DosageForm)
	switch {
	case strength == "" && form == "":
		return ""
	case strength == "":
		return form
	case form == "":
		return strength
	default:
		return strength + " - " + form
	}
}
