package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/internal/cart"
	"github.com/angelmondragon/homedoc-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/homedoc-backend/pkg/checkout"
	"github.com/angelmondragon/homedoc-backend/pkg/db"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/metrics"
	"github.com/angelmondragon/homedoc-backend/pkg/money"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/payloads"
	stripeclient "github.com/angelmondragon/homedoc-backend/pkg/stripe"
)

const cartSavepoint = "clear_cart"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type sessionGateway interface {
	GetSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

// Service turns paid checkout sessions into orders.
type Service interface {
	Verify(ctx context.Context, sessionID string) (*Result, error)
}

// ServiceParams groups the dependencies of the payment verifier.
type ServiceParams struct {
	Tx       txRunner
	Sessions sessionGateway
	Profiles profileFinder
	Orders   orders.Repository
	Cart     cart.CartRepository
	Outbox   outboxPublisher
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	tx       txRunner
	sessions sessionGateway
	profiles profileFinder
	orders   orders.Repository
	cart     cart.CartRepository
	outbox   outboxPublisher
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payment verifier.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, errors.New("tx runner required")
	case params.Sessions == nil:
		return nil, errors.New("checkout session gateway required")
	case params.Profiles == nil:
		return nil, errors.New("profile finder required")
	case params.Orders == nil:
		return nil, errors.New("orders repository required")
	case params.Cart == nil:
		return nil, errors.New("cart repository required")
	case params.Outbox == nil:
		return nil, errors.New("outbox publisher required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       params.Tx,
		sessions: params.Sessions,
		profiles: params.Profiles,
		orders:   params.Orders,
		cart:     params.Cart,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Verify fetches the session, checks it is paid and materializes the order
// exactly once per session id.
func (s *service) Verify(ctx context.Context, sessionID string) (*Result, error) {
	started := s.now()
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		s.metrics.Verified(metrics.OutcomeInvalid, 0)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)

	result, err := s.verify(ctx, sessionID)
	s.metrics.Verified(outcomeFor(result, err), s.now().Sub(started))
	return result, err
}

func (s *service) verify(ctx context.Context, sessionID string) (*Result, error) {
	existing, err := s.orders.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		s.logg.Info(ctx, "checkout session already materialized")
		return &Result{Order: existing, Duplicate: true}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order by session")
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, stripeclient.TranslateError(err, "retrieve checkout session")
	}
	if enums.PaymentStatus(sess.PaymentStatus) != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodePaymentIncomplete, "payment not completed").WithDetails(map[string]any{
			"payment_status": string(sess.PaymentStatus),
		})
	}

	snapshot, err := s.resolveSnapshot(ctx, sess)
	if err != nil {
		return nil, err
	}

	profile, err := s.resolveProfile(ctx, sess)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithProfileID(ctx, profile.ID.String())

	order, err := s.materialize(ctx, sess, profile, snapshot)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			existing, lookupErr := s.orders.FindBySessionID(ctx, sessionID)
			if lookupErr == nil {
				s.logg.Info(ctx, "checkout session materialized concurrently")
				return &Result{Order: existing, Duplicate: true}, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "materialize order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"total_amount": order.TotalAmount.StringFixed(2),
		"item_count":   len(order.Items),
	})
	s.logg.Info(logCtx, "order materialized")
	return &Result{Order: order}, nil
}

// resolveSnapshot prefers the cart carried in session metadata and falls back
// to the session's line items when the metadata is missing or unreadable.
func (s *service) resolveSnapshot(ctx context.Context, sess *stripe.CheckoutSession) (pkgcheckout.Snapshot, error) {
	snapshot, err := pkgcheckout.DecodeSnapshot(sess.Metadata)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart metadata unreadable, using line items")
		snapshot = nil
	}
	if len(snapshot) > 0 {
		return snapshot, nil
	}

	items, err := s.sessions.ListLineItems(ctx, sess.ID)
	if err != nil {
		return nil, stripeclient.TranslateError(err, "list checkout line items")
	}
	return snapshotFromLineItems(items)
}

func (s *service) resolveProfile(ctx context.Context, sess *stripe.CheckoutSession) (*models.Profile, error) {
	email := strings.TrimSpace(sess.CustomerEmail)
	if email == "" && sess.CustomerDetails != nil {
		email = strings.TrimSpace(sess.CustomerDetails.Email)
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeIdentity, "profile not found")
	}

	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIdentity, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup profile")
	}
	return profile, nil
}

func (s *service) materialize(ctx context.Context, sess *stripe.CheckoutSession, profile *models.Profile, snapshot pkgcheckout.Snapshot) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)

		order, err := ordersRepo.CreateOrder(ctx, &models.Order{
			DoctorID:        profile.ID,
			TotalAmount:     money.Normalize(snapshot.Total()),
			Status:          enums.OrderStatusCompleted,
			ShippingAddress: sess.Metadata[pkgcheckout.MetadataShippingAddress],
			Notes:           sess.Metadata[pkgcheckout.MetadataOrderNotes],
			PaymentMethod:   enums.PaymentMethodStripe,
			PaymentStatus:   enums.PaymentStatusPaid,
			StripeSessionID: sess.ID,
		})
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(snapshot))
		for _, entry := range snapshot {
			items = append(items, models.OrderItem{
				OrderID:         order.ID,
				MedicationID:    entry.MedicationID,
				Quantity:        entry.Quantity,
				PriceAtPurchase: money.Normalize(entry.Price),
				Subtotal:        money.Normalize(entry.Subtotal()),
			})
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		if err := s.outbox.Emit(ctx, tx, orderPaidEvent(order, profile, s.now().UTC())); err != nil {
			return err
		}

		s.clearCart(ctx, tx, profile.ID)
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// clearCart empties the purchaser's cart inside a savepoint so a failure only
// undoes the delete and leaves the order intact.
func (s *service) clearCart(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID) {
	if err := tx.SavePoint(cartSavepoint).Error; err != nil {
		s.metrics.CartClearFailed()
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart savepoint failed, cart left in place")
		return
	}
	if _, err := s.cart.WithTx(tx).DeleteByDoctor(ctx, doctorID); err != nil {
		s.metrics.CartClearFailed()
		if rbErr := tx.RollbackTo(cartSavepoint).Error; rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart clear failed after order creation")
	}
}

func orderPaidEvent(order *models.Order, profile *models.Profile, paidAt time.Time) outbox.DomainEvent {
	items := make([]payloads.OrderPaidItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderPaidItem{
			MedicationID:    item.MedicationID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			Subtotal:        item.Subtotal,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateMedicationOrder,
		AggregateID:   order.ID,
		Actor: &outbox.ActorRef{
			ProfileID: profile.ID,
			Role:      string(profile.Role),
		},
		Data: payloads.OrderPaidEvent{
			OrderID:         order.ID,
			DoctorID:        order.DoctorID,
			StripeSessionID: order.StripeSessionID,
			TotalAmount:     order.TotalAmount,
			Items:           items,
			PaidAt:          paidAt,
		},
		OccurredAt: paidAt,
	}
}

func outcomeFor(result *Result, err error) string {
	switch {
	case err == nil && result != nil && result.Duplicate:
		return metrics.OutcomeDuplicate
	case err == nil:
		return metrics.OutcomeMaterialized
	case pkgerrors.IsCode(err, pkgerrors.CodePaymentIncomplete):
		return metrics.OutcomeUnpaid
	case pkgerrors.IsCode(err, pkgerrors.CodeIdentity):
		return metrics.OutcomeIdentity
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation),
		pkgerrors.IsCode(err, pkgerrors.CodeNotFound),
		pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
