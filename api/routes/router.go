package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/homedoc-backend/api/controllers"
	notificationcontrollers "github.com/angelmondragon/homedoc-backend/api/controllers/notifications"
	ordercontrollers "github.com/angelmondragon/homedoc-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/homedoc-backend/api/controllers/webhooks"
	"github.com/angelmondragon/homedoc-backend/api/middleware"
	"github.com/angelmondragon/homedoc-backend/internal/assist"
	checkoutsvc "github.com/angelmondragon/homedoc-backend/internal/checkout"
	"github.com/angelmondragon/homedoc-backend/internal/notifications"
	"github.com/angelmondragon/homedoc-backend/internal/orders"
	"github.com/angelmondragon/homedoc-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/homedoc-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/redis"
	"github.com/angelmondragon/homedoc-backend/pkg/stripe"
)

// Dependencies collects everything the router hands to controllers.
// Nil services make their routes answer 500 instead of panicking.
type Dependencies struct {
	DB              controllers.Pinger
	Redis           controllers.Pinger
	ReplayStore     redis.ReplayStore
	MetricsGatherer prometheus.Gatherer

	Checkout      checkoutsvc.Service
	Payments      payments.Service
	Orders        orders.Service
	Notifications notifications.Service
	Assist        assist.Service

	StripeClient         *stripe.Client
	StripeWebhookService *stripewebhook.Service
	StripeWebhookGuard   *stripewebhook.EventGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	idempotent := middleware.Idempotency("checkout-session", deps.ReplayStore, logg)
	createSession := controllers.CheckoutSession(deps.Checkout, logg)
	verifyPayment := controllers.VerifyPayment(deps.Payments, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	// storefront paths kept for existing clients
	r.With(idempotent).Post("/create-checkout-session", createSession)
	r.Post("/verify-payment", verifyPayment)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(idempotent).Post("/checkout/sessions", createSession)
		r.Post("/payments/verify", verifyPayment)

		r.Get("/orders", ordercontrollers.DoctorOrders(deps.Orders, logg))
		r.Get("/orders/{orderId}", ordercontrollers.OrderDetail(deps.Orders, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationcontrollers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", notificationcontrollers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", notificationcontrollers.MarkNotificationRead(deps.Notifications, logg))
		})

		r.Post("/assist/chat", controllers.AssistChat(deps.Assist, logg))

		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(webhookService(deps), signingClient(deps), webhookGuard(deps), logg))
	})

	return r
}

// The webhook controller checks its collaborators against nil interfaces, so
// typed nil pointers must not leak through.
func webhookService(deps Dependencies) webhookcontrollers.StripeWebhookService {
	if deps.StripeWebhookService == nil {
		return nil
	}
	return deps.StripeWebhookService
}

func signingClient(deps Dependencies) webhookcontrollers.SigningSecretProvider {
	if deps.StripeClient == nil {
		return nil
	}
	return deps.StripeClient
}

func webhookGuard(deps Dependencies) webhookcontrollers.EventGuard {
	if deps.StripeWebhookGuard == nil {
		return nil
	}
	return deps.StripeWebhookGuard
}
