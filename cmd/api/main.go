package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/homedoc-backend/api/routes"
	"github.com/angelmondragon/homedoc-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/homedoc-backend/internal/checkout"
	"github.com/angelmondragon/homedoc-backend/internal/notifications"
	"github.com/angelmondragon/homedoc-backend/internal/orders"
	"github.com/angelmondragon/homedoc-backend/internal/payments"
	"github.com/angelmondragon/homedoc-backend/internal/profiles"
	stripewebhook "github.com/angelmondragon/homedoc-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/homedoc-backend/pkg/bootstrap"
	"github.com/angelmondragon/homedoc-backend/pkg/metrics"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, tracedClient(cfg.Stripe.Timeout), logg)
	if err != nil {
		return err
	}
	sessions := stripe.NewCheckoutSessions(stripeClient)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Sessions: sessions,
		Checkout: cfg.Checkout,
		Stripe:   cfg.Stripe,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		return err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Tx:       dbClient,
		Sessions: sessions,
		Profiles: profiles.NewRepository(dbClient.DB()),
		Orders:   ordersRepo,
		Cart:     cart.NewRepository(dbClient.DB()),
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Verifier: paymentService,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	webhookGuard, err := stripewebhook.NewEventGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		return err
	}

	assistService, err := newAssistService(cfg.Assist, logg)
	if err != nil {
		return err
	}

	router := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:                   dbClient,
		Redis:                redisClient,
		ReplayStore:          redisClient,
		MetricsGatherer:      promRegistry,
		Checkout:             checkoutService,
		Payments:             paymentService,
		Orders:               ordersService,
		Notifications:        notificationService,
		Assist:               assistService,
		StripeClient:         stripeClient,
		StripeWebhookService: webhookService,
		StripeWebhookGuard:   webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           instrument(router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.App.ReadTimeout,
		WriteTimeout:      cfg.App.WriteTimeout,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
