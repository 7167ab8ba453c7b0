package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homedoc-backend/internal/cart"
	"github.com/angelmondragon/homedoc-backend/internal/cron"
	"github.com/angelmondragon/homedoc-backend/internal/notifications"
	"github.com/angelmondragon/homedoc-backend/internal/orders"
	"github.com/angelmondragon/homedoc-backend/internal/payments"
	"github.com/angelmondragon/homedoc-backend/internal/profiles"
	"github.com/angelmondragon/homedoc-backend/pkg/bootstrap"
	"github.com/angelmondragon/homedoc-backend/pkg/metrics"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/stripe"
)

func main() {
	bootstrap.Main("cron-worker", run)
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
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, &http.Client{Timeout: cfg.Stripe.Timeout}, logg)
	if err != nil {
		return err
	}
	sessions := stripe.NewCheckoutSessions(stripeClient)
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Tx:       dbClient,
		Sessions: sessions,
		Profiles: profiles.NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Cart:     cart.NewRepository(conn),
		Outbox:   outbox.NewService(outboxRepo, logg),
		Metrics:  metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	reconcile, err := cron.NewSessionReconcileJob(cron.SessionReconcileJobParams{
		Logger:   logg,
		Sessions: sessions,
		Verifier: paymentService,
		Lookback: cfg.Cron.ReconcileLookback,
	})
	if err != nil {
		return err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outboxRepo,
		Retention:        cfg.Cron.OutboxRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(conn),
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, cron.LockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:       logg,
		Registry:     cron.NewRegistry(reconcile, outboxRetention, notificationCleanup),
		Lock:         lock,
		Metrics:      metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:     cfg.Cron.Interval,
		CycleTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		return err
	}
	return service.Run(logg.WithFields(ctx, map[string]any{
		"interval":   cfg.Cron.Interval.String(),
		"stripe_env": stripeClient.Environment(),
	}))
}
