package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/homedoc-backend/internal/notifications"
	"github.com/angelmondragon/homedoc-backend/pkg/bootstrap"
	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/homedoc-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("worker", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config
	if cfg.PubSub.OrdersSubscription == "" {
		return errors.New(config.EnvPubSubOrdersSubscription + " is required for the worker")
	}

	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleConsumer, rt.Logger)
	if err != nil {
		return err
	}
	rt.Track("pubsub", psClient)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return err
	}
	orderNotifications, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		psClient.OrdersSubscription(),
		manager,
		rt.Logger,
	)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger: rt.Logger,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   psClient,
		},
		Consumers: map[string]consumer{
			"order-notifications": orderNotifications,
		},
	})
	if err != nil {
		return err
	}
	return service.Run(rt.Logger.WithField(ctx, "subscription", cfg.PubSub.OrdersSubscription))
}
