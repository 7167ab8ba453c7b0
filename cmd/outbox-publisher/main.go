package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/homedoc-backend/pkg/bootstrap"
	"github.com/angelmondragon/homedoc-backend/pkg/metrics"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/registry"
	"github.com/angelmondragon/homedoc-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config

	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleRelay, rt.Logger)
	if err != nil {
		return err
	}
	rt.Track("pubsub", psClient)

	router, err := registry.NewRouter(cfg.PubSub)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.ServeMetrics(ctx, cfg.Outbox.MetricsAddr, reg)

	relay, err := NewService(ServiceParams{
		Config:  cfg,
		Logger:  rt.Logger,
		DB:      dbClient,
		PubSub:  psClient,
		Store:   outbox.NewRepository(dbClient.DB()),
		Router:  router,
		Metrics: metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		return err
	}
	return relay.Run(ctx)
}
