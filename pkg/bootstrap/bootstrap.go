// Package bootstrap holds the process lifecycle shared by the binaries under
// cmd/: environment and config loading, the service logger, signal handling
// and ordered shutdown of the clients a binary opens.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/db"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/migrate"
	"github.com/angelmondragon/homedoc-backend/pkg/redis"
)

const listenerShutdown = 5 * time.Second

// Runtime is what a binary's run function receives.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Main loads .env and the HOMEDOC_* config, then runs fn until SIGINT or
// SIGTERM. The process exits 1 when startup or fn fails.
func Main(service string, fn func(ctx context.Context, rt *Runtime) error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	rt := &Runtime{
		Service: service,
		Config:  cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rt.Run(ctx, fn); err != nil {
		rt.Logger.Error(ctx, service+" stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
}

// Run calls fn with the env tag on ctx and closes registered clients in
// reverse order afterwards. Cancellation of ctx is a clean stop.
func (rt *Runtime) Run(ctx context.Context, fn func(ctx context.Context, rt *Runtime) error) (err error) {
	if rt.Config != nil {
		ctx = rt.Logger.WithField(ctx, "env", rt.Config.App.Env)
	}
	defer func() { err = multierr.Append(err, rt.close()) }()

	rt.Logger.Info(ctx, "starting "+rt.Service)
	if err := fn(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.Logger.Info(ctx, rt.Service+" shut down")
	return nil
}

// OnClose registers fn to run at shutdown. Later registrations run first.
func (rt *Runtime) OnClose(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Track registers c for shutdown under name.
func (rt *Runtime) Track(name string, c io.Closer) {
	rt.OnClose(name, c.Close)
}

func (rt *Runtime) close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].fn(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", rt.closers[i].name, err))
		}
	}
	rt.closers = nil
	return errs
}

// Database opens Postgres and applies embedded migrations in dev when
// auto-migrate is enabled.
func (rt *Runtime) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Track("database", client)
	if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Track("redis", client)
	return client, nil
}

// ServeMetrics exposes gatherer on addr/metrics in the background. A blank
// addr disables the listener.
func (rt *Runtime) ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
	rt.OnClose("metrics listener", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), listenerShutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
