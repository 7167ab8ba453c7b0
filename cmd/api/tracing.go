package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/angelmondragon/homedoc-backend/internal/assist"
	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

// No exporter is installed: spans stay non-recording. otelhttp is kept for
// W3C trace context, read from inbound requests and written on outbound calls,
// so the edge proxy's traces link to upstream provider logs.
var tracePropagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

func init() {
	otel.SetTextMapPropagator(tracePropagator)
}

func instrument(h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, "homedoc-api", otelhttp.WithPropagators(tracePropagator))
}

func outboundTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base, otelhttp.WithPropagators(tracePropagator))
}

// tracedClient returns an HTTP client whose requests carry trace context.
func tracedClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: outboundTransport(nil)}
}

// newAssistService returns a nil Service when no key is configured, which the
// router answers with 503.
func newAssistService(cfg config.AssistConfig, logg *logger.Logger) (assist.Service, error) {
	if !cfg.Enabled() {
		logg.Warn(context.Background(), "assist api key not set, symptom chat disabled")
		return nil, nil
	}
	client, err := assist.NewClient(assist.ClientParams{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: tracedClient(cfg.Timeout),
	})
	if err != nil {
		return nil, err
	}
	return assist.NewService(assist.ServiceParams{
		Completer:     client,
		Logger:        logg,
		Model:         cfg.Model,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
	})
}
