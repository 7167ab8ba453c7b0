// Package stripe wraps the hosted checkout API and maps its failures onto the
// service error codes.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

type mode string

const (
	modeTest mode = "test"
	modeLive mode = "live"
)

// keyPrefixes lists the secret and restricted key prefixes each mode accepts.
var keyPrefixes = map[mode][]string{
	modeTest: {"sk_test_", "rk_test_"},
	modeLive: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", modeTest, modeLive)
)

// Client owns one Stripe API client per process plus the webhook secret.
type Client struct {
	api           *stripe.Client
	mode          mode
	signingSecret string
}

// NewClient validates credentials against the configured mode. A nil
// httpClient uses the library's default transport.
func NewClient(ctx context.Context, cfg config.StripeConfig, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	m := mode(cfg.Environment())
	if _, ok := keyPrefixes[m]; !ok {
		return nil, errInvalidStripeEnv
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	if err := checkKeyMode(m, key); err != nil {
		return nil, err
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{HTTPClient: httpClient})
	c := &Client{
		api:           stripe.NewClient(key, stripe.WithBackends(backends)),
		mode:          m,
		signingSecret: secret,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", string(m)), "stripe client initialized")
	}
	return c, nil
}

func checkKeyMode(m mode, key string) error {
	prefixes, ok := keyPrefixes[m]
	if !ok {
		return errInvalidStripeEnv
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a key starting with %s", m, strings.Join(prefixes, " or "))
}

// Environment reports the Stripe mode in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return string(c.mode)
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
