package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	Assist       AssistConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"HOMEDOC_APP_ENV" required:"true"`
	Port         string        `envconfig:"HOMEDOC_APP_PORT" required:"true"`
	LogLevel     string        `envconfig:"HOMEDOC_LOG_LEVEL" default:"info"`
	LogWarnStack bool          `envconfig:"HOMEDOC_LOG_WARN_STACK" default:"false"`
	ReadTimeout  time.Duration `envconfig:"HOMEDOC_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HOMEDOC_HTTP_WRITE_TIMEOUT" default:"30s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HOMEDOC_DB_DSN"`
	Driver string `envconfig:"HOMEDOC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOMEDOC_DB_HOST"`
	LegacyPort     int    `envconfig:"HOMEDOC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOMEDOC_DB_USER"`
	LegacyPassword string `envconfig:"HOMEDOC_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOMEDOC_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOMEDOC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOMEDOC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOMEDOC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOMEDOC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOMEDOC_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"HOMEDOC_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOMEDOC_REDIS_URL"`
	Address      string        `envconfig:"HOMEDOC_REDIS_ADDR"`
	Password     string        `envconfig:"HOMEDOC_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOMEDOC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOMEDOC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOMEDOC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOMEDOC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOMEDOC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOMEDOC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOMEDOC_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL  time.Duration `envconfig:"HOMEDOC_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	ConsumerIdempotencyTTL time.Duration `envconfig:"HOMEDOC_EVENTING_CONSUMER_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"HOMEDOC_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"HOMEDOC_PUBSUB_ORDERS_TOPIC" default:"homedoc-order-events"`
	OrdersSubscription string `envconfig:"HOMEDOC_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOMEDOC_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOMEDOC_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOMEDOC_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr enables a /metrics listener on the publisher when set.
	MetricsAddr string `envconfig:"HOMEDOC_OUTBOX_METRICS_ADDR"`
}

type StripeConfig struct {
	APIKey            string        `envconfig:"HOMEDOC_STRIPE_API_KEY"`
	Secret            string        `envconfig:"HOMEDOC_STRIPE_SECRET"`
	Env               string        `envconfig:"HOMEDOC_STRIPE_ENV" default:"test"`
	Currency          string        `envconfig:"HOMEDOC_STRIPE_CURRENCY" default:"usd"`
	MetadataMaxSize   int           `envconfig:"HOMEDOC_STRIPE_METADATA_MAX_SIZE" default:"500"`
	MetadataMaxChunks int           `envconfig:"HOMEDOC_STRIPE_METADATA_MAX_CHUNKS" default:"20"`
	Timeout           time.Duration `envconfig:"HOMEDOC_STRIPE_TIMEOUT" default:"30s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	DefaultOrigin string `envconfig:"HOMEDOC_CHECKOUT_DEFAULT_ORIGIN" default:"http://localhost:5173"`
	SuccessPath   string `envconfig:"HOMEDOC_CHECKOUT_SUCCESS_PATH" default:"/payment-success"`
	CancelPath    string `envconfig:"HOMEDOC_CHECKOUT_CANCEL_PATH" default:"/payment-canceled"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"HOMEDOC_CRON_INTERVAL" default:"15m"`
	LockTTL         time.Duration `envconfig:"HOMEDOC_CRON_LOCK_TTL" default:"30m"`
	OutboxRetention time.Duration `envconfig:"HOMEDOC_CRON_OUTBOX_RETENTION" default:"720h"`
	// NotificationRetention applies to read notifications only.
	NotificationRetention time.Duration `envconfig:"HOMEDOC_CRON_NOTIFICATION_RETENTION" default:"2160h"`
	// ReconcileLookback bounds how far back completed sessions are re-verified.
	ReconcileLookback time.Duration `envconfig:"HOMEDOC_CRON_RECONCILE_LOOKBACK" default:"24h"`
}

// AssistConfig points the symptom chat proxy at an OpenAI-compatible
// completions endpoint. An empty APIKey disables the route.
type AssistConfig struct {
	BaseURL       string        `envconfig:"HOMEDOC_ASSIST_BASE_URL" default:"https://api.x.ai/v1"`
	APIKey        string        `envconfig:"HOMEDOC_ASSIST_API_KEY"`
	Model         string        `envconfig:"HOMEDOC_ASSIST_MODEL" default:"llama-3.3-70b-versatile"`
	Timeout       time.Duration `envconfig:"HOMEDOC_ASSIST_TIMEOUT" default:"30s"`
	MaxRetries    int           `envconfig:"HOMEDOC_ASSIST_MAX_RETRIES" default:"2"`
	RatePerSecond float64       `envconfig:"HOMEDOC_ASSIST_RATE_PER_SECOND" default:"5"`
	Burst         int           `envconfig:"HOMEDOC_ASSIST_BURST" default:"10"`
}

// Enabled reports whether an upstream key is configured.
func (a AssistConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
