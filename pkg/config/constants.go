package config

// EnvPrefix is handed to envconfig; every field carries an explicit key so the prefix only
// matters for fields without one.
const EnvPrefix = "HOMEDOC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "HOMEDOC_APP_ENV"
	EnvPort     = "HOMEDOC_APP_PORT"
	EnvLogLevel = "HOMEDOC_LOG_LEVEL"

	EnvDBDSN  = "HOMEDOC_DB_DSN"
	EnvDBHost = "HOMEDOC_DB_HOST"
	EnvDBUser = "HOMEDOC_DB_USER"
	EnvDBName = "HOMEDOC_DB_NAME"
	EnvDBPass = "HOMEDOC_DB_PASSWORD"

	EnvRedisURL = "HOMEDOC_REDIS_URL"

	EnvStripeAPIKey   = "HOMEDOC_STRIPE_API_KEY"
	EnvStripeSecret   = "HOMEDOC_STRIPE_SECRET"
	EnvStripeEnv      = "HOMEDOC_STRIPE_ENV"
	EnvStripeMetadata = "HOMEDOC_STRIPE_METADATA_MAX_SIZE"

	EnvCheckoutOrigin = "HOMEDOC_CHECKOUT_DEFAULT_ORIGIN"

	EnvGCPProjectID      = "HOMEDOC_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "HOMEDOC_PUBSUB_ORDERS_TOPIC"

	EnvPubSubOrdersSubscription = "HOMEDOC_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
