package config

// EnvPrefix scopes all environment variables consumed by the service.
const EnvPrefix = "REPLENISH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "REPLENISH_APP_ENV"
	EnvPort   = "REPLENISH_APP_PORT"

	EnvDBDSN  = "REPLENISH_DB_DSN"
	EnvDBHost = "REPLENISH_DB_HOST"
	EnvDBUser = "REPLENISH_DB_USER"
	EnvDBName = "REPLENISH_DB_NAME"

	EnvRedisURL = "REPLENISH_REDIS_URL"

	EnvGCPProjectID = "REPLENISH_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic = "REPLENISH_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "REPLENISH_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubDomainTopic = "REPLENISH_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "REPLENISH_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
