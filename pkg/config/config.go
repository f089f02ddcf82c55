package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Subscriptions SubscriptionsConfig
	Scheduler     SchedulerConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"REPLENISH_APP_ENV" required:"true"`
	Port         string `envconfig:"REPLENISH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REPLENISH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REPLENISH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"REPLENISH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"REPLENISH_DB_DSN"`
	Driver string `envconfig:"REPLENISH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REPLENISH_DB_HOST"`
	LegacyPort     int    `envconfig:"REPLENISH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REPLENISH_DB_USER"`
	LegacyPassword string `envconfig:"REPLENISH_DB_PASSWORD"`
	LegacyName     string `envconfig:"REPLENISH_DB_NAME"`
	LegacySSLMode  string `envconfig:"REPLENISH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REPLENISH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REPLENISH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REPLENISH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REPLENISH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REPLENISH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REPLENISH_REDIS_ADDR"`
	Password     string        `envconfig:"REPLENISH_REDIS_PASSWORD"`
	DB           int           `envconfig:"REPLENISH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REPLENISH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REPLENISH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REPLENISH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REPLENISH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REPLENISH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REPLENISH_AUTO_MIGRATE" default:"false"`
}

// SubscriptionsConfig carries the business parameters of the recurrence engine.
type SubscriptionsConfig struct {
	// OrderLeadTime is the fixed offset between an order's creation date and
	// its expected delivery date.
	OrderLeadTime time.Duration `envconfig:"REPLENISH_ORDER_LEAD_TIME" default:"48h"`
}

type SchedulerConfig struct {
	ScanInterval time.Duration `envconfig:"REPLENISH_SCHEDULER_SCAN_INTERVAL" default:"15m"`
	BatchLimit   int           `envconfig:"REPLENISH_SCHEDULER_BATCH_LIMIT" default:"250"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"REPLENISH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"REPLENISH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"REPLENISH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"REPLENISH_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"REPLENISH_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	DomainTopic        string `envconfig:"REPLENISH_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"REPLENISH_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"REPLENISH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"REPLENISH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"REPLENISH_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
