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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	DeviceKey    DeviceKeyConfig
	Dispatch     DispatchConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"RESQLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"RESQLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RESQLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESQLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RESQLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RESQLINK_DB_DSN"`
	Driver string `envconfig:"RESQLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RESQLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"RESQLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESQLINK_DB_USER"`
	LegacyPassword string `envconfig:"RESQLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESQLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESQLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RESQLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESQLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESQLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESQLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESQLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RESQLINK_REDIS_ADDR"`
	Password     string        `envconfig:"RESQLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESQLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESQLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESQLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESQLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESQLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESQLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RESQLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RESQLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RESQLINK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type DeviceKeyConfig struct {
	ArgonMemoryKB    int `envconfig:"RESQLINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RESQLINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RESQLINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RESQLINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RESQLINK_ARGON_KEY_LEN" default:"32"`
}

// DispatchConfig carries the intake-guard and matcher tunables. The defaults
// match the limits the mobile clients were built against.
type DispatchConfig struct {
	RateLimitMax        int           `envconfig:"RESQLINK_DISPATCH_RATE_LIMIT_MAX" default:"3"`
	RateLimitWindow     time.Duration `envconfig:"RESQLINK_DISPATCH_RATE_LIMIT_WINDOW" default:"5m"`
	DuplicateWindow     time.Duration `envconfig:"RESQLINK_DISPATCH_DUPLICATE_WINDOW" default:"10m"`
	DuplicateRadiusM    float64       `envconfig:"RESQLINK_DISPATCH_DUPLICATE_RADIUS_M" default:"100"`
	DefaultSearchKM     float64       `envconfig:"RESQLINK_DISPATCH_DEFAULT_SEARCH_KM" default:"50"`
	DefaultSearchLimit  int           `envconfig:"RESQLINK_DISPATCH_DEFAULT_SEARCH_LIMIT" default:"5"`
	MaxAlternativeFirms int           `envconfig:"RESQLINK_DISPATCH_MAX_ALTERNATIVE_FIRMS" default:"3"`
	GeocodeTimeout      time.Duration `envconfig:"RESQLINK_DISPATCH_GEOCODE_TIMEOUT" default:"2s"`
}

type CronConfig struct {
	StalePendingThreshold    time.Duration `envconfig:"RESQLINK_CRON_STALE_PENDING_THRESHOLD" default:"10m"`
	ProviderOfflineThreshold time.Duration `envconfig:"RESQLINK_CRON_PROVIDER_OFFLINE_THRESHOLD" default:"15m"`
	OutboxRetention          time.Duration `envconfig:"RESQLINK_CRON_OUTBOX_RETENTION" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RESQLINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RESQLINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"RESQLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"RESQLINK_GOOGLE_MAPS_API_KEY"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RESQLINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"RESQLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RESQLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DispatchTopic        string `envconfig:"RESQLINK_PUBSUB_DISPATCH_TOPIC" default:"rql-dispatch-events"`
	DispatchSubscription string `envconfig:"RESQLINK_PUBSUB_DISPATCH_SUBSCRIPTION" required:"true"`
	NotificationTopic    string `envconfig:"RESQLINK_PUBSUB_NOTIFICATION_TOPIC" default:"rql-notification-events"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"RESQLINK_BIGQUERY_DATASET" default:"resqlink"`
	ResponseEventsTable string `envconfig:"RESQLINK_BIGQUERY_RESPONSE_TABLE" default:"response_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RESQLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RESQLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RESQLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
