package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	GCP        GCPConfig
	GCS        GCSConfig
	PubSub     PubSubConfig
	Kafka      KafkaConfig
	Outbox     OutboxConfig
	Stripe     StripeConfig
	ShipEngine ShipEngineConfig
	Carrier    CarrierWebhookConfig
	Labels     LabelsConfig
	Reoffer    ReofferConfig
	Cron       CronConfig
	Eventing   EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DEVICEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"DEVICEHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEVICEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEVICEHUB_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"DEVICEHUB_AUTO_MIGRATE" default:"false"`

	CORSOrigins []string `envconfig:"DEVICEHUB_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DEVICEHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DEVICEHUB_DB_DSN"`
	Driver string `envconfig:"DEVICEHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"DEVICEHUB_DB_HOST"`
	Port     int    `envconfig:"DEVICEHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"DEVICEHUB_DB_USER"`
	Password string `envconfig:"DEVICEHUB_DB_PASSWORD"`
	Name     string `envconfig:"DEVICEHUB_DB_NAME"`
	SSLMode  string `envconfig:"DEVICEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEVICEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEVICEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEVICEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEVICEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEVICEHUB_REDIS_URL" required:"true"`
	Password     string        `envconfig:"DEVICEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEVICEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEVICEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEVICEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEVICEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEVICEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEVICEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification side of the bearer tokens issued by the
// identity service. This service never mints tokens.
type JWTConfig struct {
	Secret string `envconfig:"DEVICEHUB_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"DEVICEHUB_JWT_ISSUER" required:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DEVICEHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DEVICEHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DEVICEHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName     string        `envconfig:"DEVICEHUB_GCS_BUCKET_NAME" required:"true"`
	RequestTimeout time.Duration `envconfig:"DEVICEHUB_GCS_REQUEST_TIMEOUT" default:"30s"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"DEVICEHUB_PUBSUB_DOMAIN_TOPIC" default:"devicehub-domain-events"`
	DLQTopic    string `envconfig:"DEVICEHUB_PUBSUB_DLQ_TOPIC"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"DEVICEHUB_KAFKA_BROKERS"`
	Topic        string        `envconfig:"DEVICEHUB_KAFKA_TOPIC" default:"devicehub.domain-events"`
	WriteTimeout time.Duration `envconfig:"DEVICEHUB_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	Transport      string `envconfig:"DEVICEHUB_OUTBOX_TRANSPORT" default:"pubsub"`
	BatchSize      int    `envconfig:"DEVICEHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"DEVICEHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"DEVICEHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention time.Duration `envconfig:"DEVICEHUB_OUTBOX_RETENTION" default:"720h"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Transport)) {
	case OutboxTransportPubSub, OutboxTransportKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxTransport, OutboxTransportPubSub, OutboxTransportKafka)
	}
}

// NormalizedTransport returns the lower-cased transport name.
func (o OutboxConfig) NormalizedTransport() string {
	return strings.ToLower(strings.TrimSpace(o.Transport))
}

type StripeConfig struct {
	APIKey   string `envconfig:"DEVICEHUB_STRIPE_API_KEY"`
	Secret   string `envconfig:"DEVICEHUB_STRIPE_SECRET"`
	Env      string `envconfig:"DEVICEHUB_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"DEVICEHUB_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ShipEngineConfig struct {
	BaseURL     string        `envconfig:"DEVICEHUB_SHIPENGINE_BASE_URL" default:"https://api.shipengine.com"`
	APIKey      string        `envconfig:"DEVICEHUB_SHIPENGINE_API_KEY"`
	CarrierID   string        `envconfig:"DEVICEHUB_SHIPENGINE_CARRIER_ID"`
	ServiceCode string        `envconfig:"DEVICEHUB_SHIPENGINE_SERVICE_CODE" default:"usps_priority_mail"`
	Timeout     time.Duration `envconfig:"DEVICEHUB_SHIPENGINE_TIMEOUT" default:"20s"`

	// Warehouse address the inbound labels ship to.
	ShipToName       string `envconfig:"DEVICEHUB_SHIP_TO_NAME" default:"DeviceHub Receiving"`
	ShipToLine1      string `envconfig:"DEVICEHUB_SHIP_TO_LINE1"`
	ShipToCity       string `envconfig:"DEVICEHUB_SHIP_TO_CITY"`
	ShipToState      string `envconfig:"DEVICEHUB_SHIP_TO_STATE"`
	ShipToPostalCode string `envconfig:"DEVICEHUB_SHIP_TO_POSTAL_CODE"`
	ShipToPhone      string `envconfig:"DEVICEHUB_SHIP_TO_PHONE"`
}

// CarrierWebhookConfig holds the shared secrets per signature header.
type CarrierWebhookConfig struct {
	ShipEngineSecret string        `envconfig:"DEVICEHUB_CARRIER_SHIPENGINE_SECRET"`
	HubSecret        string        `envconfig:"DEVICEHUB_CARRIER_HUB_SECRET"`
	IdempotencyTTL   time.Duration `envconfig:"DEVICEHUB_CARRIER_IDEMPOTENCY_TTL" default:"72h"`
}

type LabelsConfig struct {
	SignedURLTTL time.Duration `envconfig:"DEVICEHUB_LABEL_SIGNED_URL_TTL" default:"1h"`
	PathPrefix   string        `envconfig:"DEVICEHUB_LABEL_PATH_PREFIX" default:"labels"`
}

type ReofferConfig struct {
	AutoAcceptWindow time.Duration `envconfig:"DEVICEHUB_REOFFER_AUTO_ACCEPT_WINDOW" default:"168h"`
}

type CronConfig struct {
	Interval  time.Duration `envconfig:"DEVICEHUB_CRON_INTERVAL" default:"1m"`
	LockTTL   time.Duration `envconfig:"DEVICEHUB_CRON_LOCK_TTL" default:"55s"`
	BatchSize int           `envconfig:"DEVICEHUB_CRON_BATCH_SIZE" default:"200"`
}

// EventingConfig bounds how long Stripe event ids are remembered.
type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"DEVICEHUB_STRIPE_EVENT_TTL" default:"72h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
