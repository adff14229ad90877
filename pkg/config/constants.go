package config

const EnvPrefix = "DEVICEHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	OutboxTransportPubSub = "pubsub"
	OutboxTransportKafka  = "kafka"
)

const (
	EnvAppEnv            = "DEVICEHUB_APP_ENV"
	EnvPort              = "DEVICEHUB_APP_PORT"
	EnvDBDSN             = "DEVICEHUB_DB_DSN"
	EnvDBHost            = "DEVICEHUB_DB_HOST"
	EnvDBUser            = "DEVICEHUB_DB_USER"
	EnvDBName            = "DEVICEHUB_DB_NAME"
	EnvRedisURL          = "DEVICEHUB_REDIS_URL"
	EnvJWTSecret         = "DEVICEHUB_JWT_SECRET"
	EnvJWTIssuer         = "DEVICEHUB_JWT_ISSUER"
	EnvGCPProjectID      = "DEVICEHUB_GCP_PROJECT_ID"
	EnvGCSBucket         = "DEVICEHUB_GCS_BUCKET_NAME"
	EnvOutboxTransport   = "DEVICEHUB_OUTBOX_TRANSPORT"
	EnvKafkaBrokers      = "DEVICEHUB_KAFKA_BROKERS"
	EnvReofferWindow     = "DEVICEHUB_REOFFER_AUTO_ACCEPT_WINDOW"
	EnvLabelSignedURLTTL = "DEVICEHUB_LABEL_SIGNED_URL_TTL"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
