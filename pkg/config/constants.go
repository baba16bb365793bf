package config

// EnvPrefix scopes every environment variable this service reads.
const EnvPrefix = "PROMPTSTUDIO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "PROMPTSTUDIO_DB_DSN"
	EnvDBHost = "PROMPTSTUDIO_DB_HOST"
	EnvDBUser = "PROMPTSTUDIO_DB_USER"
	EnvDBName = "PROMPTSTUDIO_DB_NAME"

	EnvPipraPayWebhookSecret = "PROMPTSTUDIO_PIPRAPAY_WEBHOOK_SECRET"
	EnvPipraPayWebhookAPIKey = "PROMPTSTUDIO_PIPRAPAY_WEBHOOK_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
