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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	PipraPay     PipraPayConfig
	Webhook      WebhookConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.PipraPay.validateWebhookAuth(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROMPTSTUDIO_APP_ENV" required:"true"`
	Port         string `envconfig:"PROMPTSTUDIO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROMPTSTUDIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROMPTSTUDIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PROMPTSTUDIO_DB_DSN"`
	Driver string `envconfig:"PROMPTSTUDIO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROMPTSTUDIO_DB_HOST"`
	LegacyPort     int    `envconfig:"PROMPTSTUDIO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROMPTSTUDIO_DB_USER"`
	LegacyPassword string `envconfig:"PROMPTSTUDIO_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROMPTSTUDIO_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROMPTSTUDIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROMPTSTUDIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROMPTSTUDIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROMPTSTUDIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROMPTSTUDIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROMPTSTUDIO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PROMPTSTUDIO_REDIS_ADDR"`
	Password     string        `envconfig:"PROMPTSTUDIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROMPTSTUDIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROMPTSTUDIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROMPTSTUDIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROMPTSTUDIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROMPTSTUDIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROMPTSTUDIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PROMPTSTUDIO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PROMPTSTUDIO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PROMPTSTUDIO_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PROMPTSTUDIO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PROMPTSTUDIO_AUTO_MIGRATE" default:"false"`
}

// PipraPayConfig carries the credentials for both the outbound payment client
// and inbound webhook verification. At least one webhook credential must be
// configured: a deployment without them cannot authenticate callbacks, and
// that is a startup error rather than a runtime pass-through.
type PipraPayConfig struct {
	APIKey        string `envconfig:"PROMPTSTUDIO_PIPRAPAY_API_KEY" required:"true"`
	BaseURL       string `envconfig:"PROMPTSTUDIO_PIPRAPAY_BASE_URL" default:"https://sandbox.piprapay.com/api"`
	WebhookSecret string `envconfig:"PROMPTSTUDIO_PIPRAPAY_WEBHOOK_SECRET"`
	WebhookAPIKey string `envconfig:"PROMPTSTUDIO_PIPRAPAY_WEBHOOK_API_KEY"`
}

func (p *PipraPayConfig) validateWebhookAuth() error {
	if strings.TrimSpace(p.WebhookAPIKey) == "" {
		p.WebhookAPIKey = p.APIKey
	}
	if strings.TrimSpace(p.WebhookSecret) == "" && strings.TrimSpace(p.WebhookAPIKey) == "" {
		return fmt.Errorf("either %s or %s is required to authenticate webhooks", EnvPipraPayWebhookSecret, EnvPipraPayWebhookAPIKey)
	}
	return nil
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PROMPTSTUDIO_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"PROMPTSTUDIO_CRON_INTERVAL" default:"1h"`
	ReconcileLookback  time.Duration `envconfig:"PROMPTSTUDIO_CRON_RECONCILE_LOOKBACK" default:"72h"`
	ReconcileBatchSize int           `envconfig:"PROMPTSTUDIO_CRON_RECONCILE_BATCH_SIZE" default:"200"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PROMPTSTUDIO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"PROMPTSTUDIO_PUBSUB_PAYMENTS_TOPIC" default:"ps-payment-events"`
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
