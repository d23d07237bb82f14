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
	Fees         FeesConfig
	Identity     IdentityConfig
	Custodial    CustodialConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Recon        ReconConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGORA_APP_ENV" required:"true"`
	Port         string `envconfig:"AGORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AGORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGORA_DB_DSN"`
	Driver string `envconfig:"AGORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGORA_DB_HOST"`
	LegacyPort     int    `envconfig:"AGORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGORA_DB_USER"`
	LegacyPassword string `envconfig:"AGORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGORA_REDIS_ADDR"`
	Password     string        `envconfig:"AGORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// FeesConfig carries the marketplace fee rates in basis points.
type FeesConfig struct {
	BuyerFeeBps  int64 `envconfig:"AGORA_FEES_BUYER_BPS" default:"250"`
	SellerFeeBps int64 `envconfig:"AGORA_FEES_SELLER_BPS" default:"250"`
}

func (f FeesConfig) validate() error {
	if f.BuyerFeeBps < 0 || f.BuyerFeeBps > 10000 {
		return fmt.Errorf("buyer fee must be between 0 and 10000 bps, got %d", f.BuyerFeeBps)
	}
	if f.SellerFeeBps < 0 || f.SellerFeeBps > 10000 {
		return fmt.Errorf("seller fee must be between 0 and 10000 bps, got %d", f.SellerFeeBps)
	}
	return nil
}

// IdentityConfig points at the agent directory service.
type IdentityConfig struct {
	BaseURL string        `envconfig:"AGORA_IDENTITY_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"AGORA_IDENTITY_TIMEOUT" default:"5s"`
}

// CustodialConfig points at the custodial wallet provider.
type CustodialConfig struct {
	BaseURL string        `envconfig:"AGORA_CUSTODIAL_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"AGORA_CUSTODIAL_API_KEY"`
	Timeout time.Duration `envconfig:"AGORA_CUSTODIAL_TIMEOUT" default:"10s"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"AGORA_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"AGORA_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"AGORA_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"AGORA_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AGORA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AGORA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AGORA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TenderTopic        string `envconfig:"AGORA_PUBSUB_TENDER_TOPIC" required:"true"`
	TenderSubscription string `envconfig:"AGORA_PUBSUB_TENDER_SUBSCRIPTION"`
	WalletTopic        string `envconfig:"AGORA_PUBSUB_WALLET_TOPIC" required:"true"`
	WalletSubscription string `envconfig:"AGORA_PUBSUB_WALLET_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AGORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AGORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AGORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// ReconConfig tunes the background reconciliation and provisioning sweeps.
type ReconConfig struct {
	SweepInterval time.Duration `envconfig:"AGORA_RECON_SWEEP_INTERVAL" default:"5m"`
	BatchSize     int           `envconfig:"AGORA_RECON_BATCH_SIZE" default:"100"`
	StaleAfter    time.Duration `envconfig:"AGORA_RECON_STALE_AFTER" default:"15m"`
	MaxAttempts   int           `envconfig:"AGORA_RECON_MAX_ATTEMPTS" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGORA_AUTO_MIGRATE" default:"false"`
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
