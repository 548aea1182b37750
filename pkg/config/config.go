package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "dripspot"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DRIPSPOT_APP_ENV" required:"true"`
	Port         string `envconfig:"DRIPSPOT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DRIPSPOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DRIPSPOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DRIPSPOT_DB_DSN" required:"true"`
	Driver string `envconfig:"DRIPSPOT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"DRIPSPOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRIPSPOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRIPSPOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRIPSPOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRIPSPOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DRIPSPOT_REDIS_ADDR"`
	Password     string        `envconfig:"DRIPSPOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRIPSPOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DRIPSPOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRIPSPOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRIPSPOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRIPSPOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRIPSPOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DRIPSPOT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DRIPSPOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DRIPSPOT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"DRIPSPOT_STRIPE_API_KEY"`
	Secret string `envconfig:"DRIPSPOT_STRIPE_SECRET"`
	Env    string `envconfig:"DRIPSPOT_STRIPE_ENV" default:"test"`

	PriceShopProMonthly        string `envconfig:"DRIPSPOT_STRIPE_PRICE_SHOP_PRO_MONTHLY"`
	PriceShopProAnnual         string `envconfig:"DRIPSPOT_STRIPE_PRICE_SHOP_PRO_ANNUAL"`
	PriceShopProPlusMonthly    string `envconfig:"DRIPSPOT_STRIPE_PRICE_SHOP_PRO_PLUS_MONTHLY"`
	PriceShopProPlusAnnual     string `envconfig:"DRIPSPOT_STRIPE_PRICE_SHOP_PRO_PLUS_ANNUAL"`
	PriceMembershipMonthly     string `envconfig:"DRIPSPOT_STRIPE_PRICE_MEMBERSHIP_MONTHLY"`
	PriceMembershipAnnual      string `envconfig:"DRIPSPOT_STRIPE_PRICE_MEMBERSHIP_ANNUAL"`
	WebhookIdempotencyTTLHours int    `envconfig:"DRIPSPOT_STRIPE_WEBHOOK_IDEMPOTENCY_TTL_HOURS" default:"72"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	return strings.TrimSpace(strings.ToLower(s.Env))
}

// WebhookIdempotencyTTL is the redis fast-path TTL; the durable event ledger
// has no expiry.
func (s StripeConfig) WebhookIdempotencyTTL() time.Duration {
	if s.WebhookIdempotencyTTLHours <= 0 {
		return 0
	}
	return time.Duration(s.WebhookIdempotencyTTLHours) * time.Hour
}

type BillingConfig struct {
	// GraceWindow bounds how long past_due keeps paid features after the
	// current period end. Zero means indefinite grace (until a deletion
	// event arrives).
	GraceWindow time.Duration `envconfig:"DRIPSPOT_BILLING_GRACE_WINDOW" default:"0"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DRIPSPOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DRIPSPOT_AUTO_MIGRATE" default:"false"`
}
