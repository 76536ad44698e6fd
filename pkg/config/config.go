package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/vendora-market/vendora-backend/pkg/enums"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Platform     PlatformConfig
	Payout       PayoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Paystack     PaystackConfig
	Flutterwave  FlutterwaveConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Platform.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORA_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORA_DB_DSN"`
	Driver string `envconfig:"VENDORA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VENDORA_DB_HOST"`
	Port     int    `envconfig:"VENDORA_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDORA_DB_USER"`
	Password string `envconfig:"VENDORA_DB_PASSWORD"`
	Name     string `envconfig:"VENDORA_DB_NAME"`
	SSLMode  string `envconfig:"VENDORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORA_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PlatformConfig carries marketplace-wide commercial settings.
type PlatformConfig struct {
	// FeeRate is the platform's cut of an order's net total, e.g. "0.10".
	FeeRate  string `envconfig:"VENDORA_PLATFORM_FEE_RATE" default:"0.10"`
	Currency string `envconfig:"VENDORA_PLATFORM_CURRENCY" default:"USD"`
}

func (p PlatformConfig) validate() error {
	rate, err := decimal.NewFromString(p.FeeRate)
	if err != nil {
		return fmt.Errorf("invalid platform fee rate %q: %w", p.FeeRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("platform fee rate %q must be in [0, 1)", p.FeeRate)
	}
	return nil
}

// FeeRateDecimal returns the parsed platform fee rate. Load validates the raw value.
func (p PlatformConfig) FeeRateDecimal() decimal.Decimal {
	rate, err := decimal.NewFromString(p.FeeRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// CurrencyEnum returns the configured settlement currency.
func (p PlatformConfig) CurrencyEnum() (enums.Currency, error) {
	return enums.ParseCurrency(p.Currency)
}

type PayoutConfig struct {
	Interval        time.Duration `envconfig:"VENDORA_PAYOUT_INTERVAL" default:"24h"`
	TransferTimeout time.Duration `envconfig:"VENDORA_PAYOUT_TRANSFER_TIMEOUT" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDORA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDORA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"VENDORA_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"VENDORA_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"VENDORA_PUBSUB_ORDERS_TOPIC" default:"vnd-order-events"`
	OrdersSubscription string `envconfig:"VENDORA_PUBSUB_ORDERS_SUBSCRIPTION"`
	PayoutTopic        string `envconfig:"VENDORA_PUBSUB_PAYOUT_TOPIC" default:"vnd-payout-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"VENDORA_STRIPE_API_KEY"`
	Secret string `envconfig:"VENDORA_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"VENDORA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"VENDORA_PAYSTACK_SECRET_KEY"`
	BaseURL   string        `envconfig:"VENDORA_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"VENDORA_PAYSTACK_TIMEOUT" default:"15s"`
}

type FlutterwaveConfig struct {
	SecretKey  string        `envconfig:"VENDORA_FLUTTERWAVE_SECRET_KEY"`
	SecretHash string        `envconfig:"VENDORA_FLUTTERWAVE_SECRET_HASH"`
	BaseURL    string        `envconfig:"VENDORA_FLUTTERWAVE_BASE_URL" default:"https://api.flutterwave.com/v3"`
	Timeout    time.Duration `envconfig:"VENDORA_FLUTTERWAVE_TIMEOUT" default:"15s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		"VENDORA_DB_HOST": db.Host,
		"VENDORA_DB_USER": db.User,
		"VENDORA_DB_NAME": db.Name,
	}
	for _, key := range []string{"VENDORA_DB_HOST", "VENDORA_DB_USER", "VENDORA_DB_NAME"} {
		if parts[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either VENDORA_DB_DSN or %s are required", strings.Join(missing, ", "))
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
