package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/commerce-engine/pkg/config"
	"github.com/utafrali/commerce-engine/pkg/database"
	"github.com/utafrali/commerce-engine/pkg/httpclient"
)

// Storage and lock drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// Notifier kinds.
const (
	NotifierKafka = "kafka"
	NotifierHTTP  = "http"
	NotifierLog   = "log"
)

const devTransferSecret = "dev-transfer-token-secret-change-me"

// Config holds all configuration for the commerce engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8010"`

	// STORAGE_DRIVER selects the repository adapters: postgres or memory.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"ENGINE_DB_NAME" envDefault:"commerce_engine"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Cart
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Locks
	LockDriver     string `env:"LOCK_DRIVER" envDefault:"redis"`
	LockTTLSeconds int    `env:"LOCK_TTL_SECONDS" envDefault:"10"`
	LockWaitMillis int    `env:"LOCK_WAIT_MS" envDefault:"5000"`

	// Kafka
	KafkaEnabled        bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers        []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	OrderCreatedGroupID string   `env:"ORDER_CREATED_GROUP_ID" envDefault:"commerce-engine-order-created"`

	// Notifications
	Notifier               string `env:"NOTIFIER" envDefault:"kafka"`
	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://localhost:8009"`

	// Circuit breaker settings for the notification service
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Order transfers
	TransferTokenSecret string `env:"TRANSFER_TOKEN_SECRET" envDefault:"dev-transfer-token-secret-change-me"`
	TransferTTLHours    int    `env:"TRANSFER_TTL_HOURS" envDefault:"72"`

	// Webhooks. WEBHOOK_SECRETS holds provider:secret pairs.
	WebhookSecrets         map[string]string `env:"WEBHOOK_SECRETS" envKeyValSeparator:":"`
	StripeToleranceSeconds int               `env:"STRIPE_TOLERANCE_SECONDS" envDefault:"300"`
	WebhookRateRPS         float64           `env:"WEBHOOK_RATE_RPS" envDefault:"50"`
	WebhookRateBurst       int               `env:"WEBHOOK_RATE_BURST" envDefault:"100"`
	// LEDGER_DRIVER selects the webhook event ledger. Empty follows STORAGE_DRIVER.
	LedgerDriver         string `env:"LEDGER_DRIVER" envDefault:""`
	LedgerRetentionHours int    `env:"LEDGER_RETENTION_HOURS" envDefault:"720"`

	// Stale transfer requests are expired on this interval.
	TransferSweepMinutes int `env:"TRANSFER_SWEEP_MINUTES" envDefault:"10"`

	// TAX_RATES holds region:basis-points pairs.
	TaxRates map[string]int64 `env:"TAX_RATES" envKeyValSeparator:":"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	cfg.LockDriver = strings.ToLower(cfg.LockDriver)
	cfg.Notifier = strings.ToLower(cfg.Notifier)
	cfg.LedgerDriver = strings.ToLower(cfg.LedgerDriver)
	if cfg.LedgerDriver == "" {
		cfg.LedgerDriver = cfg.StorageDriver
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the engine runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StorageDriver {
	case DriverPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: want postgres or memory", c.StorageDriver)
	}
	switch c.LockDriver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("invalid LOCK_DRIVER %q: want redis or memory", c.LockDriver)
	}
	switch c.LedgerDriver {
	case DriverPostgres:
		if c.StorageDriver != DriverPostgres {
			return fmt.Errorf("LEDGER_DRIVER=postgres requires STORAGE_DRIVER=postgres")
		}
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("invalid LEDGER_DRIVER %q: want postgres, redis or memory", c.LedgerDriver)
	}
	if c.LedgerRetentionHours < 1 {
		return fmt.Errorf("LEDGER_RETENTION_HOURS must be positive, got %d", c.LedgerRetentionHours)
	}
	if c.TransferSweepMinutes < 1 {
		return fmt.Errorf("TRANSFER_SWEEP_MINUTES must be positive, got %d", c.TransferSweepMinutes)
	}
	if c.LockTTLSeconds < 1 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive, got %d", c.LockTTLSeconds)
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTLHours)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	switch c.Notifier {
	case NotifierKafka:
		if !c.KafkaEnabled {
			return fmt.Errorf("NOTIFIER=kafka requires KAFKA_ENABLED")
		}
	case NotifierHTTP:
		if _, err := url.ParseRequestURI(c.NotificationServiceURL); err != nil {
			return fmt.Errorf("invalid NOTIFICATION_SERVICE_URL %q: %w", c.NotificationServiceURL, err)
		}
	case NotifierLog:
	default:
		return fmt.Errorf("invalid NOTIFIER %q: want kafka, http or log", c.Notifier)
	}
	if c.TransferTTLHours < 1 {
		return fmt.Errorf("TRANSFER_TTL_HOURS must be positive, got %d", c.TransferTTLHours)
	}
	if len(c.TransferTokenSecret) < 32 {
		return fmt.Errorf("TRANSFER_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.IsProduction() && c.TransferTokenSecret == devTransferSecret {
		return fmt.Errorf("TRANSFER_TOKEN_SECRET must be set in production")
	}
	for provider, secret := range c.WebhookSecrets {
		if secret == "" {
			return fmt.Errorf("WEBHOOK_SECRETS: empty secret for provider %q", provider)
		}
	}
	if c.StripeToleranceSeconds < 0 {
		return fmt.Errorf("STRIPE_TOLERANCE_SECONDS must not be negative")
	}
	if c.WebhookRateRPS <= 0 || c.WebhookRateBurst < 1 {
		return fmt.Errorf("WEBHOOK_RATE_RPS and WEBHOOK_RATE_BURST must be positive")
	}
	for region, bps := range c.TaxRates {
		if bps < 0 || bps > 10000 {
			return fmt.Errorf("TAX_RATES: rate for region %q must be between 0 and 10000 bps, got %d", region, bps)
		}
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// CircuitBreaker returns the breaker settings for the notification client.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "notification-service",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// CartTTL returns how long an untouched cart is kept.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// LockTTL returns the lease of a distributed lock.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LockWait returns how long an acquire may spin before giving up.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitMillis) * time.Millisecond
}

// TransferTTL returns the lifetime of a transfer token.
func (c *Config) TransferTTL() time.Duration {
	return time.Duration(c.TransferTTLHours) * time.Hour
}

// LedgerRetention returns how long the Redis ledger keeps an event.
func (c *Config) LedgerRetention() time.Duration {
	return time.Duration(c.LedgerRetentionHours) * time.Hour
}

// TransferSweepInterval returns how often stale transfer requests are expired.
func (c *Config) TransferSweepInterval() time.Duration {
	return time.Duration(c.TransferSweepMinutes) * time.Minute
}

// NeedsRedis reports whether any configured component is backed by Redis.
func (c *Config) NeedsRedis() bool {
	return c.StorageDriver == DriverPostgres || c.LockDriver == DriverRedis || c.LedgerDriver == DriverRedis
}

// StripeTolerance returns the accepted clock skew of Stripe signatures.
func (c *Config) StripeTolerance() time.Duration {
	return time.Duration(c.StripeToleranceSeconds) * time.Second
}
