package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	PersistBackendSQLite = "sqlite"
	PersistBackendRedis  = "redis"
	PersistBackendNone   = "none"
)

type Config struct {
	App      AppConfig
	Gateway  GatewayConfig
	Persist  PersistConfig
	Redis    RedisConfig
	Sync     SyncConfig
	Checkout CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Persist.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LUNASTORE_APP_ENV" default:"development"`
	Port         string `envconfig:"LUNASTORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LUNASTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUNASTORE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"LUNASTORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type GatewayConfig struct {
	BaseURL       string        `envconfig:"LUNASTORE_CART_API_URL" required:"true"`
	Timeout       time.Duration `envconfig:"LUNASTORE_CART_API_TIMEOUT" default:"10s"`
	FetchRetries  uint64        `envconfig:"LUNASTORE_CART_API_FETCH_RETRIES" default:"2"`
	RetryBackoff  time.Duration `envconfig:"LUNASTORE_CART_API_RETRY_BACKOFF" default:"200ms"`
	AuthScheme    string        `envconfig:"LUNASTORE_CART_API_AUTH_SCHEME" default:"Bearer"`
	ClientVersion string        `envconfig:"LUNASTORE_CLIENT_VERSION" default:"dev"`
}

type PersistConfig struct {
	Backend    string `envconfig:"LUNASTORE_PERSIST_BACKEND" default:"sqlite"`
	SQLitePath string `envconfig:"LUNASTORE_PERSIST_SQLITE_PATH" default:"lunastore.db"`
	Slot       string `envconfig:"LUNASTORE_PERSIST_SLOT" default:"cart_items"`
}

func (p PersistConfig) validate() error {
	switch p.Backend {
	case PersistBackendSQLite, PersistBackendRedis, PersistBackendNone:
		return nil
	}
	return fmt.Errorf("unknown persist backend %q", p.Backend)
}

type RedisConfig struct {
	URL          string        `envconfig:"LUNASTORE_REDIS_URL"`
	Address      string        `envconfig:"LUNASTORE_REDIS_ADDR"`
	Password     string        `envconfig:"LUNASTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUNASTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUNASTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUNASTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUNASTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUNASTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUNASTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SyncConfig struct {
	RefreshDebounce  time.Duration `envconfig:"LUNASTORE_SYNC_REFRESH_DEBOUNCE" default:"1s"`
	QuantityDebounce time.Duration `envconfig:"LUNASTORE_SYNC_QUANTITY_DEBOUNCE" default:"500ms"`
	// FailClosed blocks checkout when reconciliation cannot reach the
	// remote cart. The observed storefront fails open.
	FailClosed bool `envconfig:"LUNASTORE_SYNC_FAIL_CLOSED" default:"false"`
}

type CheckoutConfig struct {
	PolicyRequired bool `envconfig:"LUNASTORE_CHECKOUT_POLICY_REQUIRED" default:"true"`
}
