package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Redis      RedisConfig
	Log        LogConfig
	Checkout   CheckoutConfig
	Migrations MigrationsConfig
}

type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DATABASE_CONN_MAX_IDLE_TIME" default:"1m"`
	PingTimeout     time.Duration `envconfig:"DATABASE_PING_TIMEOUT" default:"5s"`
}

// Configured reports whether a data store URL was supplied.
func (d DatabaseConfig) Configured() bool {
	return d.URL != ""
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`

	// OrderRatePerMinute and OrderRateBurst throttle POST /orders per client.
	OrderRatePerMinute int `envconfig:"SERVER_ORDER_RATE_PER_MINUTE" default:"10"`
	OrderRateBurst     int `envconfig:"SERVER_ORDER_RATE_BURST" default:"5"`
}

// RedisConfig backs cart persistence and checkout locks. An empty URL keeps
// both in process.
type RedisConfig struct {
	URL       string        `envconfig:"REDIS_URL"`
	KeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"osushi"`
	CartTTL   time.Duration `envconfig:"REDIS_CART_TTL" default:"720h"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type CheckoutConfig struct {
	OrderNumberAttempts int           `envconfig:"CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"5"`
	LockTTL             time.Duration `envconfig:"CHECKOUT_LOCK_TTL" default:"30s"`
	DefaultDeliveryFee  string        `envconfig:"CHECKOUT_DEFAULT_DELIVERY_FEE" default:"0"`
}

// DeliveryFee parses DefaultDeliveryFee. Invalid or negative values yield zero.
func (c CheckoutConfig) DeliveryFee() decimal.Decimal {
	fee, err := decimal.NewFromString(c.DefaultDeliveryFee)
	if err != nil || fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

type MigrationsConfig struct {
	Dir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Checkout.OrderNumberAttempts < 1 {
		cfg.Checkout.OrderNumberAttempts = 1
	}

	return &cfg, nil
}
