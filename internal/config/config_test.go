package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Configured())
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxIdleTime)
	assert.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5, cfg.Checkout.OrderNumberAttempts)
	assert.Equal(t, 30*time.Second, cfg.Checkout.LockTTL)
	assert.Equal(t, "migrations", cfg.Migrations.Dir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/osushi?sslmode=disable")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CHECKOUT_ORDER_NUMBER_ATTEMPTS", "0")
	t.Setenv("CHECKOUT_DEFAULT_DELIVERY_FEE", "3.50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.Configured())
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 1, cfg.Checkout.OrderNumberAttempts)
	assert.True(t, cfg.Checkout.DeliveryFee().Equal(decimal.RequireFromString("3.50")))
}

func TestDeliveryFeeRejectsNegative(t *testing.T) {
	c := CheckoutConfig{DefaultDeliveryFee: "-2"}
	assert.True(t, c.DeliveryFee().IsZero())

	c = CheckoutConfig{DefaultDeliveryFee: "abc"}
	assert.True(t, c.DeliveryFee().IsZero())
}
