package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("INTEREST_RATE", "")
	t.Setenv("REPORT_TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.Address())
	assert.True(t, cfg.InterestRate.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, cfg.DefaultCreditLimit.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 30*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, "Africa/Nairobi", cfg.ReportLocation.String())
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.RefreshSecret)
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "s")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/fuelnow")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "prod-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "prod-secret:refresh", cfg.RefreshSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL", "1h")
	t.Setenv("INTEREST_RATE", "0.05")
	t.Setenv("RESERVATION_TTL", "10m")
	t.Setenv("REPORT_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.InterestRate.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 10*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, time.UTC, cfg.ReportLocation)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	t.Setenv("OPERATION_TIMEOUT", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "OPERATION_TIMEOUT")

	t.Setenv("OPERATION_TIMEOUT", "")
	t.Setenv("INTEREST_RATE", "-0.1")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("INTEREST_RATE", "")
	t.Setenv("REPORT_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "REPORT_TIMEZONE")
}
