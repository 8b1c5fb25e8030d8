package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/mpesa"
	"github.com/fuelnow/fuelnow/internal/notification"
)

const (
	defaultAppName          = "FuelNow"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultOperationTimeout = 5 * time.Second
	defaultReservationTTL   = 30 * time.Minute
	defaultExpirySweep      = time.Minute
	defaultAccessTTL        = 15 * time.Minute
	defaultRefreshTTL       = 7 * 24 * time.Hour
	defaultReportTimezone   = "Africa/Nairobi"
	devJWTSecret            = "dev-access-secret"
	devRefreshSecret        = "dev-refresh-secret"
)

var (
	defaultInterestRate = decimal.RequireFromString("0.10")
	defaultCreditLimit  = decimal.NewFromInt(1000)
)

// Config captures application runtime configuration loaded from the
// environment, after an optional .env file.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	InterestRate       decimal.Decimal
	OperationTimeout   time.Duration
	ReservationTTL     time.Duration
	ExpirySweep        time.Duration
	ReportLocation     *time.Location
	DefaultCreditLimit decimal.Decimal
	ActivationFee      decimal.Decimal

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AdminName       string
	AdminEmail      string
	AdminPassword   string

	MPesa mpesa.Config
	SMS   notification.SMSGatewayConfig
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("REFRESH_SECRET"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		MPesa: mpesa.Config{
			BaseURL:        os.Getenv("MPESA_BASE_URL"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:      os.Getenv("MPESA_SHORTCODE"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		},
		SMS: notification.SMSGatewayConfig{
			BaseURL:  os.Getenv("SMS_BASE_URL"),
			Username: os.Getenv("SMS_USERNAME"),
			APIKey:   os.Getenv("SMS_API_KEY"),
			SenderID: os.Getenv("SMS_SENDER_ID"),
		},
	}

	var err error
	durations := []struct {
		dst              *time.Duration
		secondsKey, dKey string
		fallback         time.Duration
	}{
		{&cfg.ShutdownPeriod, "SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", defaultShutdownDelay},
		{&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL", defaultIdempotencyTTL},
		{&cfg.OperationTimeout, "", "OPERATION_TIMEOUT", defaultOperationTimeout},
		{&cfg.ReservationTTL, "", "RESERVATION_TTL", defaultReservationTTL},
		{&cfg.ExpirySweep, "", "EXPIRY_SWEEP_INTERVAL", defaultExpirySweep},
		{&cfg.AccessTokenTTL, "", "ACCESS_TOKEN_TTL", defaultAccessTTL},
		{&cfg.RefreshTokenTTL, "", "REFRESH_TOKEN_TTL", defaultRefreshTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.secondsKey, d.dKey, d.fallback); err != nil {
			return Config{}, err
		}
	}

	if cfg.InterestRate, err = getDecimal("INTEREST_RATE", defaultInterestRate); err != nil {
		return Config{}, err
	}
	if cfg.DefaultCreditLimit, err = getDecimal("DEFAULT_CREDIT_LIMIT", defaultCreditLimit); err != nil {
		return Config{}, err
	}
	if cfg.ActivationFee, err = getDecimal("ACTIVATION_FEE", decimal.Zero); err != nil {
		return Config{}, err
	}
	if cfg.InterestRate.IsNegative() || cfg.DefaultCreditLimit.IsNegative() || cfg.ActivationFee.IsNegative() {
		return Config{}, fmt.Errorf("INTEREST_RATE, DEFAULT_CREDIT_LIMIT and ACTIVATION_FEE must not be negative")
	}

	tz := getEnv("REPORT_TIMEZONE", defaultReportTimezone)
	if cfg.ReportLocation, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsDev() {
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
		if c.RefreshSecret == "" {
			c.RefreshSecret = devRefreshSecret
		}
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.RefreshSecret == "" {
		c.RefreshSecret = c.JWTSecret + ":refresh"
	}
	return nil
}

// IsDev reports whether the service runs in a local development mode, where
// PostgreSQL and Redis are optional.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
