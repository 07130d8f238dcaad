package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// ErrInvalidConfig is returned by Validate when the configuration cannot start the service.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GatewayConfig holds card gateway credentials and endpoints.
// There are no defaults for credentials or URLs.
type GatewayConfig struct {
	StoreID        string
	APIToken       string
	CheckoutID     string
	CheckoutURL    string
	PurchaseURL    string
	Environment    string
	Timeout        time.Duration
	VerifyReceipts bool
}

// CheckoutConfig holds checkout policy and session storage settings.
type CheckoutConfig struct {
	// AmountCeiling is the sandbox upper bound; nil means no ceiling.
	AmountCeiling *decimal.Decimal
	SessionStore  string
	SessionTTL    time.Duration
	LockBackend   string
	LockTTL       time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	ceiling, err := getDecimalEnv("CHECKOUT_AMOUNT_CEILING")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Gateway: GatewayConfig{
			StoreID:        os.Getenv("GATEWAY_STORE_ID"),
			APIToken:       os.Getenv("GATEWAY_API_TOKEN"),
			CheckoutID:     os.Getenv("GATEWAY_CHECKOUT_ID"),
			CheckoutURL:    os.Getenv("GATEWAY_CHECKOUT_URL"),
			PurchaseURL:    os.Getenv("GATEWAY_PURCHASE_URL"),
			Environment:    getEnv("GATEWAY_ENVIRONMENT", "qa"),
			Timeout:        getDurationEnv("GATEWAY_TIMEOUT", 10*time.Second),
			VerifyReceipts: getBoolEnv("GATEWAY_VERIFY_RECEIPTS", false),
		},
		Checkout: CheckoutConfig{
			AmountCeiling: ceiling,
			SessionStore:  getEnv("SESSION_STORE", StoreMemory),
			SessionTTL:    getDurationEnv("SESSION_TTL", 24*time.Hour),
			LockBackend:   getEnv("LOCK_BACKEND", LockLocal),
			LockTTL:       getDurationEnv("LOCK_TTL", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "donations"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "donation-checkout"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting in one error.
func (c *Config) Validate() error {
	var problems []string

	required := []struct {
		key   string
		value string
	}{
		{"GATEWAY_STORE_ID", c.Gateway.StoreID},
		{"GATEWAY_API_TOKEN", c.Gateway.APIToken},
		{"GATEWAY_CHECKOUT_ID", c.Gateway.CheckoutID},
		{"GATEWAY_CHECKOUT_URL", c.Gateway.CheckoutURL},
		{"GATEWAY_PURCHASE_URL", c.Gateway.PurchaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.key+" is required")
		}
	}

	switch c.Gateway.Environment {
	case "qa", "prod":
	default:
		problems = append(problems, fmt.Sprintf("GATEWAY_ENVIRONMENT %q must be qa or prod", c.Gateway.Environment))
	}

	if c.Gateway.Timeout <= 0 {
		problems = append(problems, "GATEWAY_TIMEOUT must be positive")
	}

	if c.Checkout.AmountCeiling != nil && !c.Checkout.AmountCeiling.IsPositive() {
		problems = append(problems, "CHECKOUT_AMOUNT_CEILING must be positive")
	}

	switch c.Checkout.SessionStore {
	case StoreMemory, StorePostgres:
	case StoreRedis:
		if !c.Redis.Enabled {
			problems = append(problems, "SESSION_STORE=redis requires REDIS_ENABLED=true")
		}
	default:
		problems = append(problems, fmt.Sprintf("SESSION_STORE %q is not supported", c.Checkout.SessionStore))
	}

	switch c.Checkout.LockBackend {
	case LockLocal:
	case LockRedis:
		if !c.Redis.Enabled {
			problems = append(problems, "LOCK_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		problems = append(problems, fmt.Sprintf("LOCK_BACKEND %q is not supported", c.Checkout.LockBackend))
	}

	if c.Checkout.SessionStore == StoreRedis && c.Checkout.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getDecimalEnv returns nil when key is unset. A set but unparsable value is an error,
// since silently dropping a ceiling would lift a sandbox limit.
func getDecimalEnv(key string) (*decimal.Decimal, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return &d, nil
}
