package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/joho/godotenv"
)

type Config struct {
	Issuer    string // Optional: issuer claim for session JWTs (default: brokerx)
	PublicURL string // Optional: base URL the payment simulator posts webhooks to (default: http://localhost:PORT)

	DatabaseFile     string        // Optional: path to SQLite database file (default: ./brokerx.db)
	PepperFile       string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	NumKeys          int           // Optional: number of signing keys to generate (default: 1, max: 10)
	SessionTokenType string        // Optional: session token format (jwt, opaque) (default: jwt)
	SessionTTL       time.Duration // Optional: session lifetime, extended by renew (default: 2h)
	OTPTTL           time.Duration // Optional: contact code lifetime (default: 10m)
	MFATTL           time.Duration // Optional: MFA challenge lifetime (default: per method, 5m)
	DefaultCurrency  string        // Optional: currency of the first wallet (default: USD)

	WebhookSecret string        // Optional: HMAC key settlement callbacks must be signed with
	PaymentDelay  time.Duration // Optional: simulated processor settlement delay (default: 1s)
	KYCDelay      time.Duration // Optional: simulated KYC decision delay (default: 2s)
	AuditLogDir   string        // Optional: directory for rotated JSONL audit files (disabled when empty)
	AuditRetain   time.Duration // Optional: how long audit files are kept (default: 30 days)
	RedisURL      string        // Optional: redis://... for the shared revocation list (memory when empty)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	SessionRetention     time.Duration // How long dead sessions are kept before deletion (default: 7 days)
}

// LoadConfig reads the environment. A .env file in the working directory
// is loaded first; variables already set win over it.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Issuer:               getEnvOrDefault("BROKERX_ISSUER", "brokerx"),
		PublicURL:            os.Getenv("BROKERX_WEBHOOK_URL"),
		DatabaseFile:         getEnvOrDefault("BROKERX_DATABASE_FILE", "brokerx.db"),
		PepperFile:           getEnvOrDefault("BROKERX_PEPPER_FILE", "pepper"),
		NumKeys:              getEnvIntOrDefault("BROKERX_NUM_KEYS", 1),
		SessionTokenType:     strings.ToLower(getEnvOrDefault("BROKERX_SESSION_TOKEN_TYPE", "jwt")),
		SessionTTL:           getEnvDurationOrDefault("BROKERX_SESSION_TTL", domain.DefaultSessionTTL),
		OTPTTL:               getEnvDurationOrDefault("BROKERX_OTP_TTL", 10*time.Minute),
		MFATTL:               getEnvDurationOrDefault("BROKERX_MFA_TTL", 0),
		DefaultCurrency:      getEnvOrDefault("BROKERX_DEFAULT_CURRENCY", "USD"),
		WebhookSecret:        os.Getenv("BROKERX_WEBHOOK_SECRET"),
		PaymentDelay:         getEnvDurationOrDefault("BROKERX_PAYMENT_DELAY", time.Second),
		KYCDelay:             getEnvDurationOrDefault("BROKERX_KYC_DELAY", 2*time.Second),
		AuditLogDir:          os.Getenv("BROKERX_AUDIT_LOG_DIR"),
		AuditRetain:          getEnvDurationOrDefault("BROKERX_AUDIT_LOG_RETAIN", 30*24*time.Hour),
		RedisURL:             os.Getenv("REDIS_URL"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		SessionRetention:     getEnvDurationOrDefault("SESSION_RETENTION", 7*24*time.Hour),
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the application can't start with.
func (c Config) Validate() error {
	switch c.SessionTokenType {
	case "jwt", "opaque":
	default:
		return fmt.Errorf("BROKERX_SESSION_TOKEN_TYPE must be jwt or opaque, got %q", c.SessionTokenType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.IsProduction() && c.WebhookSecret == "" {
		return errors.New("BROKERX_WEBHOOK_SECRET is required in prod")
	}
	return nil
}

// IsProduction reports whether dev-only endpoints and code logging must
// stay off.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
