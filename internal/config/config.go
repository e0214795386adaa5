package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort  string
	Environment string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	SessionSecret   string
	SessionDuration time.Duration
	SessionStore    string
	RedisURL        string

	LoginAttemptLimit  int
	LoginAttemptWindow time.Duration
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	TrustProxy         bool

	AllowAdminRegistration bool
	StaticFilesPath        string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppURL       string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath: getEnv("DATABASE_PATH", "./admindash.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionDuration: getEnvDuration("SESSION_DURATION", 24*time.Hour),
		SessionStore:    strings.ToLower(getEnv("SESSION_STORE", "database")),
		RedisURL:        getEnv("REDIS_URL", ""),

		LoginAttemptLimit:  getEnvInt("LOGIN_ATTEMPT_LIMIT", 0),
		LoginAttemptWindow: getEnvDuration("LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
		RateLimitRequests:  getEnvInt("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),

		AllowAdminRegistration: getEnvBool("ALLOW_ADMIN_REGISTRATION", false),
		StaticFilesPath:        getEnv("STATIC_DIR", ""),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Admin Dashboard"),
		AppURL:       strings.TrimSuffix(getEnv("APP_URL", "http://localhost:8080"), "/"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
	}
}

// IsProduction reports whether the service runs in the production environment.
// Session cookies are marked Secure only in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks combinations that Load cannot reject on its own
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for database type %q", c.DatabaseType))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database type: %s", c.DatabaseType))
	}

	switch c.SessionStore {
	case "memory", "database":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when SESSION_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported session store: %s", c.SessionStore))
	}

	if c.IsProduction() && len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters in production"))
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, errors.New("SESSION_DURATION must be positive"))
	}

	return errors.Join(errs...)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go duration strings ("30m", "24h")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
