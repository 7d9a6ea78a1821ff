package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
)

type Config struct {
	Issuer               string        // Issuer claim for access tokens (default: sessiongate-devauth)
	Port                 int           // HTTP server port (default: 8080)
	DatabaseFile         string        // Path to the SQLite database file (default: devauth.db)
	SeedFile             string        // Optional: YAML users, grants and departments; built-in demo data when empty
	SigningKeyFile       string        // Optional: PEM Ed25519 key, created when missing; ephemeral when empty
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Refresh credential lifetime (default: 7d)
	CookieName           string        // Refresh cookie name (default: refreshToken)
	CookieSecure         bool          // Mark the refresh cookie Secure (default: false)
	CookieHTTPOnly       bool          // Mark the refresh cookie HttpOnly (default: false)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("DEVAUTH_ISSUER", "sessiongate-devauth"),
		Port:                 getEnvIntOrDefault("DEVAUTH_PORT", 8080),
		DatabaseFile:         getEnvOrDefault("DEVAUTH_DATABASE_FILE", "devauth.db"),
		SeedFile:             os.Getenv("DEVAUTH_SEED_FILE"),
		SigningKeyFile:       os.Getenv("DEVAUTH_SIGNING_KEY_FILE"),
		AccessTTL:            getEnvDurationOrDefault("DEVAUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:           getEnvDurationOrDefault("DEVAUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		CookieName:           getEnvOrDefault("DEVAUTH_COOKIE_NAME", "refreshToken"),
		CookieSecure:         getEnvBoolOrDefault("DEVAUTH_COOKIE_SECURE", false),
		CookieHTTPOnly:       getEnvBoolOrDefault("DEVAUTH_COOKIE_HTTPONLY", false),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
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

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// withDefaults fills the zero durations of a hand-built Config.
func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "sessiongate-devauth"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	if c.ShutdownGracePeriod <= 0 {
		c.ShutdownGracePeriod = 10 * time.Second
	}
	return c
}
