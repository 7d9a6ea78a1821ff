package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the client side of the engine. Values come from an
// optional YAML file and are then overridden by the environment.
type Config struct {
	APIBaseURL    string        `yaml:"api_base_url"`    // SESSION_API_BASE_URL (default: http://localhost:8080)
	DatabaseFile  string        `yaml:"database_file"`   // SESSION_DATABASE_FILE, empty disables persistence (default: sessiongate.db)
	MasterKey     string        `yaml:"master_key"`      // SESSION_MASTER_KEY, seals tokens at rest
	MasterKeyFile string        `yaml:"master_key_file"` // SESSION_MASTER_KEY_FILE, created on first use when MasterKey is empty
	RefreshCookie string        `yaml:"refresh_cookie"`  // SESSION_REFRESH_COOKIE (default: refreshToken)
	StorageKey    string        `yaml:"storage_key"`     // SESSION_STORAGE_KEY (default: auth-storage)
	RefreshLeeway time.Duration `yaml:"refresh_leeway"`  // SESSION_REFRESH_LEEWAY, renew this long before expiry (default: 0)
	HTTPTimeout   time.Duration `yaml:"http_timeout"`    // SESSION_HTTP_TIMEOUT (default: 10s)
	ExactRoles    bool          `yaml:"exact_roles"`     // SESSION_EXACT_ROLES, match role names exactly instead of by substring
	Env           string        `yaml:"env"`             // ENV (dev, staging, prod) (default: dev)
	LogLevel      string        `yaml:"log_level"`       // LOG_LEVEL (default: info)
	LogFormat     string        `yaml:"log_format"`      // LOG_FORMAT (default: text)
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:    "http://localhost:8080",
		DatabaseFile:  "sessiongate.db",
		MasterKeyFile: "sessiongate.key",
		RefreshCookie: "refreshToken",
		StorageKey:    "auth-storage",
		HTTPTimeout:   10 * time.Second,
		Env:           "dev",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// LoadConfig reads path if given, applies environment overrides and
// validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIBaseURL = getEnvOrDefault("SESSION_API_BASE_URL", c.APIBaseURL)
	c.DatabaseFile = getEnvOrDefault("SESSION_DATABASE_FILE", c.DatabaseFile)
	c.MasterKey = getEnvOrDefault("SESSION_MASTER_KEY", c.MasterKey)
	c.MasterKeyFile = getEnvOrDefault("SESSION_MASTER_KEY_FILE", c.MasterKeyFile)
	c.RefreshCookie = getEnvOrDefault("SESSION_REFRESH_COOKIE", c.RefreshCookie)
	c.StorageKey = getEnvOrDefault("SESSION_STORAGE_KEY", c.StorageKey)
	c.RefreshLeeway = getEnvDurationOrDefault("SESSION_REFRESH_LEEWAY", c.RefreshLeeway)
	c.HTTPTimeout = getEnvDurationOrDefault("SESSION_HTTP_TIMEOUT", c.HTTPTimeout)
	c.ExactRoles = getEnvBoolOrDefault("SESSION_EXACT_ROLES", c.ExactRoles)
	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)

	// "none" switches persistence off from the environment.
	if strings.EqualFold(c.DatabaseFile, "none") {
		c.DatabaseFile = ""
	}
}

// minMasterKeyLength matches cryptox.MinSecretSize.
const minMasterKeyLength = 16

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []string

	u, err := url.Parse(c.APIBaseURL)
	switch {
	case c.APIBaseURL == "":
		errs = append(errs, "api_base_url is required")
	case err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "":
		errs = append(errs, "api_base_url must be an absolute http(s) URL")
	}

	if c.RefreshCookie == "" {
		errs = append(errs, "refresh_cookie is required")
	}
	if c.DatabaseFile != "" {
		if c.StorageKey == "" {
			errs = append(errs, "storage_key is required when persistence is enabled")
		}
		if c.MasterKey == "" && c.MasterKeyFile == "" {
			errs = append(errs, "master_key or master_key_file is required when persistence is enabled")
		}
		if c.MasterKey != "" && len(c.MasterKey) < minMasterKeyLength {
			errs = append(errs, fmt.Sprintf("master_key must be at least %d characters", minMasterKeyLength))
		}
	}
	if c.RefreshLeeway < 0 {
		errs = append(errs, "refresh_leeway must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "http_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
