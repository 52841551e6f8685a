package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config is the process configuration. Values come from an optional TOML file
// named by CONFIG_FILE, then from environment variables, which take precedence.
type Config struct {
	Port               string       `toml:"port"`
	LogLevel           string       `toml:"log_level"`
	StoreDriver        string       `toml:"store_driver"`
	DBConnectionString string       `toml:"db_connection_string"`
	JWTSecret          string       `toml:"jwt_secret"`
	Sync               SyncConfig   `toml:"sync"`
	Sources            SourceConfig `toml:"sources"`
}

// DefaultConfig returns a Config with defaults for every field
func DefaultConfig() *Config {
	return &Config{
		Port:        "8080",
		LogLevel:    "info",
		StoreDriver: StoreDriverPostgres,
		Sync:        *DefaultSyncConfig(),
		Sources:     *DefaultSourceConfig(),
	}
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.DBConnectionString = getEnv("DB_CONNECTION_STRING", c.DBConnectionString)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	var err error
	s := &c.Sync
	if s.SingleFlight, err = getEnvBool("SYNC_SINGLE_FLIGHT", s.SingleFlight); err != nil {
		return err
	}
	if s.CancelTimeout, err = getEnvDuration("SYNC_CANCEL_TIMEOUT", s.CancelTimeout); err != nil {
		return err
	}
	if s.ShutdownTimeout, err = getEnvDuration("SYNC_SHUTDOWN_TIMEOUT", s.ShutdownTimeout); err != nil {
		return err
	}
	if s.DefaultLookbackDays, err = getEnvInt("SYNC_DEFAULT_LOOKBACK_DAYS", s.DefaultLookbackDays); err != nil {
		return err
	}
	if s.BatchConfig.Size, err = getEnvInt("SYNC_BATCH_SIZE", s.BatchConfig.Size); err != nil {
		return err
	}

	src := &c.Sources
	src.BrandPlatform.BaseURL = getEnv("BRAND_PLATFORM_BASE_URL", src.BrandPlatform.BaseURL)
	src.BrandPlatform.APIKey = getEnv("BRAND_PLATFORM_API_KEY", src.BrandPlatform.APIKey)
	src.GA4.CredentialsFile = getEnv("GA4_CREDENTIALS_FILE", src.GA4.CredentialsFile)
	src.GA4.CredentialsJSON = getEnv("GA4_CREDENTIALS_JSON", src.GA4.CredentialsJSON)
	src.GA4.Endpoint = getEnv("GA4_ENDPOINT", src.GA4.Endpoint)
	src.AgencyAnalytics.BaseURL = getEnv("AGENCY_ANALYTICS_BASE_URL", src.AgencyAnalytics.BaseURL)
	src.AgencyAnalytics.APIKey = getEnv("AGENCY_ANALYTICS_API_KEY", src.AgencyAnalytics.APIKey)
	if src.RequestTimeout, err = getEnvDuration("SOURCE_REQUEST_TIMEOUT", src.RequestTimeout); err != nil {
		return err
	}
	if src.RateLimit.RequestsPerSecond, err = getEnvFloat("SOURCE_REQUESTS_PER_SECOND", src.RateLimit.RequestsPerSecond); err != nil {
		return err
	}
	return nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBConnectionString == "" {
			return fmt.Errorf("DB_CONNECTION_STRING must be set when STORE_DRIVER is %s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Sync.CancelTimeout <= 0 {
		return fmt.Errorf("sync cancel timeout must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
