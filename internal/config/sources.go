package config

import "time"

// SourceConfig holds configuration for the external data sources
type SourceConfig struct {
	BrandPlatform   BrandPlatformConfig   `toml:"brand_platform"`
	GA4             GA4Config             `toml:"ga4"`
	AgencyAnalytics AgencyAnalyticsConfig `toml:"agency_analytics"`
	RequestTimeout  time.Duration         `toml:"request_timeout"`
	RateLimit       RateLimitConfig       `toml:"rate_limit"`
	Breaker         BreakerConfig         `toml:"breaker"`
}

// BrandPlatformConfig configures the brand prompt-response platform client
type BrandPlatformConfig struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	PageSize int    `toml:"page_size"`
}

// GA4Config configures the Google Analytics Data API client. Credentials are a
// service account key, inline or on disk.
type GA4Config struct {
	CredentialsJSON string `toml:"credentials_json"`
	CredentialsFile string `toml:"credentials_file"`
	Endpoint        string `toml:"endpoint"`
	PageSize        int    `toml:"page_size"`
}

// Configured reports whether GA4 credentials were supplied
func (c GA4Config) Configured() bool {
	return c.CredentialsJSON != "" || c.CredentialsFile != ""
}

// AgencyAnalyticsConfig configures the Agency Analytics client
type AgencyAnalyticsConfig struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	PageSize int    `toml:"page_size"`
}

// RateLimitConfig holds rate limit and retry configuration
type RateLimitConfig struct {
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	MaxRetries        int           `toml:"max_retries"`
	InitialBackoff    time.Duration `toml:"initial_backoff"`
	MaxBackoff        time.Duration `toml:"max_backoff"`
	RetryMultiplier   float64       `toml:"retry_multiplier"`
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	MaxRequests         uint32        `toml:"max_requests"`
	Interval            time.Duration `toml:"interval"`
	Timeout             time.Duration `toml:"timeout"`
	ConsecutiveFailures uint32        `toml:"consecutive_failures"`
}

// DefaultSourceConfig returns the default source configuration
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		BrandPlatform: BrandPlatformConfig{
			BaseURL:  "https://api.brandplatform.io/v1",
			PageSize: 100,
		},
		GA4: GA4Config{
			PageSize: 1000,
		},
		AgencyAnalytics: AgencyAnalyticsConfig{
			BaseURL:  "https://apirequest.app/query",
			PageSize: 100,
		},
		RequestTimeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        3,
			InitialBackoff:    time.Second,
			MaxBackoff:        time.Minute,
			RetryMultiplier:   2.0,
		},
		Breaker: BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
}
