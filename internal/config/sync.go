package config

import "time"

// SyncConfig holds sync job engine configuration
type SyncConfig struct {
	// CancelTimeout bounds how long a cancel request waits for the task to stop
	CancelTimeout time.Duration `toml:"cancel_timeout"`
	// ShutdownTimeout bounds how long shutdown waits for running jobs
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	// SingleFlight rejects a sync while an identical one is still running
	SingleFlight bool `toml:"single_flight"`
	// DefaultLookbackDays is the report window used when a GA4 sync names no dates
	DefaultLookbackDays int         `toml:"default_lookback_days"`
	BatchConfig         BatchConfig `toml:"batch"`
}

// BatchConfig holds batch upsert configuration
type BatchConfig struct {
	Size       int           `toml:"size"`
	MaxRetries int           `toml:"max_retries"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

// DefaultSyncConfig returns the default sync configuration
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		CancelTimeout:       10 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		SingleFlight:        true,
		DefaultLookbackDays: 30,
		BatchConfig: BatchConfig{
			Size:       500,
			MaxRetries: 3,
			RetryDelay: 200 * time.Millisecond,
		},
	}
}
