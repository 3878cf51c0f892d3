package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("config: server address required")
	}

	if c.Commission.RatePercent < 0 || c.Commission.RatePercent > 100 {
		return fmt.Errorf("config: commission rate_percent must be within [0,100], got %d", c.Commission.RatePercent)
	}

	if _, err := time.LoadLocation(c.Payouts.Timezone); err != nil {
		return fmt.Errorf("config: invalid payout timezone %q: %w", c.Payouts.Timezone, err)
	}

	if c.Enforcement.GracePeriodHours < 0 {
		return fmt.Errorf("config: grace_period_hours must not be negative")
	}
	if c.Enforcement.StrikeWindowHours <= 0 {
		return fmt.Errorf("config: strike_window_hours must be positive")
	}
	if c.Enforcement.MaxStrikes <= 0 {
		return fmt.Errorf("config: max_strikes must be positive")
	}
	if c.Enforcement.TickInterval.Duration <= 0 {
		return fmt.Errorf("config: enforcement tick_interval must be positive")
	}
	if c.Enforcement.PageSize <= 0 {
		return fmt.Errorf("config: enforcement page_size must be positive")
	}

	if c.Storage.Backend != "memory" && c.Storage.Backend != "mongodb" {
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "mongodb" {
		if c.Storage.MongoDBURL == "" {
			return fmt.Errorf("config: mongodb backend requires mongodb_url")
		}
		if c.Storage.MongoDBDatabase == "" {
			return fmt.Errorf("config: mongodb backend requires mongodb_database")
		}
	}

	if c.Uploads.MaxSizeBytes <= 0 {
		return fmt.Errorf("config: uploads max_size_bytes must be positive")
	}

	return nil
}

// PayoutLocation resolves the configured payout timezone. Validate
// guarantees this cannot fail after Load.
func (c *Config) PayoutLocation() *time.Location {
	loc, err := time.LoadLocation(c.Payouts.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
