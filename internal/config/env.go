package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration. The
// operational knobs keep their historical names; everything else is
// namespaced under NW_.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "NW_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "NW_ADMIN_METRICS_API_KEY")

	// Logging config
	setIfEnv(&c.Logging.Level, "NW_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "NW_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "NW_ENVIRONMENT")

	// Storage config
	setIfEnv(&c.Storage.Backend, "NW_STORAGE_BACKEND")
	setIfEnv(&c.Storage.MongoDBURL, "NW_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "NW_MONGODB_DATABASE")

	// Financial knobs (historical names, no prefix)
	setInt64IfEnv(&c.Commission.RatePercent, "COMMISSION_RATE_PERCENT")
	setIfEnv(&c.Payouts.Timezone, "RIDER_PAYOUT_TIMEZONE")
	setIntIfEnv(&c.Enforcement.GracePeriodHours, "GRACE_PERIOD_HOURS")
	setIntIfEnv(&c.Enforcement.StrikeWindowHours, "STRIKE_WINDOW_HOURS")
	setIntIfEnv(&c.Enforcement.MaxStrikes, "MAX_STRIKES")
	if v := os.Getenv("ENFORCEMENT_TICK_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			c.Enforcement.TickInterval = Duration{Duration: time.Duration(minutes) * time.Minute}
		}
	}

	// Promo cache
	setDurationIfEnv(&c.Promos.CacheTTL, "NW_PROMO_CACHE_TTL")

	// Notifications
	setIfEnv(&c.Notifications.WebhookURL, "NW_NOTIFY_WEBHOOK_URL")
	setDurationIfEnv(&c.Notifications.Timeout, "NW_NOTIFY_TIMEOUT")

	// Uploads
	setIfEnv(&c.Uploads.Dir, "NW_UPLOADS_DIR")
	setInt64IfEnv(&c.Uploads.MaxSizeBytes, "NW_UPLOADS_MAX_SIZE_BYTES")
}

// setIfEnv assigns the environment value when it is non-empty.
func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setIntIfEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt64IfEnv(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDurationIfEnv(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = Duration{Duration: parsed}
		}
	}
}
