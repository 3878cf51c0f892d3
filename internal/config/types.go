package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Storage       StorageConfig       `yaml:"storage"`
	Commission    CommissionConfig    `yaml:"commission"`
	Payouts       PayoutsConfig       `yaml:"payouts"`
	Enforcement   EnforcementConfig   `yaml:"enforcement"`
	Promos        PromosConfig        `yaml:"promos"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Uploads       UploadsConfig       `yaml:"uploads"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	AdminAuth     AdminAuthConfig     `yaml:"admin_auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	RequestTimeout     Duration `yaml:"request_timeout"` // per-request deadline for business endpoints
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	AdminMetricsAPIKey string   `yaml:"admin_metrics_api_key"` // optional API key protecting /metrics
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	Backend         string   `yaml:"backend"`          // "memory" or "mongodb"
	MongoDBURL      string   `yaml:"mongodb_url"`      // MongoDB connection string
	MongoDBDatabase string   `yaml:"mongodb_database"` // MongoDB database name
	QueryTimeout    Duration `yaml:"query_timeout"`    // per-query deadline (default: 5s)
}

// CommissionConfig controls the order financial split.
type CommissionConfig struct {
	RatePercent int64 `yaml:"rate_percent"` // platform commission, whole percent (default: 10)
}

// PayoutsConfig controls weekly payout aggregation.
type PayoutsConfig struct {
	Timezone string `yaml:"timezone"` // IANA zone defining Sunday-to-Sunday weeks (default: Africa/Lagos)
}

// EnforcementConfig controls the payment-window enforcement sweep.
type EnforcementConfig struct {
	GracePeriodHours  int      `yaml:"grace_period_hours"`  // hours after payment due before block (default: 24)
	StrikeWindowHours int      `yaml:"strike_window_hours"` // hours continuously blocked before a strike (default: 48)
	MaxStrikes        int      `yaml:"max_strikes"`         // strikes before deactivation (default: 3)
	TickInterval      Duration `yaml:"tick_interval"`       // sweep cadence (default: 15m)
	PageSize          int      `yaml:"page_size"`           // max payouts processed per tick (default: 200)
	ShutdownGrace     Duration `yaml:"shutdown_grace"`      // loop drain deadline on shutdown (default: 10s)
}

// PromosConfig controls the promo configuration cache.
type PromosConfig struct {
	CacheTTL Duration `yaml:"cache_ttl"` // read cache TTL; writes invalidate immediately (default: 1m)
}

// NotificationsConfig holds outbound notification webhook configuration.
// Deliveries are best-effort and never fail the enclosing operation.
type NotificationsConfig struct {
	WebhookURL  string            `yaml:"webhook_url"`
	Headers     map[string]string `yaml:"headers"`
	Timeout     Duration          `yaml:"timeout"`      // per-request timeout (default: 3s)
	MaxAttempts int               `yaml:"max_attempts"` // send attempts before giving up (default: 3)
	Breaker     BreakerConfig     `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker guarding notification delivery.
type BreakerConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // max requests in half-open state (default: 3)
	Interval            Duration `yaml:"interval"`             // stats reset interval in closed state (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // open state timeout before half-open (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // consecutive failures to trip (default: 5)
}

// UploadsConfig controls payment-proof image uploads.
type UploadsConfig struct {
	Dir          string `yaml:"dir"`            // directory for stored proofs (default: ./data/proofs)
	MaxSizeBytes int64  `yaml:"max_size_bytes"` // upload cap (default: 5 MiB)
}

// RateLimitConfig holds per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled bool     `yaml:"enabled"`
	Limit   int      `yaml:"limit"`  // requests allowed per window per IP
	Window  Duration `yaml:"window"` // time window
}

// AdminAuthConfig maps admin API keys onto actor identifiers.
type AdminAuthConfig struct {
	Keys map[string]string `yaml:"keys"` // API key -> admin user id
}
