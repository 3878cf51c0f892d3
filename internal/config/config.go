package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    Duration{Duration: 15 * time.Second},
			WriteTimeout:   Duration{Duration: 15 * time.Second},
			IdleTimeout:    Duration{Duration: 60 * time.Second},
			RequestTimeout: Duration{Duration: 30 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:      "memory",
			QueryTimeout: Duration{Duration: 5 * time.Second},
		},
		Commission: CommissionConfig{
			RatePercent: 10,
		},
		Payouts: PayoutsConfig{
			Timezone: "Africa/Lagos",
		},
		Enforcement: EnforcementConfig{
			GracePeriodHours:  24,
			StrikeWindowHours: 48,
			MaxStrikes:        3,
			TickInterval:      Duration{Duration: 15 * time.Minute},
			PageSize:          200,
			ShutdownGrace:     Duration{Duration: 10 * time.Second},
		},
		Promos: PromosConfig{
			CacheTTL: Duration{Duration: 1 * time.Minute},
		},
		Notifications: NotificationsConfig{
			Headers:     make(map[string]string),
			Timeout:     Duration{Duration: 3 * time.Second},
			MaxAttempts: 3,
			Breaker: BreakerConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
			},
		},
		Uploads: UploadsConfig{
			Dir:          "./data/proofs",
			MaxSizeBytes: 5 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   120,
			Window:  Duration{Duration: 1 * time.Minute},
		},
		AdminAuth: AdminAuthConfig{
			Keys: make(map[string]string),
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
