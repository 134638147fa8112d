package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid. The API key itself is
// resolved at client construction, not here, so a config file never has to
// carry a secret.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.APIKeyEnv == "" && c.API.APIKey == "" {
		return fmt.Errorf("api.api_key_env is required")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative")
	}
	if c.API.ConnectRetries < 0 || c.API.ReadRetries < 0 || c.API.StatusRetries < 0 {
		return fmt.Errorf("per-class retry budgets must not be negative")
	}
	if c.API.BackoffFactor < 0 {
		return fmt.Errorf("api.backoff_factor must not be negative")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelaySeconds < 0 {
		return fmt.Errorf("retry.base_delay_seconds must not be negative")
	}

	if c.Redis.Enabled() {
		if c.Limits.RequestsPerMinute < 0 || c.Limits.RequestsPerHour < 0 {
			return fmt.Errorf("limits must not be negative")
		}
		if c.Limits.TokensPerPeriod > 0 && c.Limits.PeriodHours <= 0 {
			return fmt.Errorf("limits.period_hours must be positive when tokens_per_period is set")
		}
	}

	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir is required")
	}
	if c.Pipeline.PauseSeconds < 0 {
		return fmt.Errorf("pipeline.pause_seconds must not be negative")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}

	return nil
}
