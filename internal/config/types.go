package config

import "time"

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Retry    RetryConfig    `yaml:"retry"`
	Redis    RedisConfig    `yaml:"redis"`
	Limits   LimitsConfig   `yaml:"limits"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds DeepSeek endpoint and transport settings. MaxRetries caps
// retries overall; the per-class budgets bound how many of those retries may
// be spent on connection failures, read failures and retryable statuses
// respectively, so one failure class cannot consume a large total on its own.
type APIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"-"` // Explicit key, normally left to the environment
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	ConnectRetries int     `yaml:"connect_retries"`
	ReadRetries    int     `yaml:"read_retries"`
	StatusRetries  int     `yaml:"status_retries"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
}

// Timeout returns the request timeout as a Duration
func (a *APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// RetryConfig holds the application-tier retry loop settings, independent of
// the transport retries above
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	BaseDelaySeconds int `yaml:"base_delay_seconds"`
}

// BaseDelay returns the linear backoff base unit as a Duration
func (r *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds) * time.Second
}

// RedisConfig holds optional Redis connection settings for the cross-process
// rate limiter. An empty address disables it.
type RedisConfig struct {
	Address     string `yaml:"address"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// Enabled reports whether Redis-backed limiting is configured
func (r *RedisConfig) Enabled() bool {
	return r.Address != ""
}

// LimitsConfig holds request and token budget settings enforced through Redis
type LimitsConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
	TokensPerPeriod   int `yaml:"tokens_per_period"`
	PeriodHours       int `yaml:"period_hours"`
}

// PipelineConfig holds the code-generation pipeline settings
type PipelineConfig struct {
	OutputDir    string       `yaml:"output_dir"`
	PauseSeconds int          `yaml:"pause_seconds"`
	Search       SearchParams `yaml:"search"`
}

// Pause returns the delay between pipeline tasks as a Duration
func (p *PipelineConfig) Pause() time.Duration {
	return time.Duration(p.PauseSeconds) * time.Second
}

// SearchParams describe the property search the generated code targets. They
// are written alongside the generated files for the downstream scraper.
type SearchParams struct {
	Location     string   `yaml:"location" json:"ubicacion"`
	PropertyType string   `yaml:"property_type" json:"tipo_inmueble"`
	Sources      []string `yaml:"sources" json:"fuentes"`
	Terms        []string `yaml:"terms" json:"terminos"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
