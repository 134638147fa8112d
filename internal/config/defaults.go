package config

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://api.deepseek.com/v1",
			APIKeyEnv:      "DEEPSEEK_API_KEY",
			TimeoutSeconds: 90, // Long completions need generous read time
			MaxRetries:     3,
			ConnectRetries: 3,
			ReadRetries:    3,
			StatusRetries:  3,
			BackoffFactor:  2,
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			BaseDelaySeconds: 5,
		},
		Redis: RedisConfig{
			DB:        0,
			KeyPrefix: "deepgen:",
		},
		Limits: LimitsConfig{
			RequestsPerMinute: 10,
			RequestsPerHour:   100,
			TokensPerPeriod:   200000,
			PeriodHours:       24,
		},
		Pipeline: PipelineConfig{
			OutputDir:    ".",
			PauseSeconds: 5,
			Search: SearchParams{
				Location:     "Hipódromo Condesa, CDMX",
				PropertyType: "Consultorio médico",
				Sources:      []string{"Inmuebles24", "Properati", "Vivanuncios"},
				Terms:        []string{"consultorio renta", "espacio médico", "subarriendo clínica"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
