package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the easyetl application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	HTTPAddr string `json:"http_addr"`

	TickInterval    time.Duration `json:"-"`
	TickIntervalStr string        `json:"tick_interval"`

	// MisfireGrace: fires later than this are dropped instead of replayed.
	MisfireGrace    time.Duration `json:"-"`
	MisfireGraceStr string        `json:"misfire_grace"`

	TransformTimeout    time.Duration `json:"-"`
	TransformTimeoutStr string        `json:"transform_timeout"`

	APIFetchTimeout    time.Duration `json:"-"`
	APIFetchTimeoutStr string        `json:"api_fetch_timeout"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// RegistryBackend: "jsonfile" (single JSON document) or "sqlite".
	RegistryBackend string `json:"registry_backend"`
	RegistryPath    string `json:"registry_path"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
	SMTPFrom     string `json:"smtp_from"`
	SMTPUseTLS   bool   `json:"smtp_use_tls"`

	NotifyRetryDelay    time.Duration `json:"-"`
	NotifyRetryDelayStr string        `json:"notify_retry_delay"`

	// Environment: "test" makes the notifier log instead of sending mail.
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsAddr    string `json:"metrics_addr"`
	MetricsPath    string `json:"metrics_path"`

	// RedisAddr: empty disables run analytics.
	RedisAddr              string        `json:"redis_addr,omitempty"`
	AnalyticsRetention     time.Duration `json:"-"`
	AnalyticsRetentionStr  string        `json:"analytics_retention"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// ShutdownWaitForRuns: block shutdown until in-flight runs finish.
	ShutdownWaitForRuns bool `json:"shutdown_wait_for_runs"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		TickIntervalStr:        os.Getenv("TICK_INTERVAL"),
		MisfireGraceStr:        os.Getenv("MISFIRE_GRACE"),
		TransformTimeoutStr:    os.Getenv("TRANSFORM_TIMEOUT"),
		APIFetchTimeoutStr:     os.Getenv("API_FETCH_TIMEOUT"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		RegistryBackend:        os.Getenv("REGISTRY_BACKEND"),
		RegistryPath:           os.Getenv("REGISTRY_PATH"),
		SMTPHost:               os.Getenv("SMTP_HOST"),
		SMTPUsername:           os.Getenv("SMTP_USERNAME"),
		SMTPPassword:           os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:               os.Getenv("SMTP_FROM"),
		SMTPUseTLS:             os.Getenv("SMTP_USE_TLS") != "false",
		NotifyRetryDelayStr:    os.Getenv("NOTIFY_RETRY_DELAY"),
		Environment:            os.Getenv("ENVIRONMENT"),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsAddr:            os.Getenv("METRICS_ADDR"),
		MetricsPath:            os.Getenv("METRICS_PATH"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		AnalyticsRetentionStr:  os.Getenv("ANALYTICS_RETENTION"),
		ShutdownWaitForRuns:    os.Getenv("SHUTDOWN_WAIT_FOR_RUNS") != "false",
	}

	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		if n, err := parseInt(portStr); err == nil && n > 0 {
			cfg.SMTPPort = n
		} else {
			log.Printf("config: invalid SMTP_PORT %q (must be a positive integer), using default 587", portStr)
		}
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")

	// Support platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.TickIntervalStr == "" {
		cfg.TickIntervalStr = "1s"
	}
	if cfg.MisfireGraceStr == "" {
		cfg.MisfireGraceStr = "5m"
	}
	if cfg.TransformTimeoutStr == "" {
		cfg.TransformTimeoutStr = "5m"
	}
	if cfg.APIFetchTimeoutStr == "" {
		cfg.APIFetchTimeoutStr = "30s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.RegistryBackend == "" {
		cfg.RegistryBackend = "jsonfile"
	}
	if cfg.RegistryPath == "" {
		if cfg.RegistryBackend == "sqlite" {
			cfg.RegistryPath = "jobs.db"
		} else {
			cfg.RegistryPath = "jobs.json"
		}
	}
	if cfg.NotifyRetryDelayStr == "" {
		cfg.NotifyRetryDelayStr = "5s"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "168h"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.TickIntervalStr); err == nil {
		cfg.TickInterval = d
	}
	if d, err := time.ParseDuration(cfg.MisfireGraceStr); err == nil {
		cfg.MisfireGrace = d
	}
	if d, err := time.ParseDuration(cfg.TransformTimeoutStr); err == nil {
		cfg.TransformTimeout = d
	}
	if d, err := time.ParseDuration(cfg.APIFetchTimeoutStr); err == nil {
		cfg.APIFetchTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.NotifyRetryDelayStr); err == nil {
		cfg.NotifyRetryDelay = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}

	return cfg
}

// DryRun reports whether deliveries should be logged instead of sent.
func (c Config) DryRun() bool {
	return c.Environment == "test"
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		HTTPAddr                string `json:"http_addr"`
		TickInterval            string `json:"tick_interval"`
		MisfireGrace            string `json:"misfire_grace"`
		TransformTimeout        string `json:"transform_timeout"`
		APIFetchTimeout         string `json:"api_fetch_timeout"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		RegistryBackend         string `json:"registry_backend"`
		RegistryPath            string `json:"registry_path"`
		SMTPHost                string `json:"smtp_host"`
		SMTPPort                int    `json:"smtp_port"`
		SMTPUsername            string `json:"smtp_username,omitempty"`
		SMTPPassword            string `json:"smtp_password,omitempty"`
		SMTPFrom                string `json:"smtp_from"`
		SMTPUseTLS              bool   `json:"smtp_use_tls"`
		NotifyRetryDelay        string `json:"notify_retry_delay"`
		Environment             string `json:"environment"`
		LogLevel                string `json:"log_level"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsAddr             string `json:"metrics_addr"`
		MetricsPath             string `json:"metrics_path"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		AnalyticsRetention      string `json:"analytics_retention"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		ShutdownWaitForRuns     bool   `json:"shutdown_wait_for_runs"`
	}{
		HTTPAddr:                c.HTTPAddr,
		TickInterval:            c.TickIntervalStr,
		MisfireGrace:            c.MisfireGraceStr,
		TransformTimeout:        c.TransformTimeoutStr,
		APIFetchTimeout:         c.APIFetchTimeoutStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		RegistryBackend:         c.RegistryBackend,
		RegistryPath:            c.RegistryPath,
		SMTPHost:                c.SMTPHost,
		SMTPPort:                c.SMTPPort,
		SMTPUsername:            c.SMTPUsername,
		SMTPPassword:            maskSecret(c.SMTPPassword),
		SMTPFrom:                c.SMTPFrom,
		SMTPUseTLS:              c.SMTPUseTLS,
		NotifyRetryDelay:        c.NotifyRetryDelayStr,
		Environment:             c.Environment,
		LogLevel:                c.LogLevel,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsAddr:             c.MetricsAddr,
		MetricsPath:             c.MetricsPath,
		RedisAddr:               c.RedisAddr,
		AnalyticsRetention:      c.AnalyticsRetentionStr,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		ShutdownWaitForRuns:     c.ShutdownWaitForRuns,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
