package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Task     TaskConfig     `yaml:"task"`
	Auth     AuthConfig     `yaml:"auth"`
	Cron     CronConfig     `yaml:"cron"`
	Payment  PaymentConfig  `yaml:"payment"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// NotifyConfig best-effort webhook notification configuration
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

// PostgresConfig Postgres configuration
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayConfig model gateway configuration
type GatewayConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"` // overridden by GATEWAY_API_KEY
	Model           string `yaml:"model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`  // per-attempt request timeout
	MaxRetries      int    `yaml:"max_retries"`      // dispatch attempts per task
	BackoffSeconds  int    `yaml:"backoff_seconds"`  // base backoff between attempts
	EscalationDelay int    `yaml:"escalation_delay"` // seconds before the parallel request fires
	PlaceholderHost string `yaml:"placeholder_host"` // host whose URLs never count as results
}

// Timeout returns the per-attempt request timeout.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// MaxAttempts returns the bounded dispatch attempt count.
func (g GatewayConfig) MaxAttempts() int {
	if g.MaxRetries <= 0 {
		return 3
	}
	return g.MaxRetries
}

// TaskConfig task pipeline configuration
type TaskConfig struct {
	StaleTimeoutMinutes int   `yaml:"stale_timeout_minutes"` // pending/processing older than this are reaped
	SweepBatchSize      int   `yaml:"sweep_batch_size"`      // max tasks handled per sweeper run
	DefaultCredits      int64 `yaml:"default_credits"`       // balance granted on first request
	MaxImageBytes       int   `yaml:"max_image_bytes"`       // input image size bound
	RetentionDays       int   `yaml:"retention_days"`        // terminal tasks older than this are purged, 0 disables
}

// StaleTimeout returns the stale-task timeout window.
func (t TaskConfig) StaleTimeout() time.Duration {
	if t.StaleTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(t.StaleTimeoutMinutes) * time.Minute
}

// AuthConfig authentication configuration
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`     // overridden by JWT_SECRET
	InternalToken string `yaml:"internal_token"` // overridden by INTERNAL_API_TOKEN
}

// CronConfig cron trigger configuration
type CronConfig struct {
	Key             string `yaml:"key"` // overridden by CRON_SECRET
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// PaymentConfig payment gateway configuration
type PaymentConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"` // overridden by PAYMENT_API_KEY
	NotifyURL string `yaml:"notify_url"`
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	applyEnvOverrides(&cfg)

	GlobalConfig = &cfg
	return nil
}

// applyEnvOverrides lets secrets come from the environment instead of the file
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("INTERNAL_API_TOKEN"); v != "" {
		cfg.Auth.InternalToken = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Cron.Key = v
	}
	if v := os.Getenv("PAYMENT_API_KEY"); v != "" {
		cfg.Payment.APIKey = v
	}
}
