package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Auth      AuthConfig
	Cron      CronConfig
	Scheduler SchedulerConfig
	Jobs      JobsConfig
	Usage     UsageConfig
	Email     EmailConfig
	Storage   StorageConfig
	Log       LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// BaseURL is used when composing links in outbound email
	BaseURL string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings. Redis is optional: when
// Enabled is false the rate limiter and alert deduper run degraded.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StripeConfig holds payment processor settings
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Price id -> tier mapping overrides, keyed by tier id
	MonthlyPriceIDs map[string]string
	AnnualPriceIDs  map[string]string
}

// AuthConfig holds API key and session verification settings
type AuthConfig struct {
	SessionSecret string
	SessionIssuer string
}

// CronConfig protects the externally triggerable maintenance endpoints
type CronConfig struct {
	Secret string
}

// SchedulerConfig holds the in-process cron scheduler configuration
type SchedulerConfig struct {
	Enabled              bool
	ReconciliationSpec   string // monthly billing reconciliation
	UsageAlertsSpec      string // daily threshold alert sweep
	ReconciliationJitter time.Duration
}

// JobsConfig holds the durable workflow engine configuration
type JobsConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// UsageConfig holds the async usage tracker configuration
type UsageConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StorageConfig holds object storage settings for the file workflow
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SAAS_ prefix (e.g., SAAS_STRIPE_SECRET_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SAAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			BaseURL: v.GetString("app.base_url"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Stripe: StripeConfig{
			SecretKey:       v.GetString("stripe.secret_key"),
			WebhookSecret:   v.GetString("stripe.webhook_secret"),
			MonthlyPriceIDs: v.GetStringMapString("stripe.monthly_price_ids"),
			AnnualPriceIDs:  v.GetStringMapString("stripe.annual_price_ids"),
		},
		Auth: AuthConfig{
			SessionSecret: v.GetString("auth.session_secret"),
			SessionIssuer: v.GetString("auth.session_issuer"),
		},
		Cron: CronConfig{
			Secret: v.GetString("cron.secret"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              v.GetBool("scheduler.enabled"),
			ReconciliationSpec:   v.GetString("scheduler.reconciliation_spec"),
			UsageAlertsSpec:      v.GetString("scheduler.usage_alerts_spec"),
			ReconciliationJitter: v.GetDuration("scheduler.reconciliation_jitter"),
		},
		Jobs: JobsConfig{
			Enabled:      v.GetBool("jobs.enabled"),
			PollInterval: v.GetDuration("jobs.poll_interval"),
			BatchSize:    v.GetInt("jobs.batch_size"),
			MaxAttempts:  v.GetInt("jobs.max_attempts"),
		},
		Usage: UsageConfig{
			BufferSize:    v.GetInt("usage.buffer_size"),
			BatchSize:     v.GetInt("usage.batch_size"),
			FlushInterval: v.GetDuration("usage.flush_interval"),
		},
		Email: EmailConfig{
			Enabled:  v.GetBool("email.enabled"),
			Host:     v.GetString("email.host"),
			Port:     v.GetInt("email.port"),
			Username: v.GetString("email.username"),
			Password: v.GetString("email.password"),
			From:     v.GetString("email.from"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("storage.enabled"),
			Endpoint:  v.GetString("storage.endpoint"),
			Region:    v.GetString("storage.region"),
			Bucket:    v.GetString("storage.bucket"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "saasforge-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "saasforge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Scheduler.ReconciliationSpec == "" {
		// 03:00 UTC on the 1st of every month
		cfg.Scheduler.ReconciliationSpec = "0 3 1 * *"
	}
	if cfg.Scheduler.UsageAlertsSpec == "" {
		cfg.Scheduler.UsageAlertsSpec = "0 2 * * *"
	}
	if cfg.Jobs.PollInterval == 0 {
		cfg.Jobs.PollInterval = 2 * time.Second
	}
	if cfg.Jobs.BatchSize == 0 {
		cfg.Jobs.BatchSize = 20
	}
	if cfg.Jobs.MaxAttempts == 0 {
		cfg.Jobs.MaxAttempts = 3
	}
	if cfg.Usage.BufferSize == 0 {
		cfg.Usage.BufferSize = 4096
	}
	if cfg.Usage.BatchSize == 0 {
		cfg.Usage.BatchSize = 100
	}
	if cfg.Usage.FlushInterval == 0 {
		cfg.Usage.FlushInterval = 5 * time.Second
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}
	if cfg.Email.From == "" {
		cfg.Email.From = "billing@saasforge.dev"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// validate checks settings that would otherwise fail at first use
func (c *Config) validate() error {
	if c.App.Env == "production" {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("stripe.secret_key is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe.webhook_secret is required in production")
		}
		if c.Cron.Secret == "" {
			return fmt.Errorf("cron.secret is required in production")
		}
		if c.Auth.SessionSecret == "" {
			return fmt.Errorf("auth.session_secret is required in production")
		}
	}
	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("jobs.max_attempts must be at least 1")
	}
	return nil
}

// DSN returns the postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the host:port address for the Redis client
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true when running with the production profile
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
