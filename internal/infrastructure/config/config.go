package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	sharedConfig "github.com/orris-inc/subflow/internal/shared/config"
)

type Config struct {
	Server   sharedConfig.ServerConfig   `mapstructure:"server"`
	Database sharedConfig.DatabaseConfig `mapstructure:"database"`
	Logger   sharedConfig.LoggerConfig   `mapstructure:"logger"`
	Redis    sharedConfig.RedisConfig    `mapstructure:"redis"`
	Billing  sharedConfig.BillingConfig  `mapstructure:"billing"`
	Queue    sharedConfig.QueueConfig    `mapstructure:"queue"`
	Jobs     sharedConfig.JobsConfig     `mapstructure:"jobs"`
	Email    sharedConfig.EmailConfig    `mapstructure:"email"`
	Plans    sharedConfig.PlansConfig    `mapstructure:"plans"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads configs/config.yaml, merges configs/config.<env>.yaml when present
// and applies SUBFLOW_* environment overrides.
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("SUBFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && configPath == "" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to merge %s config: %w", env, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Validate checks struct tags on every section.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	// Database defaults
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "subflow_dev")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.migration_strategy", "goose")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Billing defaults, secrets are registered so env overrides reach Unmarshal
	v.SetDefault("billing.webhook_secret", "")
	v.SetDefault("billing.api_key", "")
	v.SetDefault("billing.webhook_tolerance", "5m")
	v.SetDefault("billing.webhook_timeout", "10s")
	v.SetDefault("billing.provider_timeout", "5s")

	// Queue defaults
	v.SetDefault("queue.poll_interval", "5s")
	v.SetDefault("queue.lock_duration", "5m")
	v.SetDefault("queue.maintenance.max_attempts", 3)
	v.SetDefault("queue.maintenance.backoff_base", "30s")
	v.SetDefault("queue.maintenance.backoff_cap", "30m")
	v.SetDefault("queue.maintenance.retention_on_success", "24h")
	v.SetDefault("queue.maintenance.retention_on_failure", "168h")
	v.SetDefault("queue.maintenance.concurrency", 2)
	v.SetDefault("queue.maintenance.job_timeout", "10m")
	v.SetDefault("queue.email.max_attempts", 5)
	v.SetDefault("queue.email.backoff_base", "10s")
	v.SetDefault("queue.email.backoff_cap", "1h")
	v.SetDefault("queue.email.retention_on_success", "24h")
	v.SetDefault("queue.email.retention_on_failure", "168h")
	v.SetDefault("queue.email.concurrency", 4)
	v.SetDefault("queue.email.job_timeout", "30s")

	// Recurring job defaults
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.renewal_window", "72h")
	v.SetDefault("jobs.trial_window", "48h")
	v.SetDefault("jobs.cleanup_after", "2160h")
	v.SetDefault("jobs.ledger_retention", "2160h")
	v.SetDefault("jobs.batch_size", 100)
	v.SetDefault("jobs.cron.check_expiry", "0 * * * *")
	v.SetDefault("jobs.cron.renewal_reminders", "0 9 * * *")
	v.SetDefault("jobs.cron.trial_ending", "0 10 * * *")
	v.SetDefault("jobs.cron.cleanup_expired", "0 3 * * 0")

	// Email defaults
	v.SetDefault("email.provider", "log")
	v.SetDefault("email.from_address", "noreply@subflow.local")
	v.SetDefault("email.from_name", "Subflow")
	v.SetDefault("email.base_url", "http://localhost:3000")
	v.SetDefault("email.smtp.host", "localhost")
	v.SetDefault("email.smtp.port", 1025)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.postmark.server_token", "")
	v.SetDefault("email.postmark.account_token", "")

	// Plan catalog defaults
	v.SetDefault("plans.cache_size", 256)
	v.SetDefault("plans.cache_ttl", "10m")
}
