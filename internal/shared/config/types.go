package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Mode         string        `mapstructure:"mode"`
	Timezone     string        `mapstructure:"timezone"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver            string `mapstructure:"driver" validate:"oneof=mysql sqlite"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	DSN               string `mapstructure:"dsn"`
	MaxIdleConns      int    `mapstructure:"max_idle_conns"`
	MaxOpenConns      int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime   int    `mapstructure:"conn_max_lifetime"`
	MigrationStrategy string `mapstructure:"migration_strategy" validate:"oneof=goose golang_migrate auto"`
}

// GetDSN returns the explicit DSN when set, otherwise builds a MySQL DSN.
// Times are always parsed as UTC; business timezone is applied by biztime.
// multiStatements lets golang-migrate apply a script file in one Exec.
func (d *DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true&loc=UTC&multiStatements=true",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// BillingConfig configures the billing provider integration.
type BillingConfig struct {
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
	WebhookTimeout   time.Duration `mapstructure:"webhook_timeout"`
	APIKey           string        `mapstructure:"api_key"`
	ProviderTimeout  time.Duration `mapstructure:"provider_timeout"`
}

// QueueSettings are the retry and retention knobs of one job queue.
type QueueSettings struct {
	MaxAttempts        int           `mapstructure:"max_attempts" validate:"min=1"`
	BackoffBase        time.Duration `mapstructure:"backoff_base"`
	BackoffCap         time.Duration `mapstructure:"backoff_cap"`
	RetentionOnSuccess time.Duration `mapstructure:"retention_on_success"`
	RetentionOnFailure time.Duration `mapstructure:"retention_on_failure"`
	Concurrency        int           `mapstructure:"concurrency" validate:"min=1"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
}

type QueueConfig struct {
	Maintenance  QueueSettings `mapstructure:"maintenance"`
	Email        QueueSettings `mapstructure:"email"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LockDuration time.Duration `mapstructure:"lock_duration"`
}

type CronConfig struct {
	CheckExpiry      string `mapstructure:"check_expiry"`
	RenewalReminders string `mapstructure:"renewal_reminders"`
	TrialEnding      string `mapstructure:"trial_ending"`
	CleanupExpired   string `mapstructure:"cleanup_expired"`
}

// JobsConfig configures the recurring maintenance jobs.
type JobsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RenewalWindow   time.Duration `mapstructure:"renewal_window"`
	TrialWindow     time.Duration `mapstructure:"trial_window"`
	CleanupAfter    time.Duration `mapstructure:"cleanup_after"`
	LedgerRetention time.Duration `mapstructure:"ledger_retention"`
	BatchSize       int           `mapstructure:"batch_size" validate:"min=1"`
	Cron            CronConfig    `mapstructure:"cron"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type PostmarkConfig struct {
	ServerToken  string `mapstructure:"server_token"`
	AccountToken string `mapstructure:"account_token"`
}

type EmailConfig struct {
	Provider    string         `mapstructure:"provider" validate:"oneof=smtp postmark log"`
	FromAddress string         `mapstructure:"from_address" validate:"required,email"`
	FromName    string         `mapstructure:"from_name"`
	BaseURL     string         `mapstructure:"base_url"`
	SMTP        SMTPConfig     `mapstructure:"smtp"`
	Postmark    PostmarkConfig `mapstructure:"postmark"`
}

type PlansConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}
