package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig   `mapstructure:"deployment" validate:"required"`
	Server       ServerConfig       `mapstructure:"server" validate:"required"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Logging      LoggingConfig      `mapstructure:"logging" validate:"required"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
	Notification NotificationConfig `mapstructure:"notification"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Billing      BillingConfig      `mapstructure:"billing"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// WebhookConfig configures the inbound payment gateway webhook receiver
type WebhookConfig struct {
	// SigningSecret is the shared secret for HMAC-SHA256 signature verification
	SigningSecret string `mapstructure:"signing_secret"`
}

// NotificationConfig configures the outbound notification dispatcher
type NotificationConfig struct {
	// Endpoint is the notification service URL; empty disables dispatch
	Endpoint string `mapstructure:"endpoint"`
	// Timeout bounds a single dispatch call
	Timeout time.Duration `mapstructure:"timeout"`
	// RetryMax is the number of retries for a failed dispatch
	RetryMax int `mapstructure:"retry_max"`
}

// SchedulerConfig configures the optional in-process sweep scheduler. The
// HTTP trigger endpoints remain the canonical entry points; this exists for
// deployments without an external time source.
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	RecurrenceCron string `mapstructure:"recurrence_cron"`
	DunningCron    string `mapstructure:"dunning_cron"`
}

// BillingConfig tunes sweep execution
type BillingConfig struct {
	// SweepWorkers bounds per-invoice parallelism inside a sweep
	SweepWorkers int `mapstructure:"sweep_workers"`
	// ItemTimeout bounds processing of a single invoice inside a sweep
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	// Load environment variables from .env file if present
	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ledgerline")

	v.SetEnvPrefix("LEDGERLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "ledgerline")
	v.SetDefault("postgres.dbname", "ledgerline")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("notification.retry_max", 3)
	v.SetDefault("scheduler.recurrence_cron", "0 1 * * *")
	v.SetDefault("scheduler.dunning_cron", "0 2 * * *")
	v.SetDefault("billing.sweep_workers", 4)
	v.SetDefault("billing.item_timeout", "30s")
}

func (c *Configuration) Validate() error {
	return validator.New().Struct(c)
}

// GetDSN returns the postgres connection string
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetDefaultConfig returns a configuration suitable for tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Billing: BillingConfig{
			SweepWorkers: 4,
			ItemTimeout:  30 * time.Second,
		},
		Notification: NotificationConfig{
			Timeout:  10 * time.Second,
			RetryMax: 3,
		},
	}
}
