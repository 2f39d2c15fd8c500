package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment     DeploymentConfig     `mapstructure:"deployment" validate:"required"`
	Server         ServerConfig         `mapstructure:"server" validate:"required"`
	Logging        LoggingConfig        `mapstructure:"logging" validate:"required"`
	Postgres       PostgresConfig       `mapstructure:"postgres"`
	Permit         PermitConfig         `mapstructure:"permit" validate:"required"`
	Provider       ProviderConfig       `mapstructure:"provider"`
	Registry       RegistryConfig       `mapstructure:"registry"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Sentry         SentryConfig         `mapstructure:"sentry"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Events         EventsConfig         `mapstructure:"events"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
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
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PermitConfig holds the business rules of the permit lifecycle
type PermitConfig struct {
	// Timezone is the civil calendar all date arithmetic happens in
	Timezone string `mapstructure:"timezone" validate:"required"`
	// PaymentTimeout is how long a permit may wait in PAYMENT_IN_PROGRESS
	PaymentTimeout time.Duration `mapstructure:"payment_timeout" validate:"required"`
	// MaxExtensionMonths caps a single extension request
	MaxExtensionMonths int `mapstructure:"max_extension_months" validate:"required,min=1"`
	// ExtensionWindowDays is how close to its end a permit must be to be extended
	ExtensionWindowDays int `mapstructure:"extension_window_days" validate:"required,min=1"`
	// MaxPermitsPerCustomer is the number of concurrently valid permits (primary and secondary)
	MaxPermitsPerCustomer int `mapstructure:"max_permits_per_customer" validate:"required,min=1"`
	// MaxFixedPeriodMonths caps the month count of a new fixed period permit
	MaxFixedPeriodMonths int `mapstructure:"max_fixed_period_months" validate:"required,min=1"`

	TemporaryVehicleLimit           int           `mapstructure:"temporary_vehicle_limit" validate:"required,min=1"`
	TemporaryVehicleLimitWindowDays int           `mapstructure:"temporary_vehicle_limit_window_days" validate:"required,min=1"`
	TemporaryVehicleMinDuration     time.Duration `mapstructure:"temporary_vehicle_min_duration" validate:"required"`

	LowEmission LowEmissionConfig `mapstructure:"low_emission"`
}

// LowEmissionConfig holds the thresholds a combustion vehicle has to meet for the discount
type LowEmissionConfig struct {
	NEDCMaxEmission int `mapstructure:"nedc_max_emission"`
	WLTPMaxEmission int `mapstructure:"wltp_max_emission"`
	EuroMinClass    int `mapstructure:"euro_min_class"`
}

// Location resolves the configured civil timezone
func (c PermitConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ProviderConfig configures the payment and subscription provider client
type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Namespace     string        `mapstructure:"namespace"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryWaitMin  time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax  time.Duration `mapstructure:"retry_wait_max"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
}

// RegistryConfig configures the vehicle registry client
type RegistryConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// SchedulerConfig holds cron specs of the periodic sweeps
type SchedulerConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	PaymentTimeoutSchedule string `mapstructure:"payment_timeout_schedule"`
	ExpirySchedule         string `mapstructure:"expiry_schedule"`
}

// EventsConfig configures the permit lifecycle event stream
type EventsConfig struct {
	Topic           string        `mapstructure:"topic"`
	Buffer          int64         `mapstructure:"buffer"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type ReconciliationConfig struct {
	// Workers bounds the number of permits reconciled in parallel
	Workers int `mapstructure:"workers"`
	// DedupTTL is how long a processed event id is remembered in memory
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/parkingpermits")

	v.SetEnvPrefix("PARKINGPERMITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Permit.Location(); err != nil {
		return fmt.Errorf("invalid permit timezone %q: %w", c.Permit.Timezone, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("permit.timezone", d.Permit.Timezone)
	v.SetDefault("permit.payment_timeout", d.Permit.PaymentTimeout)
	v.SetDefault("permit.max_extension_months", d.Permit.MaxExtensionMonths)
	v.SetDefault("permit.extension_window_days", d.Permit.ExtensionWindowDays)
	v.SetDefault("permit.max_permits_per_customer", d.Permit.MaxPermitsPerCustomer)
	v.SetDefault("permit.max_fixed_period_months", d.Permit.MaxFixedPeriodMonths)
	v.SetDefault("permit.temporary_vehicle_limit", d.Permit.TemporaryVehicleLimit)
	v.SetDefault("permit.temporary_vehicle_limit_window_days", d.Permit.TemporaryVehicleLimitWindowDays)
	v.SetDefault("permit.temporary_vehicle_min_duration", d.Permit.TemporaryVehicleMinDuration)
	v.SetDefault("permit.low_emission.nedc_max_emission", d.Permit.LowEmission.NEDCMaxEmission)
	v.SetDefault("permit.low_emission.wltp_max_emission", d.Permit.LowEmission.WLTPMaxEmission)
	v.SetDefault("permit.low_emission.euro_min_class", d.Permit.LowEmission.EuroMinClass)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.max_retries", d.Provider.MaxRetries)
	v.SetDefault("provider.retry_wait_min", d.Provider.RetryWaitMin)
	v.SetDefault("provider.retry_wait_max", d.Provider.RetryWaitMax)
	v.SetDefault("registry.timeout", d.Registry.Timeout)
	v.SetDefault("registry.requests_per_second", d.Registry.RequestsPerSecond)
	v.SetDefault("registry.burst", d.Registry.Burst)
	v.SetDefault("registry.cache_ttl", d.Registry.CacheTTL)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.payment_timeout_schedule", d.Scheduler.PaymentTimeoutSchedule)
	v.SetDefault("scheduler.expiry_schedule", d.Scheduler.ExpirySchedule)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.buffer", d.Events.Buffer)
	v.SetDefault("events.max_retries", d.Events.MaxRetries)
	v.SetDefault("events.initial_interval", d.Events.InitialInterval)
	v.SetDefault("events.max_interval", d.Events.MaxInterval)
	v.SetDefault("reconciliation.workers", d.Reconciliation.Workers)
	v.SetDefault("reconciliation.dedup_ttl", d.Reconciliation.DedupTTL)
}

// GetDefaultConfig returns the documented defaults, also used by scripts and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Permit: PermitConfig{
			Timezone:                        "Europe/Helsinki",
			PaymentTimeout:                  15 * time.Minute,
			MaxExtensionMonths:              12,
			ExtensionWindowDays:             14,
			MaxPermitsPerCustomer:           2,
			MaxFixedPeriodMonths:            12,
			TemporaryVehicleLimit:           2,
			TemporaryVehicleLimitWindowDays: 365,
			TemporaryVehicleMinDuration:     time.Hour,
			LowEmission: LowEmissionConfig{
				NEDCMaxEmission: 95,
				WLTPMaxEmission: 126,
				EuroMinClass:    6,
			},
		},
		Provider: ProviderConfig{
			Timeout:      10 * time.Second,
			MaxRetries:   3,
			RetryWaitMin: 200 * time.Millisecond,
			RetryWaitMax: 2 * time.Second,
		},
		Registry: RegistryConfig{
			Timeout:           5 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			CacheTTL:          10 * time.Minute,
		},
		Cache: CacheConfig{Enabled: true},
		Scheduler: SchedulerConfig{
			Enabled:                true,
			PaymentTimeoutSchedule: "@every 1m",
			ExpirySchedule:         "5 0 * * *",
		},
		Events: EventsConfig{
			Topic:           "permit-events",
			Buffer:          100,
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
		},
		Reconciliation: ReconciliationConfig{
			Workers:  8,
			DedupTTL: time.Hour,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
