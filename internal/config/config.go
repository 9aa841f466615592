package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"stock-target-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs check cadence and the operating calendar.
type SchedulerConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	ActiveHours     HourRange     `mapstructure:"active_hours"`
	ActiveDays      []string      `mapstructure:"active_days"`
	Timezone        string        `mapstructure:"timezone"`
}

// HourRange is a half-open [Start, End) daily hour window. Start == End means
// no hour restriction.
type HourRange struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// PricingConfig covers market-data access.
type PricingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Concurrency    int           `mapstructure:"concurrency"`
	RatePerSec     float64       `mapstructure:"rate_per_sec"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// AlertingConfig defines channel routing and retry policy.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	RetryCount   int            `mapstructure:"retry_count"`
	RetryBackoff time.Duration  `mapstructure:"retry_backoff"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Email        EmailConfig    `mapstructure:"email"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// EmailConfig describes the SMTP channel. Credentials are opaque here.
type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	From      string `mapstructure:"from"`
	Recipient string `mapstructure:"recipient"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "stockwatcher.log")

	v.SetDefault("scheduler.check_interval", "1h")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x53544b57))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.active_hours.start", 9)
	v.SetDefault("scheduler.active_hours.end", 18)
	v.SetDefault("scheduler.active_days", []string{"Mon", "Tue", "Wed", "Thu", "Fri"})
	v.SetDefault("scheduler.timezone", "America/New_York")

	v.SetDefault("pricing.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.user_agent", "stockwatcher/1.0")
	v.SetDefault("pricing.concurrency", 4)
	v.SetDefault("pricing.rate_per_sec", 5.0)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.retry_count", 3)
	v.SetDefault("alerting.retry_backoff", "2s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("alerting.email.smtp_port", 587)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be greater than zero")
	}
	if c.Scheduler.ActiveHours.Start < 0 || c.Scheduler.ActiveHours.Start > 23 {
		return fmt.Errorf("scheduler.active_hours.start must be within 0-23")
	}
	if c.Scheduler.ActiveHours.End < 0 || c.Scheduler.ActiveHours.End > 24 {
		return fmt.Errorf("scheduler.active_hours.end must be within 0-24")
	}
	if _, err := c.ActiveWeekdays(); err != nil {
		return err
	}
	if _, err := c.SchedulerLocation(); err != nil {
		return err
	}
	if c.Pricing.Concurrency <= 0 {
		return fmt.Errorf("pricing.concurrency must be greater than zero")
	}
	if c.Alerting.RetryCount < 0 {
		return fmt.Errorf("alerting.retry_count cannot be negative")
	}
	if c.Alerting.RetryBackoff < 0 {
		return fmt.Errorf("alerting.retry_backoff cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.SMTPHost == "" {
			return fmt.Errorf("alerting.email.smtp_host is required when email is enabled")
		}
		if c.Alerting.Email.From == "" || c.Alerting.Email.Recipient == "" {
			return fmt.Errorf("alerting.email.from and alerting.email.recipient are required when email is enabled")
		}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ActiveWeekdays parses scheduler.active_days into a weekday set. An empty
// list means every day.
func (c *Config) ActiveWeekdays() (map[time.Weekday]bool, error) {
	if len(c.Scheduler.ActiveDays) == 0 {
		return nil, nil
	}
	days := make(map[time.Weekday]bool, len(c.Scheduler.ActiveDays))
	for _, name := range c.Scheduler.ActiveDays {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("scheduler.active_days: unknown weekday %q", name)
		}
		days[day] = true
	}
	return days, nil
}

// SchedulerLocation resolves the operating-window timezone.
func (c *Config) SchedulerLocation() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// EnabledChannels lists the channels the configuration turns on.
func (c *Config) EnabledChannels() []string {
	channels := make([]string, 0, 2)
	if c.Alerting.Email.Enabled {
		channels = append(channels, "email")
	}
	if c.Alerting.Telegram.Enabled {
		channels = append(channels, "telegram")
	}
	return channels
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
