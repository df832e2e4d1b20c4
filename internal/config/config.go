package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"order-sync-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Report    ReportConfig    `mapstructure:"report"`
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

// SchedulerConfig governs the sync polling cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// SheetsConfig points at the source spreadsheet range.
type SheetsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SpreadsheetID  string        `mapstructure:"spreadsheet_id"`
	Range          string        `mapstructure:"range"`
	APIKeyFile     string        `mapstructure:"api_key_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RatesConfig covers the exchange-rate feed.
type RatesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	CurrencyID     string        `mapstructure:"currency_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TelegramConfig describes the notification bot.
type TelegramConfig struct {
	TokenFile      string        `mapstructure:"token_file"`
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SyncConfig tunes the notification throttle.
type SyncConfig struct {
	MinNotifyInterval time.Duration `mapstructure:"min_notify_interval"`
}

// ReportConfig configures the read-only report server.
type ReportConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORDERSYNC")
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
	v.SetDefault("app.name", "ordersync")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sheets.base_url", "https://sheets.googleapis.com")
	v.SetDefault("sheets.range", "Sheet1!A2:D")
	v.SetDefault("sheets.api_key_file", "developer_key")
	v.SetDefault("sheets.request_timeout", "10s")

	v.SetDefault("rates.base_url", "https://www.cbr.ru/scripts/XML_dynamic.asp")
	v.SetDefault("rates.currency_id", "R01235")
	v.SetDefault("rates.request_timeout", "10s")
	v.SetDefault("rates.user_agent", "ordersync/1.0")

	v.SetDefault("telegram.token_file", "telegram_api_token")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")

	v.SetDefault("sync.min_notify_interval", "24h")

	v.SetDefault("report.listen_addr", ":8080")

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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Sync.MinNotifyInterval <= 0 {
		return fmt.Errorf("sync.min_notify_interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Rates.CurrencyID == "" {
		return fmt.Errorf("rates.currency_id is required")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
