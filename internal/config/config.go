package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gsrwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	View      ViewConfig      `mapstructure:"view"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig points at the data and entitlement endpoints.
type SourceConfig struct {
	LatestURL      string        `mapstructure:"latest_url"`
	EntitlementURL string        `mapstructure:"entitlement_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	TierCacheTTL   time.Duration `mapstructure:"tier_cache_ttl"`
}

// StorageConfig selects the key-value backend for alert state.
type StorageConfig struct {
	Backend   string         `mapstructure:"backend"`
	Path      string         `mapstructure:"path"`
	Namespace string         `mapstructure:"namespace"`
	Database  DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs refresh cadence of the run command.
type SchedulerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	LabelInterval   time.Duration `mapstructure:"label_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Align           bool          `mapstructure:"align"`
}

// ViewConfig controls what is charted and how.
type ViewConfig struct {
	Range     string        `mapstructure:"range"`
	Metrics   []string      `mapstructure:"metrics"`
	MaxPoints int           `mapstructure:"max_points"`
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
	OutputDir string        `mapstructure:"output_dir"`
	TableRows int           `mapstructure:"table_rows"`
	Detail    time.Duration `mapstructure:"detail_ttl"`
}

// AlertingConfig defines notification routing. Thresholds themselves live
// in the key-value store and are edited through the alerts command.
type AlertingConfig struct {
	NotifyTimeout time.Duration  `mapstructure:"notify_timeout"`
	Cooldown      time.Duration  `mapstructure:"cooldown"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig exposes prometheus metrics when Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GSRWATCH")
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
	v.SetDefault("app.name", "gsrwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("source.latest_url", "http://localhost:3000/api/latest")
	v.SetDefault("source.entitlement_url", "")
	v.SetDefault("source.request_timeout", "15s")
	v.SetDefault("source.user_agent", "gsrwatch/1.0")
	v.SetDefault("source.tier_cache_ttl", "5m")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", ".gsrwatch/state.json")
	v.SetDefault("storage.namespace", "default")
	v.SetDefault("storage.database.max_open_conns", 4)
	v.SetDefault("storage.database.max_idle_conns", 1)
	v.SetDefault("storage.database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.refresh_interval", "1h")
	v.SetDefault("scheduler.label_interval", "10s")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.align", false)

	v.SetDefault("view.range", "1M")
	v.SetDefault("view.metrics", []string{"gsr", "gold", "silver"})
	v.SetDefault("view.max_points", 3000)
	v.SetDefault("view.width", 1280)
	v.SetDefault("view.height", 400)
	v.SetDefault("view.output_dir", "")
	v.SetDefault("view.table_rows", 200)
	v.SetDefault("view.detail_ttl", "4500ms")

	v.SetDefault("alerting.notify_timeout", "10s")
	v.SetDefault("alerting.cooldown", "24h")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("export.max_data_points", 3000)
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.View.MaxPoints <= 1 {
		return fmt.Errorf("view.max_points must be greater than one")
	}
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("view.width and view.height must be positive")
	}
	if len(c.View.Metrics) == 0 {
		return fmt.Errorf("view.metrics must list at least one metric")
	}
	if c.Scheduler.RefreshInterval <= 0 {
		return fmt.Errorf("scheduler.refresh_interval must be greater than zero")
	}
	if c.Scheduler.LabelInterval <= 0 {
		return fmt.Errorf("scheduler.label_interval must be greater than zero")
	}
	if c.Alerting.Cooldown <= 0 {
		return fmt.Errorf("alerting.cooldown must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
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
