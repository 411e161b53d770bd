package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"marketwatch/internal/logging"
)

// Source kinds understood by the quote package.
const (
	SourceKindJSON      = "json"
	SourceKindHTML      = "html"
	SourceKindChainlink = "chainlink"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Report    ReportConfig    `mapstructure:"report"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig selects and tunes the sample store backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres mysql"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Table           string        `mapstructure:"table" validate:"required"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	StartupDelay time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
	RunOnStart   bool          `mapstructure:"run_on_start"`
}

// SourcesConfig wires one quote source chain per sampled field.
type SourcesConfig struct {
	Index    FieldConfig `mapstructure:"index"`
	FX       FieldConfig `mapstructure:"fx"`
	Exchange FieldConfig `mapstructure:"exchange"`
}

// FieldConfig is a primary source plus an optional fallback consulted when the
// primary yields no usable value.
type FieldConfig struct {
	Primary  SourceConfig `mapstructure:"primary"`
	Fallback SourceConfig `mapstructure:"fallback"`
}

// SourceConfig describes a single upstream lookup.
type SourceConfig struct {
	Name      string            `mapstructure:"name"`
	Kind      string            `mapstructure:"kind" validate:"omitempty,oneof=json html chainlink"`
	URL       string            `mapstructure:"url" validate:"omitempty,url"`
	Path      string            `mapstructure:"path"`
	Selector  string            `mapstructure:"selector"`
	UserAgent string            `mapstructure:"user_agent"`
	Headers   map[string]string `mapstructure:"headers"`
	Timeout   time.Duration     `mapstructure:"timeout" validate:"gte=0"`
	RPCURL    string            `mapstructure:"rpc_url"`
	Address   string            `mapstructure:"address"`
}

// Configured reports whether the source has been given a kind.
func (s SourceConfig) Configured() bool {
	return strings.TrimSpace(s.Kind) != ""
}

// ReportConfig controls chart rendering.
type ReportConfig struct {
	Window     time.Duration `mapstructure:"window" validate:"gt=0"`
	OutputPath string        `mapstructure:"output_path"`
	Width      int           `mapstructure:"width" validate:"gte=320"`
	Height     int           `mapstructure:"height" validate:"gte=240"`
	MaxPoints  int           `mapstructure:"max_points" validate:"gt=1"`
	Schedule   string        `mapstructure:"schedule"`
}

// AlertingConfig defines premium alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct" validate:"gte=0"`
	Cooldown     time.Duration  `mapstructure:"cooldown" validate:"gte=0"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for alerts and chart delivery.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" validate:"required_if=Enabled true"`
	ChatID   int64  `mapstructure:"chat_id" validate:"required_if=Enabled true"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig controls the ops HTTP listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" validate:"required_if=Enabled true"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETWATCH")
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
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.table", "market_prices")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", false)

	const investingUA = "Mozilla/5.0"
	v.SetDefault("sources.index.primary.name", "investing_dxy")
	v.SetDefault("sources.index.primary.kind", SourceKindJSON)
	v.SetDefault("sources.index.primary.url", "https://api.investing.com/api/financialdata/169")
	v.SetDefault("sources.index.primary.path", "data.last.value")
	v.SetDefault("sources.index.primary.user_agent", investingUA)
	v.SetDefault("sources.index.primary.timeout", "10s")

	v.SetDefault("sources.index.fallback.name", "yahoo_dxy")
	v.SetDefault("sources.index.fallback.kind", SourceKindJSON)
	v.SetDefault("sources.index.fallback.url", "https://query1.finance.yahoo.com/v8/finance/chart/DX-Y.NYB")
	v.SetDefault("sources.index.fallback.path", "chart.result.0.meta.regularMarketPrice")
	v.SetDefault("sources.index.fallback.user_agent", investingUA)
	v.SetDefault("sources.index.fallback.timeout", "10s")

	v.SetDefault("sources.fx.primary.name", "investing_usdkrw")
	v.SetDefault("sources.fx.primary.kind", SourceKindJSON)
	v.SetDefault("sources.fx.primary.url", "https://api.investing.com/api/financialdata/2111")
	v.SetDefault("sources.fx.primary.path", "data.last.value")
	v.SetDefault("sources.fx.primary.user_agent", investingUA)
	v.SetDefault("sources.fx.primary.timeout", "10s")

	v.SetDefault("sources.exchange.primary.name", "bithumb_usdt")
	v.SetDefault("sources.exchange.primary.kind", SourceKindJSON)
	v.SetDefault("sources.exchange.primary.url", "https://api.bithumb.com/public/ticker/USDT_KRW")
	v.SetDefault("sources.exchange.primary.path", "data.closing_price")
	v.SetDefault("sources.exchange.primary.timeout", "10s")

	v.SetDefault("report.window", "720h")
	v.SetDefault("report.output_path", "market_prices.png")
	v.SetDefault("report.width", 1280)
	v.SetDefault("report.height", 720)
	v.SetDefault("report.max_points", 5000)
	v.SetDefault("report.schedule", "")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 2.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9108")
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

var (
	validate       = validator.New(validator.WithRequiredStructEnabled())
	tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)
)

// Validate performs struct-tag checks followed by cross-field sanity checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !tableNameRegex.MatchString(c.Database.Table) {
		return fmt.Errorf("database.table %q is not a valid identifier", c.Database.Table)
	}

	fields := []struct {
		name  string
		field FieldConfig
	}{
		{"sources.index", c.Sources.Index},
		{"sources.fx", c.Sources.FX},
		{"sources.exchange", c.Sources.Exchange},
	}
	for _, f := range fields {
		if !f.field.Primary.Configured() {
			return fmt.Errorf("%s.primary.kind must be configured", f.name)
		}
		if err := validateSource(f.name+".primary", f.field.Primary); err != nil {
			return err
		}
		if f.field.Fallback.Configured() {
			if err := validateSource(f.name+".fallback", f.field.Fallback); err != nil {
				return err
			}
		}
	}

	if c.Alerting.Enabled && !c.Alerting.Telegram.Enabled {
		return fmt.Errorf("alerting.enabled requires alerting.telegram.enabled")
	}
	return nil
}

func validateSource(prefix string, s SourceConfig) error {
	switch s.Kind {
	case SourceKindJSON:
		if s.URL == "" || s.Path == "" {
			return fmt.Errorf("%s: json sources need url and path", prefix)
		}
	case SourceKindHTML:
		if s.URL == "" || s.Selector == "" {
			return fmt.Errorf("%s: html sources need url and selector", prefix)
		}
	case SourceKindChainlink:
		if s.RPCURL == "" || s.Address == "" {
			return fmt.Errorf("%s: chainlink sources need rpc_url and address", prefix)
		}
	default:
		return fmt.Errorf("%s: unknown source kind %q", prefix, s.Kind)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Report.MaxPoints
}

// ResolveWindow returns either the CLI override or the configured report window.
func (c *Config) ResolveWindow(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return c.Report.Window
}
