// Package config loads the farewatch configuration from a YAML file and
// FAREWATCH_* environment variables. Every key has a default, so a missing
// file is valid and yields the built-in routes and settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rewired-gh/farewatch/internal/history"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/rewired-gh/farewatch/internal/monitor"
	"github.com/rewired-gh/farewatch/internal/retry"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Source adapter names.
const (
	AdapterRyanair = "ryanair"
	AdapterSerpAPI = "serpapi"
)

// Config represents the complete application configuration
type Config struct {
	Routes   []models.Route `mapstructure:"routes"`
	Source   SourceConfig   `mapstructure:"source"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	History  HistoryConfig  `mapstructure:"history"`
	Charts   ChartsConfig   `mapstructure:"charts"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// SourceConfig selects the price source and bounds each fetch
type SourceConfig struct {
	Adapter     string        `mapstructure:"adapter"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	RetryJitter time.Duration `mapstructure:"retry_jitter"`
	PaceMin     time.Duration `mapstructure:"pace_min"`
	PaceMax     time.Duration `mapstructure:"pace_max"`
}

// SourcesConfig holds per-adapter settings
type SourcesConfig struct {
	Ryanair RyanairConfig `mapstructure:"ryanair"`
	SerpAPI SerpAPIConfig `mapstructure:"serpapi"`
}

// RyanairConfig holds booking availability API settings
type RyanairConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SerpAPIConfig holds search aggregator settings
type SerpAPIConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	APIKey           string  `mapstructure:"api_key"`
	Currency         string  `mapstructure:"currency"`
	DumpDir          string  `mapstructure:"dump_dir"`
	AdjustmentFactor float64 `mapstructure:"adjustment_factor"`
}

// PricingConfig holds the reference currency and static conversion rates
type PricingConfig struct {
	ReferenceCurrency string             `mapstructure:"reference_currency"`
	Rates             map[string]float64 `mapstructure:"rates"`
}

// MonitorConfig holds change detection configuration
type MonitorConfig struct {
	MinChange float64 `mapstructure:"min_change"`
	Baseline  string  `mapstructure:"baseline"`
}

// HistoryConfig holds persistence configuration
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// ChartsConfig holds chart output configuration
type ChartsConfig struct {
	Dir string `mapstructure:"dir"`
}

// EmailConfig holds SMTP notification configuration
type EmailConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	SMTPHost string        `mapstructure:"smtp_host"`
	SMTPPort int           `mapstructure:"smtp_port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	To       []string      `mapstructure:"to"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// MetricsConfig holds metrics output configuration
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables. A path that
// does not exist is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. FAREWATCH_EMAIL_PASSWORD
	v.SetEnvPrefix("FAREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := ""
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			file = path
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = file

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Routes
	v.SetDefault("routes", []map[string]interface{}{
		{"origin": "DUB", "destination": "LUZ", "date": "2025-07-17", "label": "Dublin-Lublin"},
		{"origin": "LUZ", "destination": "DUB", "date": "2025-08-10", "label": "Lublin-Dublin"},
		{"origin": "RZE", "destination": "DUB", "date": "2025-08-13", "label": "Rzeszow-Dublin"},
	})

	// Source defaults
	v.SetDefault("source.adapter", AdapterRyanair)
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.max_attempts", 3)
	v.SetDefault("source.retry_delay", "5s")
	v.SetDefault("source.retry_jitter", "0s")
	v.SetDefault("source.pace_min", "5s")
	v.SetDefault("source.pace_max", "10s")

	v.SetDefault("sources.ryanair.base_url", "https://www.ryanair.com")
	v.SetDefault("sources.serpapi.base_url", "https://serpapi.com")
	v.SetDefault("sources.serpapi.api_key", "")
	v.SetDefault("sources.serpapi.currency", "EUR")
	v.SetDefault("sources.serpapi.dump_dir", "")
	v.SetDefault("sources.serpapi.adjustment_factor", 0.88)

	// Pricing defaults
	v.SetDefault("pricing.reference_currency", "EUR")
	v.SetDefault("pricing.rates", map[string]interface{}{"PLN": 0.23})

	// Monitor defaults
	v.SetDefault("monitor.min_change", 0)
	v.SetDefault("monitor.baseline", string(monitor.BaselineLastNumeric))

	// History defaults
	v.SetDefault("history.backend", history.BackendCSV)
	v.SetDefault("history.path", "./data/prices.csv")
	v.SetDefault("history.dsn", "")

	v.SetDefault("charts.dir", "./data/price_plots")

	// Email defaults
	v.SetDefault("email.enabled", true)
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", []string{})
	v.SetDefault("email.timeout", "30s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")

	v.SetDefault("metrics.textfile", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// expandPaths resolves a leading ~ in every configured path.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.History.Path,
		&c.Charts.Dir,
		&c.Sources.SerpAPI.DumpDir,
		&c.Metrics.Textfile,
		&c.Logging.File,
	}
	if c.History.Backend == history.BackendSQLite {
		paths = append(paths, &c.History.DSN)
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate routes
	if len(c.Routes) == 0 {
		return fmt.Errorf("routes must contain at least one route")
	}
	labels := make(map[string]bool)
	keys := make(map[string]bool)
	for i := range c.Routes {
		r := &c.Routes[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("routes[%d]: %w", i, err)
		}
		if labels[r.Label] {
			return fmt.Errorf("routes[%d]: duplicate label %q", i, r.Label)
		}
		if keys[r.Key()] {
			return fmt.Errorf("routes[%d]: duplicate route %s", i, r.Key())
		}
		labels[r.Label] = true
		keys[r.Key()] = true
	}

	// Validate source config
	if c.Source.Adapter != AdapterRyanair && c.Source.Adapter != AdapterSerpAPI {
		return fmt.Errorf("source.adapter must be one of: %s, %s", AdapterRyanair, AdapterSerpAPI)
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxAttempts < 1 || c.Source.MaxAttempts > 10 {
		return fmt.Errorf("source.max_attempts must be between 1 and 10")
	}
	if c.Source.RetryDelay < 0 || c.Source.RetryJitter < 0 {
		return fmt.Errorf("source.retry_delay and source.retry_jitter must not be negative")
	}
	if c.Source.PaceMin < 0 || c.Source.PaceMax < c.Source.PaceMin {
		return fmt.Errorf("source.pace_min must not be negative and source.pace_max must be at least pace_min")
	}
	if f := c.Sources.SerpAPI.AdjustmentFactor; f <= 0 || f > 2 {
		return fmt.Errorf("sources.serpapi.adjustment_factor must be in (0, 2]")
	}

	// Validate pricing config
	if len(c.Pricing.ReferenceCurrency) != 3 {
		return fmt.Errorf("pricing.reference_currency must be a 3-letter currency code")
	}
	for code, rate := range c.Pricing.Rates {
		if rate <= 0 {
			return fmt.Errorf("pricing.rates.%s must be positive", code)
		}
	}

	// Validate monitor config
	if c.Monitor.MinChange < 0 {
		return fmt.Errorf("monitor.min_change must not be negative")
	}
	if _, err := monitor.ParseBaseline(c.Monitor.Baseline); err != nil {
		return fmt.Errorf("monitor.baseline: %w", err)
	}

	// Validate history config
	switch c.History.Backend {
	case history.BackendCSV:
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the csv backend")
		}
	case history.BackendSQLite, history.BackendPostgres:
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the %s backend", c.History.Backend)
		}
	default:
		return fmt.Errorf("history.backend must be one of: csv, sqlite, postgres")
	}
	if c.History.Path == "" {
		return fmt.Errorf("history.path is required")
	}
	if c.Charts.Dir == "" {
		return fmt.Errorf("charts.dir is required")
	}

	// Validate email config
	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host is required when email is enabled")
		}
		if c.Email.SMTPPort < 1 || c.Email.SMTPPort > 65535 {
			return fmt.Errorf("email.smtp_port must be between 1 and 65535")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
		if len(c.Email.To) == 0 {
			return fmt.Errorf("email.to must contain at least one recipient when email is enabled")
		}
		if c.Email.Timeout <= 0 {
			return fmt.Errorf("email.timeout must be positive")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// RetryPolicy returns the fetch retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Source.MaxAttempts,
		Delay:       c.Source.RetryDelay,
		Jitter:      c.Source.RetryJitter,
	}
}

// Rates returns the conversion rates keyed by upper-case currency code.
func (c *Config) Rates() map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal, len(c.Pricing.Rates))
	for code, rate := range c.Pricing.Rates {
		rates[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	return rates
}

// Adjustment returns the adjustment factor of the active source, or nil when
// the source reports prices that need no adjustment.
func (c *Config) Adjustment() *decimal.Decimal {
	if c.Source.Adapter != AdapterSerpAPI {
		return nil
	}
	f := decimal.NewFromFloat(c.Sources.SerpAPI.AdjustmentFactor)
	return &f
}

// MinChange returns the alert threshold as a decimal.
func (c *Config) MinChange() decimal.Decimal {
	return decimal.NewFromFloat(c.Monitor.MinChange)
}

// HistoryOptions returns the store options.
func (c *Config) HistoryOptions() history.Options {
	return history.Options{
		Backend:  c.History.Backend,
		Path:     c.History.Path,
		DSN:      c.History.DSN,
		Currency: c.Pricing.ReferenceCurrency,
	}
}
