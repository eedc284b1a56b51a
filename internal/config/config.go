package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all Fare Guardian configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Provider ProviderConfig `mapstructure:"provider"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig defines scan scheduling.
type MonitorConfig struct {
	// Interval is a Go duration or one of @hourly, @daily, @weekly, "@every <duration>".
	Interval        string           `mapstructure:"interval"`
	Pacing          time.Duration    `mapstructure:"pacing"`
	HistoryCapacity int              `mapstructure:"history_capacity"`
	RunOnStart      bool             `mapstructure:"run_on_start"`
	Thresholds      ThresholdsConfig `mapstructure:"thresholds"`
}

// ThresholdsConfig maps alert frequencies to re-check intervals.
type ThresholdsConfig struct {
	Hourly time.Duration `mapstructure:"hourly"`
	Daily  time.Duration `mapstructure:"daily"`
	Weekly time.Duration `mapstructure:"weekly"`
}

// ProviderConfig selects and configures fare sources.
type ProviderConfig struct {
	// Kind is "http", "static", or "all" to merge both.
	Kind              string        `mapstructure:"kind"`
	BaseURL           string        `mapstructure:"base_url"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxResults        int           `mapstructure:"max_results"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	FaresFile         string        `mapstructure:"fares_file"`
}

// NotifyConfig defines notification channels.
type NotifyConfig struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Email   EmailConfig   `mapstructure:"email"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// EmailConfig defines SMTP settings.
type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

// ServerConfig defines the operational HTTP server.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".fg"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("FG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".fg", "alerts.db"))

	v.SetDefault("monitor.interval", "1h")
	v.SetDefault("monitor.pacing", "1s")
	v.SetDefault("monitor.history_capacity", 30)
	v.SetDefault("monitor.run_on_start", true)
	v.SetDefault("monitor.thresholds.hourly", "1h")
	v.SetDefault("monitor.thresholds.daily", "24h")
	v.SetDefault("monitor.thresholds.weekly", "168h")

	v.SetDefault("provider.kind", "http")
	v.SetDefault("provider.base_url", "https://test.api.amadeus.com")
	v.SetDefault("provider.client_id", "")
	v.SetDefault("provider.client_secret", "")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.max_results", 20)
	v.SetDefault("provider.requests_per_second", 0)
	v.SetDefault("provider.fares_file", "fares.yaml")

	v.SetDefault("notify.slack.enabled", false)
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.slack.channel", "#fare-alerts")
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.host", "")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")

	v.SetDefault("server.listen", ":8090")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if _, err := ParseInterval(c.Monitor.Interval); err != nil {
		return fmt.Errorf("monitor.interval: %w", err)
	}
	if c.Monitor.Pacing < 0 {
		return fmt.Errorf("monitor.pacing must not be negative, got %s", c.Monitor.Pacing)
	}
	if c.Monitor.HistoryCapacity <= 0 {
		return fmt.Errorf("monitor.history_capacity must be positive, got %d", c.Monitor.HistoryCapacity)
	}
	switch c.Provider.Kind {
	case "http", "static", "all":
	default:
		return fmt.Errorf("provider.kind must be http, static, or all, got %q", c.Provider.Kind)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// ParseInterval parses a scan interval: a Go duration ("90m"), "@every <duration>",
// or one of the shorthands @hourly, @daily, @weekly.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "@hourly":
		return time.Hour, nil
	case "@daily", "@midnight":
		return 24 * time.Hour, nil
	case "@weekly":
		return 7 * 24 * time.Hour, nil
	}
	if rest, ok := strings.CutPrefix(s, "@every "); ok {
		s = strings.TrimSpace(rest)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", d)
	}
	return d, nil
}
