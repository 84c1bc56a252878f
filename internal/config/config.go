// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Artifact backend names accepted by storage.artifact_backend.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Browser BrowserConfig `mapstructure:"browser"`
	Events  EventsConfig  `mapstructure:"events"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlConfig governs schedule crawl behavior.
type CrawlConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	ClubKeywords   []string `mapstructure:"club_keywords"`
	MaxAttempts    int      `mapstructure:"max_attempts"`
	RetryDelayMs   int      `mapstructure:"retry_delay_ms"`
	StaleAfterHrs  int      `mapstructure:"stale_after_hours"`
	PreviewTimeout int      `mapstructure:"preview_timeout_seconds"`
}

// BrowserConfig configures the headless browser subsystem.
type BrowserConfig struct {
	Headless         bool   `mapstructure:"headless"`
	ViewportWidth    int    `mapstructure:"viewport_width"`
	ViewportHeight   int    `mapstructure:"viewport_height"`
	UserAgent        string `mapstructure:"user_agent"`
	ActionTimeoutMs  int    `mapstructure:"action_timeout_ms"`
	NavTimeoutMs     int    `mapstructure:"nav_timeout_ms"`
	LaunchTimeoutSec int    `mapstructure:"launch_timeout_seconds"`
	MinNavIntervalMs int    `mapstructure:"min_nav_interval_ms"`
}

// EventsConfig sizes the status broadcast fan-out.
type EventsConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// StorageConfig sets paths and backends for crawl persistence.
type StorageConfig struct {
	DataDir         string `mapstructure:"data_dir"`
	RecordsFile     string `mapstructure:"records_file"`
	StatusFile      string `mapstructure:"status_file"`
	ScreenshotsDir  string `mapstructure:"screenshots_dir"`
	ArtifactBackend string `mapstructure:"artifact_backend"`
	GCSBucket       string `mapstructure:"gcs_bucket"`
	GCSPrefix       string `mapstructure:"gcs_prefix"`
}

// DBConfig controls the optional relational record store.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHEDCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("logging.development", true)
	v.SetDefault("crawl.base_url", "https://www.holmesplace.co.il/")
	v.SetDefault("crawl.club_keywords", []string{"הולמס פלייס", "גו אקטיב"})
	v.SetDefault("crawl.max_attempts", 3)
	v.SetDefault("crawl.retry_delay_ms", 1000)
	v.SetDefault("crawl.stale_after_hours", 168)
	v.SetDefault("crawl.preview_timeout_seconds", 15)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.action_timeout_ms", 4000)
	v.SetDefault("browser.nav_timeout_ms", 10000)
	v.SetDefault("browser.launch_timeout_seconds", 120)
	v.SetDefault("browser.min_nav_interval_ms", 500)
	v.SetDefault("events.subscriber_buffer", 64)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.records_file", "crawl_records.jsonl")
	v.SetDefault("storage.status_file", "last_crawl_status.json")
	v.SetDefault("storage.screenshots_dir", "screenshots")
	v.SetDefault("storage.artifact_backend", BackendLocal)
	v.SetDefault("storage.gcs_prefix", "screenshots")
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("crawl.base_url must be set")
	}
	if c.Crawl.MaxAttempts < 1 {
		return fmt.Errorf("crawl.max_attempts must be >= 1")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be > 0")
	}
	if c.Browser.NavTimeoutMs <= 0 {
		return fmt.Errorf("browser.nav_timeout_ms must be > 0")
	}
	if c.Events.SubscriberBuffer <= 0 {
		return fmt.Errorf("events.subscriber_buffer must be > 0")
	}
	switch c.Storage.ArtifactBackend {
	case BackendLocal:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when artifact_backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("storage.artifact_backend must be %q or %q", BackendLocal, BackendGCS)
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// RetryDelay converts the retry delay config into a duration.
func (c CrawlConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// StaleAfter returns the age past which the latest crawl counts as stale.
func (c CrawlConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterHrs) * time.Hour
}

// PreviewBudget returns the request budget for the browserless club preview.
func (c CrawlConfig) PreviewBudget() time.Duration {
	return time.Duration(c.PreviewTimeout) * time.Second
}

// ActionTimeout returns the per-action wait budget.
func (c BrowserConfig) ActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeoutMs) * time.Millisecond
}

// NavTimeout returns the navigation wait budget.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

// LaunchTimeout returns the browser startup budget.
func (c BrowserConfig) LaunchTimeout() time.Duration {
	return time.Duration(c.LaunchTimeoutSec) * time.Second
}

// MinNavInterval returns the pacing floor between page navigations.
func (c BrowserConfig) MinNavInterval() time.Duration {
	return time.Duration(c.MinNavIntervalMs) * time.Millisecond
}
