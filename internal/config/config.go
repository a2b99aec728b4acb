// Package config loads and validates crawler configuration via Viper.
// Every knob is reachable through a flat environment variable, and an
// optional config file can supply the same keys.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures all worker configuration knobs.
type Config struct {
	APIURL   string `mapstructure:"api_url"`
	APIToken string `mapstructure:"api_token"`
	RunID    string `mapstructure:"run_id"`

	BatchSize             int     `mapstructure:"batch_size"`
	ConcurrentRequests    int     `mapstructure:"concurrent_requests"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout"`
	RetryCount            int     `mapstructure:"retry_count"`
	RetryDelaySeconds     float64 `mapstructure:"retry_delay"`

	DownloadDelaySeconds float64 `mapstructure:"download_delay"`
	RandomizeDelay       bool    `mapstructure:"randomize_delay"`

	MaxContentLength    int64    `mapstructure:"max_content_length"`
	AllowedContentTypes []string `mapstructure:"allowed_content_types"`

	UserAgent   string `mapstructure:"user_agent"`
	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load builds a Config from the environment, optionally merged with a
// config file at path.
func Load(path string) (Config, error) {
	v := viper.New()
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
	v.SetDefault("api_url", "")
	v.SetDefault("api_token", "")
	v.SetDefault("run_id", "default")
	v.SetDefault("batch_size", 100)
	v.SetDefault("concurrent_requests", 16)
	v.SetDefault("request_timeout", 30)
	v.SetDefault("retry_count", 3)
	v.SetDefault("retry_delay", 1.0)
	v.SetDefault("download_delay", 0.5)
	v.SetDefault("randomize_delay", true)
	v.SetDefault("max_content_length", 10*1024*1024)
	v.SetDefault("allowed_content_types", []string{"text/html", "application/xhtml+xml"})
	v.SetDefault("user_agent", "CloudflareCrawler/1.0")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("metrics_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0")
	}
	if c.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent_requests must be > 0")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry_count must be >= 0")
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("retry_delay must be >= 0")
	}
	if c.DownloadDelaySeconds < 0 {
		return fmt.Errorf("download_delay must be >= 0")
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be > 0")
	}
	if len(c.AllowedContentTypes) == 0 {
		return fmt.Errorf("allowed_content_types must not be empty")
	}
	return nil
}

// RequestTimeout is the total budget for a single page fetch.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryDelay is the base backoff between fetch attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}

// DownloadDelay is the politeness pause between requests to one host and
// between successive result reports.
func (c Config) DownloadDelay() time.Duration {
	return time.Duration(c.DownloadDelaySeconds * float64(time.Second))
}
