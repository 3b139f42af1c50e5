// Package config loads and validates booru client configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nforsman/booru-client/pkg/client"
	"github.com/nforsman/booru-client/pkg/logging"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CredentialsConfig holds the board account used for API authentication.
type CredentialsConfig struct {
	Username string `mapstructure:"username"`
	APIKey   string `mapstructure:"api_key"`
}

// PreferencesConfig governs endpoint, pacing and cache placement.
type PreferencesConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
	BaseSearchTags    []string `mapstructure:"base_search_tags"`
	Blacklist         []string `mapstructure:"blacklist"`
	CacheDir          string   `mapstructure:"cache_dir"`
	MediaDir          string   `mapstructure:"media_dir"`
	PageSize          int      `mapstructure:"page_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load builds a Config from disk/environment. Environment variables use
// the BOORU prefix, e.g. BOORU_CREDENTIALS_API_KEY.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOORU")
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
	v.SetDefault("preferences.requests_per_minute", 115)
	v.SetDefault("preferences.cache_dir", "search_cache")
	v.SetDefault("preferences.media_dir", "search_cache/media")
	v.SetDefault("preferences.page_size", client.DefaultPageSize)
	v.SetDefault("logging.level", string(logging.LevelInfo))
	v.SetDefault("logging.pretty", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Credentials.Username == "" {
		return fmt.Errorf("credentials.username must be set")
	}
	if c.Credentials.APIKey == "" {
		return fmt.Errorf("credentials.api_key must be set")
	}
	if c.Preferences.BaseURL == "" {
		return fmt.Errorf("preferences.base_url must be set")
	}
	if c.Preferences.RequestsPerMinute <= 0 || c.Preferences.RequestsPerMinute > client.MaxRequestsPerMinute {
		return fmt.Errorf("preferences.requests_per_minute must be in 1..%d", client.MaxRequestsPerMinute)
	}
	if c.Preferences.PageSize <= 0 {
		return fmt.Errorf("preferences.page_size must be > 0")
	}
	return nil
}

// ClientConfig converts the loaded configuration into a client.Config.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Credentials.Username, c.Credentials.APIKey, c.Preferences.BaseURL)
	cfg.RequestsPerMinute = c.Preferences.RequestsPerMinute
	cfg.BaseSearchTags = c.Preferences.BaseSearchTags
	cfg.CacheDir = c.Preferences.CacheDir
	cfg.MediaDir = c.Preferences.MediaDir
	cfg.PageSize = c.Preferences.PageSize
	return cfg
}

// LoggingConfig converts the loaded configuration into a logging.Config.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
