// Package config loads tool settings from defaults, an optional
// bookpress.yaml, BOOKPRESS_ environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds tool-level settings. Book content settings live in the
// project's book.yaml.
type Config struct {
	Project    string            `mapstructure:"project"`
	Workers    int               `mapstructure:"workers"`
	LogFormat  string            `mapstructure:"log_format"`
	Debug      bool              `mapstructure:"debug"`
	Prince     string            `mapstructure:"prince"`
	Kindlegen  string            `mapstructure:"kindlegen"`
	WatchDelay time.Duration     `mapstructure:"watch_delay"`
	Attributes map[string]string `mapstructure:"attributes"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Project:    ".",
		Workers:    4,
		LogFormat:  "text",
		Prince:     "prince",
		Kindlegen:  "kindlegen",
		WatchDelay: 300 * time.Millisecond,
	}
}

// New returns a viper instance with defaults, environment binding and
// the config file read. cfgFile may be empty to search the usual places;
// a missing file is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("project", d.Project)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("prince", d.Prince)
	v.SetDefault("kindlegen", d.Kindlegen)
	v.SetDefault("watch_delay", d.WatchDelay)

	// Environment variables with BOOKPRESS_ prefix
	v.SetEnvPrefix("BOOKPRESS")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("bookpress")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bookpress")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// Load parses the current viper state and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project directory is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.WatchDelay < 0 {
		return fmt.Errorf("watch_delay must not be negative")
	}
	return nil
}

// Watch reloads the config file on change and hands valid results to fn.
func Watch(v *viper.Viper, fn func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load(v)
		if err != nil {
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
}
