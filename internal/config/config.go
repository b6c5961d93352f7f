// Package config loads gitpast settings from an optional config file and
// GITPAST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rybkr/gitpast/internal/logging"
)

// Config is the merged configuration. Command line flags are applied on top
// by the caller.
type Config struct {
	Verbosity int           `mapstructure:"verbosity"`
	Log       LogConfig     `mapstructure:"log"`
	History   HistoryConfig `mapstructure:"history"`
	Serve     ServeConfig   `mapstructure:"serve"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
}

type HistoryConfig struct {
	Limit int  `mapstructure:"limit"`
	Exact bool `mapstructure:"exact"`
	// Dirty adds the uncommitted-changes node when the work tree is modified.
	Dirty bool `mapstructure:"dirty"`
}

type ServeConfig struct {
	Port int           `mapstructure:"port"`
	Poll time.Duration `mapstructure:"poll"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Format: string(logging.FormatText)},
		History: HistoryConfig{Dirty: true},
		Serve:   ServeConfig{Port: 8080, Poll: 5 * time.Second},
	}
}

// Load reads the config file at path, or when path is empty the first
// gitpast.{toml,yaml,json} found in the working directory or the user config
// directory. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("verbosity", def.Verbosity)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("history.limit", def.History.Limit)
	v.SetDefault("history.exact", def.History.Exact)
	v.SetDefault("history.dirty", def.History.Dirty)
	v.SetDefault("serve.port", def.Serve.Port)
	v.SetDefault("serve.poll", def.Serve.Poll)

	v.SetEnvPrefix("GITPAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gitpast")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "gitpast"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must not be negative, got %d", c.History.Limit)
	}
	if c.Serve.Port <= 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", c.Serve.Port)
	}
	if c.Serve.Poll < 0 {
		return fmt.Errorf("serve.poll must not be negative, got %s", c.Serve.Poll)
	}
	return nil
}
