// Package config loads qlfilter settings from a yaml file with QLFILTER_
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/IroiKanta/StarryEyes/build"
	"github.com/IroiKanta/StarryEyes/expr"
)

const EnvPrefix = "QLFILTER"

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type StringsConfig struct {
	// CaseSensitive is read once when filters are built
	CaseSensitive bool `mapstructure:"case_sensitive"`
}

type QueryConfig struct {
	Limit uint64 `mapstructure:"limit"`
}

type Config struct {
	LogLevel string             `mapstructure:"log_level"`
	Store    StoreConfig        `mapstructure:"store"`
	Strings  StringsConfig      `mapstructure:"strings"`
	Query    QueryConfig        `mapstructure:"query"`
	Filters  []build.FilterSpec `mapstructure:"filters"`
}

// Comparison is the string comparison every built operator uses.
func (c *Config) Comparison() expr.Comparison {
	if c.Strings.CaseSensitive {
		return expr.CaseSensitive
	}
	return expr.IgnoreCase
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("store.path", ":memory:")
	v.SetDefault("strings.case_sensitive", false)
	v.SetDefault("query.limit", 100)
}

// Load reads path, or qlfilter.yaml from the working directory when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("qlfilter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	names := make(map[string]bool, len(cfg.Filters))
	for i, f := range cfg.Filters {
		if f.Name == "" {
			return nil, fmt.Errorf("config: filter #%d has no name", i)
		}
		if names[f.Name] {
			return nil, fmt.Errorf("config: filter %q defined twice", f.Name)
		}
		names[f.Name] = true
	}
	return &cfg, nil
}
