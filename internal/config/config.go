// Package config provides configuration for the viewer core. All settings
// have working defaults; a config file is optional.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all core configuration.
type Config struct {
	Parse  ParseConfig  `mapstructure:"parse"`
	Tree   TreeConfig   `mapstructure:"tree"`
	Loader LoaderConfig `mapstructure:"loader"`
	Memory MemoryConfig `mapstructure:"memory"`
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
}

// ParseConfig bounds document decoding.
type ParseConfig struct {
	MaxDepth      int   `mapstructure:"max_depth"`
	MaxBytes      int64 `mapstructure:"max_bytes"`
	AllowComments bool  `mapstructure:"allow_comments"`
}

// TreeConfig bounds materialization.
type TreeConfig struct {
	ChildLimit int `mapstructure:"child_limit"`
}

// LoaderConfig bounds concurrent expansion.
type LoaderConfig struct {
	Workers int64         `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MemoryConfig drives the pressure monitor.
type MemoryConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	WarnBytes     uint64        `mapstructure:"warn_bytes"`
	CriticalBytes uint64        `mapstructure:"critical_bytes"`
	WarningStreak int           `mapstructure:"warning_streak"`
	MinIdle       time.Duration `mapstructure:"min_idle"`
}

// SearchConfig bounds queries.
type SearchConfig struct {
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("parse.max_depth", 100)
	v.SetDefault("parse.max_bytes", int64(512<<20))
	v.SetDefault("parse.allow_comments", false)

	v.SetDefault("tree.child_limit", 1000)

	v.SetDefault("loader.workers", 3)
	v.SetDefault("loader.timeout", 10*time.Second)

	v.SetDefault("memory.interval", 2*time.Second)
	v.SetDefault("memory.warn_bytes", uint64(300<<20))
	v.SetDefault("memory.critical_bytes", uint64(500<<20))
	v.SetDefault("memory.warning_streak", 3)
	v.SetDefault("memory.min_idle", 30*time.Second)

	v.SetDefault("search.max_results", 1000)
	v.SetDefault("search.timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults alone cannot fail to unmarshal.
		panic(err)
	}
	return cfg
}

// Load reads configuration from the given file, falling back to defaults
// for everything unset. An empty path loads pure defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
