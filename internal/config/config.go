// Package config loads the chzapp configuration.
//
// Configuration comes from three places, later ones winning: built-in
// defaults, a TOML or YAML file, and CHZAPP_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the application configuration.
type Config struct {
	Hooks   HooksConfig   `toml:"hooks" yaml:"hooks"`
	Log     LogConfig     `toml:"log" yaml:"log"`
	Session SessionConfig `toml:"session" yaml:"session"`
	Cache   CacheConfig   `toml:"cache" yaml:"cache"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// HooksConfig controls hook discovery.
type HooksConfig struct {
	// Enabled is the application-wide switch. When false no component is hooked.
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// Dir is where hook units are discovered.
	Dir string `toml:"dir" yaml:"dir"`

	// Strict makes unit load failures abort component construction.
	Strict bool `toml:"strict" yaml:"strict"`

	// LuaTimeout bounds each call into a Lua unit.
	LuaTimeout Duration `toml:"lua_timeout" yaml:"lua_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// SessionConfig controls session expiry.
type SessionConfig struct {
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Driver is one of "memory", "redis" or "sql".
	Driver     string      `toml:"driver" yaml:"driver"`
	DefaultTTL Duration    `toml:"default_ttl" yaml:"default_ttl"`
	Redis      RedisConfig `toml:"redis" yaml:"redis"`
	SQL        SQLConfig   `toml:"sql" yaml:"sql"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr" yaml:"addr"`
	DB       int    `toml:"db" yaml:"db"`
	Password string `toml:"password" yaml:"password"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

// SQLConfig configures the SQL cache backend.
type SQLConfig struct {
	Driver string `toml:"driver" yaml:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn"`
	Table  string `toml:"table" yaml:"table"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Cache drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hooks: HooksConfig{
			Enabled:    true,
			Dir:        "hooks",
			LuaTimeout: Duration{5 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
		Session: SessionConfig{
			Timeout: Duration{30 * time.Minute},
		},
		Cache: CacheConfig{
			Driver:     DriverMemory,
			DefaultTTL: Duration{10 * time.Minute},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "chzapp:",
			},
			SQL: SQLConfig{
				Driver: "postgres",
				Table:  "cache_storage",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Duration is a time.Duration written as a string such as "30s" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
