package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "CHZAPP_"

// envSetter applies one environment value to a config.
type envSetter func(c *Config, value string) error

// envMapping maps variable names, without prefix, to setters.
var envMapping = map[string]envSetter{
	"HOOKS_ENABLED":        boolSetter(func(c *Config) *bool { return &c.Hooks.Enabled }),
	"HOOKS_DIR":            stringSetter(func(c *Config) *string { return &c.Hooks.Dir }),
	"HOOKS_STRICT":         boolSetter(func(c *Config) *bool { return &c.Hooks.Strict }),
	"HOOKS_LUA_TIMEOUT":    durationSetter(func(c *Config) *time.Duration { return &c.Hooks.LuaTimeout.Duration }),
	"LOG_LEVEL":            stringSetter(func(c *Config) *string { return &c.Log.Level }),
	"SESSION_TIMEOUT":      durationSetter(func(c *Config) *time.Duration { return &c.Session.Timeout.Duration }),
	"CACHE_DRIVER":         stringSetter(func(c *Config) *string { return &c.Cache.Driver }),
	"CACHE_DEFAULT_TTL":    durationSetter(func(c *Config) *time.Duration { return &c.Cache.DefaultTTL.Duration }),
	"CACHE_REDIS_ADDR":     stringSetter(func(c *Config) *string { return &c.Cache.Redis.Addr }),
	"CACHE_REDIS_DB":       intSetter(func(c *Config) *int { return &c.Cache.Redis.DB }),
	"CACHE_REDIS_PASSWORD": stringSetter(func(c *Config) *string { return &c.Cache.Redis.Password }),
	"CACHE_REDIS_PREFIX":   stringSetter(func(c *Config) *string { return &c.Cache.Redis.Prefix }),
	"CACHE_SQL_DRIVER":     stringSetter(func(c *Config) *string { return &c.Cache.SQL.Driver }),
	"CACHE_SQL_DSN":        stringSetter(func(c *Config) *string { return &c.Cache.SQL.DSN }),
	"CACHE_SQL_TABLE":      stringSetter(func(c *Config) *string { return &c.Cache.SQL.Table }),
	"METRICS_ENABLED":      boolSetter(func(c *Config) *bool { return &c.Metrics.Enabled }),
}

// EnvNames returns the recognized variable names with prefix applied, sorted.
func EnvNames(prefix string) []string {
	names := make([]string, 0, len(envMapping))
	for name := range envMapping {
		names = append(names, prefix+name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides c with every recognized prefixed environment variable.
// Empty values are applied as-is for strings and rejected for other types.
func (c *Config) ApplyEnv(prefix string) error {
	for name, set := range envMapping {
		value, ok := os.LookupEnv(prefix + name)
		if !ok {
			continue
		}
		if err := set(c, value); err != nil {
			return fmt.Errorf("%s%s: %w", prefix, name, err)
		}
	}
	return nil
}

func stringSetter(field func(*Config) *string) envSetter {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

func boolSetter(field func(*Config) *bool) envSetter {
	return func(c *Config, value string) error {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			*field(c) = true
		case "0", "false", "no", "off":
			*field(c) = false
		default:
			return fmt.Errorf("invalid boolean %q", value)
		}
		return nil
	}
}

func intSetter(field func(*Config) *int) envSetter {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func durationSetter(field func(*Config) *time.Duration) envSetter {
	return func(c *Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
