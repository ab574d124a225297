package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Hooks.Enabled && c.Hooks.Dir == "" {
		problems = append(problems, "hooks.dir is required when hooks are enabled")
	}
	if c.Hooks.LuaTimeout.Duration < 0 {
		problems = append(problems, "hooks.lua_timeout must not be negative")
	}
	if _, err := log.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	}
	if c.Session.Timeout.Duration <= 0 {
		problems = append(problems, "session.timeout must be positive")
	}
	if c.Cache.DefaultTTL.Duration < 0 {
		problems = append(problems, "cache.default_ttl must not be negative")
	}

	switch c.Cache.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Cache.Redis.Addr == "" {
			problems = append(problems, "cache.redis.addr is required for the redis driver")
		}
	case DriverSQL:
		if c.Cache.SQL.DSN == "" {
			problems = append(problems, "cache.sql.dsn is required for the sql driver")
		}
		if !validTableName(c.Cache.SQL.Table) {
			problems = append(problems, fmt.Sprintf("cache.sql.table %q is not a valid table name", c.Cache.SQL.Table))
		}
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not one of memory, redis, sql", c.Cache.Driver))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// validTableName accepts identifiers safe to interpolate into DDL.
func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// LogLevel returns the configured level, defaulting to info.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return log.InfoLevel
	}
	return level
}
