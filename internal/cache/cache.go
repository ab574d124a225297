// Package cache provides hookable key/value cache components.
//
// Three backends share the Cache interface: Memory keeps entries in process,
// Redis stores them in a Redis server and SQL in a database table. Redis and
// SQL store values as JSON, so reads return the JSON shape of what was written
// (numbers come back as float64, structs as map[string]any).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/chzapp/internal/component"
)

// NoExpiry stores an entry until it is removed.
const NoExpiry time.Duration = -1

// Errors returned by cache operations.
var (
	// ErrInvalidArgument is returned when an exported method gets bad arguments.
	ErrInvalidArgument = errors.New("invalid cache argument")

	// ErrEncode is returned when a value cannot be stored.
	ErrEncode = errors.New("cache value cannot be encoded")
)

// Cache is a key/value store with per-entry expiry.
//
// A ttl of zero uses the backend's default; NoExpiry (or any negative value)
// keeps the entry until it is removed.
type Cache interface {
	// Get returns the value stored at index. ok is false on a miss.
	Get(ctx context.Context, index string) (value any, ok bool, err error)

	// Create stores data at index, replacing any previous value, and returns
	// the value as stored. data may be a func() any or func() (any, error),
	// which is called to produce the value.
	Create(ctx context.Context, index string, data any, ttl time.Duration) (any, error)

	// Remove deletes index and reports whether it existed.
	Remove(ctx context.Context, index string) (bool, error)

	// Parse returns the cached value at index, creating it from data on a miss.
	// force discards the cached value first.
	Parse(ctx context.Context, index string, data any, ttl time.Duration, force bool) (any, error)
}

// parse implements Cache.Parse on top of the other three methods.
func parse(ctx context.Context, c Cache, index string, data any, ttl time.Duration, force bool) (any, error) {
	if force {
		if _, err := c.Remove(ctx, index); err != nil {
			return nil, err
		}
	}

	v, ok, err := c.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}
	return c.Create(ctx, index, data, ttl)
}

// produce evaluates data when it is a producer function.
func produce(data any) (any, error) {
	switch fn := data.(type) {
	case func() any:
		return fn(), nil
	case func() (any, error):
		return fn()
	}
	return data, nil
}

// Option configures a cache backend.
type Option func(*options)

type options struct {
	ttl       time.Duration
	now       func() time.Time
	component []component.Option
}

func defaultOptions() options {
	return options{
		ttl: 10 * time.Minute,
		now: time.Now,
	}
}

// WithDefaultTTL sets the expiry used when Create gets a zero ttl.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithComponentOptions passes options through to component setup.
func WithComponentOptions(opts ...component.Option) Option {
	return func(o *options) {
		o.component = append(o.component, opts...)
	}
}

// lifetime resolves a requested ttl. Zero means no expiry in the result.
func (o *options) lifetime(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = o.ttl
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return string(data), nil
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decoding cached value: %w", err)
	}
	return v, nil
}

// exports exposes c to hook code. ttl arguments are seconds.
func exports(c Cache) map[string]func(args ...any) (any, error) {
	ctx := context.Background()
	return map[string]func(args ...any) (any, error){
		"Get": func(args ...any) (any, error) {
			index, err := argIndex(args)
			if err != nil {
				return nil, err
			}
			v, _, err := c.Get(ctx, index)
			return v, err
		},
		"Create": func(args ...any) (any, error) {
			index, err := argIndex(args)
			if err != nil {
				return nil, err
			}
			ttl, err := argTTL(args, 2)
			if err != nil {
				return nil, err
			}
			return c.Create(ctx, index, argAt(args, 1), ttl)
		},
		"Remove": func(args ...any) (any, error) {
			index, err := argIndex(args)
			if err != nil {
				return nil, err
			}
			return c.Remove(ctx, index)
		},
		"Parse": func(args ...any) (any, error) {
			index, err := argIndex(args)
			if err != nil {
				return nil, err
			}
			ttl, err := argTTL(args, 2)
			if err != nil {
				return nil, err
			}
			force, _ := argAt(args, 3).(bool)
			return c.Parse(ctx, index, argAt(args, 1), ttl, force)
		},
	}
}

func argAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argIndex(args []any) (string, error) {
	index, ok := argAt(args, 0).(string)
	if !ok || index == "" {
		return "", fmt.Errorf("%w: index must be a non-empty string", ErrInvalidArgument)
	}
	return index, nil
}

func argTTL(args []any, i int) (time.Duration, error) {
	switch v := argAt(args, i).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%w: ttl must be a number of seconds, got %T", ErrInvalidArgument, v)
	}
}
