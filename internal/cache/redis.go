package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dshills/chzapp/internal/component"
	"github.com/dshills/chzapp/internal/config"
)

// RedisClient is the subset of the go-redis client used by Redis.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores JSON-encoded entries in a Redis server.
type Redis struct {
	component.Component

	opts   options
	client RedisClient
	prefix string
}

// NewRedis creates a cache on an existing client. Keys are prefix+index.
func NewRedis(app component.Context, client RedisClient, prefix string, opts ...Option) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrInvalidArgument)
	}
	r := &Redis{
		opts:   defaultOptions(),
		client: client,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	if err := r.Setup(r, app, r.opts.component...); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenRedis connects to the server described by cfg.
func OpenRedis(app component.Context, cfg config.RedisConfig, opts ...Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r, err := NewRedis(app, client, cfg.Prefix, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return r, nil
}

// CanHook implements component.Hookable.
func (r *Redis) CanHook() bool { return true }

// Exports implements component.Exporter.
func (r *Redis) Exports() map[string]func(args ...any) (any, error) {
	return exports(r)
}

func (r *Redis) key(index string) string { return r.prefix + index }

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, index string) (any, bool, error) {
	s, err := r.client.Get(ctx, r.key(index)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", index, err)
	}
	v, err := decode(s)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Create implements Cache.
func (r *Redis) Create(ctx context.Context, index string, data any, ttl time.Duration) (any, error) {
	value, err := produce(data)
	if err != nil {
		return nil, err
	}
	s, err := encode(value)
	if err != nil {
		return nil, err
	}

	if err := r.client.Set(ctx, r.key(index), s, r.opts.lifetime(ttl)).Err(); err != nil {
		return nil, fmt.Errorf("redis set %s: %w", index, err)
	}
	if err := r.Emit("create", index); err != nil {
		return nil, err
	}
	return decode(s)
}

// Remove implements Cache.
func (r *Redis) Remove(ctx context.Context, index string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(index)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %s: %w", index, err)
	}
	if n == 0 {
		return false, nil
	}
	if err := r.Emit("remove", index); err != nil {
		return true, err
	}
	return true, nil
}

// Parse implements Cache.
func (r *Redis) Parse(ctx context.Context, index string, data any, ttl time.Duration, force bool) (any, error) {
	return parse(ctx, r, index, data, ttl, force)
}

// Close closes the client when it owns a connection pool.
func (r *Redis) Close() error {
	err := r.Component.Close()
	if c, ok := r.client.(interface{ Close() error }); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ Cache = (*Redis)(nil)
