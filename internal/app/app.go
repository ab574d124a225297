// Package app provides the application that owns components: it carries the
// configuration, the logger, the hook source and the shared services
// components reach through their context.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/chzapp/internal/cache"
	"github.com/dshills/chzapp/internal/component"
	"github.com/dshills/chzapp/internal/config"
	"github.com/dshills/chzapp/internal/controller"
	"github.com/dshills/chzapp/internal/hook"
	hooklua "github.com/dshills/chzapp/internal/hook/lua"
	"github.com/dshills/chzapp/internal/session"
)

// SchemaManager installs and removes persistent schema.
type SchemaManager interface {
	InstallSchema(ctx context.Context) error
	UninstallSchema(ctx context.Context) error
}

// Message is a mail message.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers mail and returns a transport-specific result.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Options configures the application.
type Options struct {
	// Config is the loaded configuration. Defaults to config.Default().
	Config *config.Config

	// Logger overrides the logger built from the configuration.
	Logger *log.Logger

	// LogOutput is where the built logger writes. Defaults to os.Stderr.
	LogOutput io.Writer

	// Registry receives the application's metrics. A new registry is
	// created when nil.
	Registry *prometheus.Registry

	// Funcs is the table manifest units refer to. Built-in functions are
	// added to it.
	Funcs *hook.Funcs

	// Cache overrides the cache built from the configuration.
	Cache cache.Cache

	Renderer      controller.Renderer
	Mailer        Mailer
	SchemaManager SchemaManager
}

// Application is the owning context of every component.
type Application struct {
	mu sync.Mutex

	cfg      *config.Config
	logger   *log.Logger
	funcs    *hook.Funcs
	source   *hook.DirSource
	registry *prometheus.Registry
	metrics  *HookMetrics

	renderer controller.Renderer
	mailer   Mailer
	schema   SchemaManager

	cache  cache.Cache
	closed bool
}

// New creates an application from opts.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	a := &Application{
		cfg:      cfg,
		logger:   opts.Logger,
		funcs:    opts.Funcs,
		registry: opts.Registry,
		renderer: opts.Renderer,
		mailer:   opts.Mailer,
		schema:   opts.SchemaManager,
		cache:    opts.Cache,
	}
	if a.logger == nil {
		a.logger = NewLogger(opts.LogOutput, cfg.LogLevel())
	}
	if sm, ok := opts.Cache.(SchemaManager); ok && a.schema == nil {
		a.schema = sm
	}
	if a.funcs == nil {
		a.funcs = hook.NewFuncs()
	}
	a.registerBuiltins()

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	if cfg.Metrics.Enabled {
		m, err := NewHookMetrics(a.registry)
		if err != nil {
			return nil, &InitError{Component: "metrics", Err: err}
		}
		a.metrics = m
	}

	lua := hooklua.NewDecoder(
		hooklua.WithCallTimeout(cfg.Hooks.LuaTimeout.Duration),
		hooklua.WithPrintLogger(a.logger),
	)
	a.source = hook.NewDirSource(cfg.Hooks.Dir, hook.WithManifests(a.funcs), lua.Option())

	a.logger.Debug("application ready",
		"hooks", cfg.Hooks.Enabled,
		"hook_dir", cfg.Hooks.Dir,
		"cache", cfg.Cache.Driver)
	return a, nil
}

// HooksEnabled implements component.Context.
func (a *Application) HooksEnabled() bool { return a.cfg.Hooks.Enabled }

// HookSource implements component.Context.
func (a *Application) HookSource() hook.Source { return a.source }

// StrictHooks implements component.Context.
func (a *Application) StrictHooks() bool { return a.cfg.Hooks.Strict }

// Logger implements component.Context.
func (a *Application) Logger() *log.Logger { return a.logger }

// HookObserver implements component.Context.
func (a *Application) HookObserver() component.Observer {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// Config returns the application configuration.
func (a *Application) Config() *config.Config { return a.cfg }

// Funcs returns the manifest function table.
func (a *Application) Funcs() *hook.Funcs { return a.funcs }

// Units returns the directory hook source.
func (a *Application) Units() *hook.DirSource { return a.source }

// Registry returns the metrics registry.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Renderer returns the template renderer.
func (a *Application) Renderer() (controller.Renderer, error) {
	if a.renderer == nil {
		return nil, fmt.Errorf("%w: renderer", ErrComponentNotAvailable)
	}
	return a.renderer, nil
}

// Mailer returns the mail transport.
func (a *Application) Mailer() (Mailer, error) {
	if a.mailer == nil {
		return nil, fmt.Errorf("%w: mailer", ErrComponentNotAvailable)
	}
	return a.mailer, nil
}

// SchemaManager returns the schema service. Without one configured, an SQL
// cache serves as the schema manager for its own table.
func (a *Application) SchemaManager() (SchemaManager, error) {
	if a.schema != nil {
		return a.schema, nil
	}
	if a.cfg.Cache.Driver == config.DriverSQL {
		c, err := a.Cache()
		if err != nil {
			return nil, err
		}
		if sm, ok := c.(SchemaManager); ok {
			return sm, nil
		}
	}
	return nil, fmt.Errorf("%w: schema manager", ErrComponentNotAvailable)
}

// Cache returns the shared cache, creating it from the configuration on
// first use.
func (a *Application) Cache() (cache.Cache, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}
	if a.cache != nil {
		return a.cache, nil
	}

	c, err := a.openCache()
	if err != nil {
		return nil, &InitError{Component: "cache", Err: err}
	}
	a.cache = c
	return c, nil
}

func (a *Application) openCache() (cache.Cache, error) {
	cc := a.cfg.Cache
	opts := []cache.Option{cache.WithDefaultTTL(cc.DefaultTTL.Duration)}

	switch cc.Driver {
	case config.DriverMemory:
		return cache.NewMemory(a, opts...)
	case config.DriverRedis:
		return cache.OpenRedis(a, cc.Redis, opts...)
	case config.DriverSQL:
		return cache.OpenSQL(a, cc.SQL.Driver, cc.SQL.DSN, cc.SQL.Table, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCacheDriver, cc.Driver)
	}
}

// Session starts a session backed by the shared cache. A non-empty id
// resumes that session.
func (a *Application) Session(id string, opts ...session.Option) (*session.Session, error) {
	c, err := a.Cache()
	if err != nil {
		return nil, err
	}
	base := []session.Option{
		session.WithStore(c),
		session.WithTimeout(a.cfg.Session.Timeout.Duration),
	}
	if id != "" {
		base = append(base, session.WithID(id))
	}
	return session.New(a, append(base, opts...)...)
}

// WatchHooks reports hook unit changes to fn until ctx is done. fn runs on
// the calling goroutine.
func (a *Application) WatchHooks(ctx context.Context, fn func(hook.Change)) error {
	if !a.HooksEnabled() {
		return component.ErrHookingDisabled
	}
	w, err := hook.NewWatcher(a.cfg.Hooks.Dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", a.cfg.Hooks.Dir, err)
	}
	defer w.Close()

	a.logger.Info("watching hook units", "dir", a.cfg.Hooks.Dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			a.logger.Debug("hook unit changed", "file", change.Name, "op", change.Op)
			fn(change)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("hook watcher error", "err", err)
		}
	}
}

// Close releases the shared cache.
func (a *Application) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	c, ok := a.cache.(io.Closer)
	a.cache = nil
	if ok {
		return c.Close()
	}
	return nil
}

var _ component.Context = (*Application)(nil)
