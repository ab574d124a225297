package component

import (
	"io"
	"path"
	"reflect"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/chzapp/internal/hook"
)

// Context is the owning application as seen by its components.
type Context interface {
	// HooksEnabled is the application-wide hooking switch.
	HooksEnabled() bool

	// HookSource is where components discover their hook units. May be nil.
	HookSource() hook.Source

	// StrictHooks reports whether unit load failures abort construction.
	StrictHooks() bool

	// Logger is the application logger. May be nil.
	Logger() *log.Logger

	// HookObserver receives unit load outcomes. May be nil.
	HookObserver() Observer
}

// Named is implemented by components that choose their own type name.
// The name determines the discovery key.
type Named interface {
	ComponentName() string
}

// Initializer is implemented by components with construction-time setup.
// Init runs after hook discovery.
type Initializer interface {
	Init() error
}

// Option configures a component during Setup.
type Option func(*options)

type options struct {
	name      string
	source    hook.Source
	hasSource bool
	noHooks   bool
	strict    *bool
	observer  Observer
}

// WithName overrides the component's type name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithHookSource discovers units from src instead of the context's source.
func WithHookSource(src hook.Source) Option {
	return func(o *options) {
		o.source = src
		o.hasSource = true
	}
}

// WithoutHooks closes the gate for this instance regardless of its opt-in.
func WithoutHooks() Option {
	return func(o *options) {
		o.noHooks = true
	}
}

// WithStrict overrides the context's load failure policy.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = &strict
	}
}

// WithObserver overrides the context's hook observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// Component is embedded by value in every extensible type. Setup must run
// before any other method.
//
//	type Widget struct {
//		component.Component
//	}
//
//	func NewWidget(ctx component.Context) (*Widget, error) {
//		w := &Widget{}
//		return w, w.Setup(w, ctx)
//	}
//
// A Component is owned by a single goroutine.
type Component struct {
	self     any
	ctx      Context
	name     string
	id       string
	logger   *log.Logger
	hookable bool

	events   *Events
	resolver *Resolver
	registry *Registry
}

// Setup wires the component to its owning context and runs the construction
// sequence: event methods are bound, hook units are discovered if the gate
// allows it, then Init runs.
//
// self is the outer value embedding the Component.
func (c *Component) Setup(self any, ctx Context, opts ...Option) error {
	if c.events != nil {
		return ErrAlreadySetup
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c.self = self
	c.ctx = ctx
	c.id = uuid.NewString()
	c.name = o.name
	if c.name == "" {
		c.name = TypeName(self)
	}

	var base *log.Logger
	if ctx != nil {
		base = ctx.Logger()
	}
	if base == nil {
		base = log.New(io.Discard)
	}
	c.logger = base.With("component", c.name, "id", c.id)

	var compiled map[string]func(args ...any) (any, error)
	if ex, ok := self.(Exporter); ok {
		compiled = ex.Exports()
	}
	c.events = NewEvents(self)
	c.resolver = NewResolver(c.name, self, compiled)
	c.registry = NewRegistry(c.name, self, c.events, c.resolver)
	c.registry.SetLogger(c.logger)

	if ctx != nil {
		c.registry.SetStrict(ctx.StrictHooks())
		c.registry.SetObserver(ctx.HookObserver())
	}
	if o.strict != nil {
		c.registry.SetStrict(*o.strict)
	}
	if o.observer != nil {
		c.registry.SetObserver(o.observer)
	}

	if src, ok := self.(EventSource); ok {
		if err := BindEventMethods(c.events, src); err != nil {
			return err
		}
	}

	c.hookable = !o.noHooks && CanHook(ctx, self)
	if c.hookable {
		src := o.source
		if !o.hasSource {
			src = ctx.HookSource()
		}
		c.registry.SetSource(src)
		if err := c.registry.Discover(); err != nil {
			return err
		}
	}

	if in, ok := self.(Initializer); ok {
		if err := in.Init(); err != nil {
			return err
		}
	}
	return nil
}

// TypeName returns "pkg.Type" for v, dereferencing pointers.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n, ok := v.(Named); ok {
		return n.ComponentName()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return path.Base(t.PkgPath()) + "." + t.Name()
}

// Context returns the owning context.
func (c *Component) Context() Context { return c.ctx }

// ID returns the instance identifier.
func (c *Component) ID() string { return c.id }

// Name returns the component type name.
func (c *Component) Name() string { return c.name }

// Logger returns the component logger.
func (c *Component) Logger() *log.Logger {
	if c.logger == nil {
		return log.New(io.Discard)
	}
	return c.logger
}

// Hooked reports whether the capability gate was open at Setup.
func (c *Component) Hooked() bool { return c.hookable }

// Events returns the component's event bus.
func (c *Component) Events() *Events { return c.events }

// Resolver returns the component's method resolver.
func (c *Component) Resolver() *Resolver { return c.resolver }

// On registers an unbound listener.
func (c *Component) On(event string, h hook.Handler) error {
	if c.events == nil {
		return ErrNotSetup
	}
	return c.events.On(event, h)
}

// OnBound registers a bound listener.
func (c *Component) OnBound(event string, fn func(args ...any) error) error {
	if c.events == nil {
		return ErrNotSetup
	}
	return c.events.OnBound(event, fn)
}

// OnFunc registers an arbitrary Go function as a listener.
func (c *Component) OnFunc(event string, fn any) error {
	if c.events == nil {
		return ErrNotSetup
	}
	return c.events.OnFunc(event, fn)
}

// Off removes every listener for event.
func (c *Component) Off(event string) {
	if c.events != nil {
		c.events.Off(event)
	}
}

// Emit fires event on the component's bus.
func (c *Component) Emit(event string, args ...any) error {
	if c.events == nil {
		return ErrNotSetup
	}
	return c.events.Emit(event, args...)
}

// Call invokes a compiled or injected method.
func (c *Component) Call(name string, args ...any) (any, error) {
	if c.resolver == nil {
		return nil, ErrNotSetup
	}
	return c.resolver.Call(name, args...)
}

// CallHooked invokes name; force skips the compiled methods.
func (c *Component) CallHooked(name string, force bool, args ...any) (any, error) {
	if c.resolver == nil {
		return nil, ErrNotSetup
	}
	return c.resolver.CallHooked(name, force, args...)
}

// Property reads a hook-declared property.
func (c *Component) Property(name string) (any, error) {
	if c.resolver == nil {
		return nil, ErrNotSetup
	}
	return c.resolver.Get(name)
}

// SetProperty writes a hook-declared property.
func (c *Component) SetProperty(name string, value any) error {
	if c.resolver == nil {
		return ErrNotSetup
	}
	return c.resolver.Set(name, value)
}

// IsHookedMethod reports whether a loaded unit declared method name.
func (c *Component) IsHookedMethod(name string) bool {
	return c.resolver != nil && c.resolver.IsHookedMethod(name)
}

// HasMethod reports whether name resolves to a compiled or injected method.
func (c *Component) HasMethod(name string) bool {
	return c.resolver != nil && c.resolver.HasMethod(name)
}

// HasProperty reports whether a loaded unit declared property name.
func (c *Component) HasProperty(name string) bool {
	return c.resolver != nil && c.resolver.HasProperty(name)
}

// Discover re-scans the hook source. It does nothing when the gate is closed.
func (c *Component) Discover() error {
	if c.registry == nil {
		return ErrNotSetup
	}
	if !c.hookable {
		return nil
	}
	return c.registry.Discover()
}

// LoadUnit merges unit into the instance.
func (c *Component) LoadUnit(unit *hook.Unit) error {
	if c.registry == nil {
		return ErrNotSetup
	}
	if !c.hookable {
		return ErrHookingDisabled
	}
	return c.registry.Load(unit)
}

// SetHookSource replaces the discovery source. Call Discover to pick up its units.
func (c *Component) SetHookSource(src hook.Source) {
	if c.registry != nil {
		c.registry.SetSource(src)
	}
}

// HookSource returns the discovery source.
func (c *Component) HookSource() hook.Source {
	if c.registry == nil {
		return nil
	}
	return c.registry.Source()
}

// LoadedUnits returns the merged unit identifiers in load order.
func (c *Component) LoadedUnits() []string {
	if c.registry == nil {
		return nil
	}
	return c.registry.Loaded()
}

// Diagnostics returns unit load failures that were skipped.
func (c *Component) Diagnostics() []error {
	if c.registry == nil {
		return nil
	}
	return c.registry.Diagnostics()
}

// Close releases resources held by merged hook units.
func (c *Component) Close() error {
	if c.registry == nil {
		return nil
	}
	return c.registry.Close()
}

var _ hook.Target = (*Component)(nil)
