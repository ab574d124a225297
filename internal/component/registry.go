package component

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/dshills/chzapp/internal/hook"
)

// Observer is notified about hook unit outcomes.
type Observer interface {
	UnitLoaded(component, unit string)
	UnitFailed(component, unit string, err error)
}

// Registry discovers hook units for one instance and merges them into its
// event bus and resolver. Each unit identifier is merged at most once.
type Registry struct {
	name     string
	self     any
	events   *Events
	resolver *Resolver
	source   hook.Source
	strict   bool
	observer Observer
	logger   *log.Logger

	loaded      map[string]struct{}
	order       []string
	diagnostics []error
	closers     []io.Closer
}

// NewRegistry creates a registry that merges into events and resolver on
// behalf of self. name is the component type name the discovery key derives from.
func NewRegistry(name string, self any, events *Events, resolver *Resolver) *Registry {
	return &Registry{
		name:     name,
		self:     self,
		events:   events,
		resolver: resolver,
		loaded:   make(map[string]struct{}),
	}
}

// SetSource records where units are discovered from. nil disables discovery.
func (r *Registry) SetSource(src hook.Source) {
	r.source = src
}

// Source returns the current unit source.
func (r *Registry) Source() hook.Source {
	return r.source
}

// SetStrict switches between strict and permissive load failure handling.
func (r *Registry) SetStrict(strict bool) {
	r.strict = strict
}

// SetObserver sets the observer notified about load outcomes.
func (r *Registry) SetObserver(obs Observer) {
	r.observer = obs
}

// SetLogger sets the logger. nil silences the registry.
func (r *Registry) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Key returns the discovery key for the registry's type name.
func (r *Registry) Key() string {
	return hook.Key(r.name)
}

// Discover looks up units for the instance and merges every one not loaded yet,
// in source order. Running it again only picks up units that appeared since.
//
// In permissive mode failures are recorded in Diagnostics and skipped. In
// strict mode the first failure is returned.
func (r *Registry) Discover() error {
	if r.source == nil {
		return nil
	}

	refs, err := r.source.Lookup(r.Key())
	if err != nil {
		return r.fail("", fmt.Errorf("lookup %s: %w", r.Key(), err))
	}

	for _, ref := range refs {
		if r.IsLoaded(ref.ID) {
			continue
		}
		unit, err := ref.Load()
		if err != nil {
			if ferr := r.fail(ref.ID, err); ferr != nil {
				return ferr
			}
			continue
		}
		if unit != nil && unit.ID == "" {
			unit.ID = ref.ID
		}
		if err := r.Load(unit); err != nil {
			return err
		}
	}
	return nil
}

// Load merges unit into the instance. Units whose identifier has already been
// merged are skipped. Failures follow the registry's failure policy.
func (r *Registry) Load(unit *hook.Unit) error {
	if unit == nil {
		return r.fail("", hook.ErrNilUnit)
	}
	if unit.ID == "" {
		return r.fail("", fmt.Errorf("%w: missing id", hook.ErrInvalidUnit))
	}
	if r.IsLoaded(unit.ID) {
		return nil
	}
	if unit.Target != "" && hook.Key(unit.Target) != r.Key() {
		_ = unit.Close()
		return r.fail(unit.ID, fmt.Errorf("%w: unit targets %q, not %q", hook.ErrTargetMismatch, unit.Target, r.Key()))
	}

	if err := r.merge(unit); err != nil {
		_ = unit.Close()
		return r.fail(unit.ID, err)
	}

	r.loaded[unit.ID] = struct{}{}
	r.order = append(r.order, unit.ID)
	if unit.Closer != nil {
		r.closers = append(r.closers, unit.Closer)
	}

	if r.logger != nil {
		r.logger.Debug("hook unit loaded", "unit", unit.ID,
			"methods", len(unit.Methods), "properties", len(unit.Properties), "events", len(unit.Events))
	}
	if r.observer != nil {
		r.observer.UnitLoaded(r.name, unit.ID)
	}
	return nil
}

// merge injects unit and runs its init. On failure every table the unit
// touched is restored, so a failed unit leaves no trace on the instance.
func (r *Registry) merge(unit *hook.Unit) error {
	events := make([]string, 0, len(unit.Events))
	for name := range unit.Events {
		events = append(events, name)
	}
	sort.Strings(events)

	restore := r.resolver.inject(unit)
	marks := r.events.mark(events)
	undo := func() {
		r.events.rollback(marks)
		restore()
	}

	for _, name := range events {
		if err := r.events.On(name, unit.Events[name]); err != nil {
			undo()
			return err
		}
	}

	if unit.Init != nil {
		if err := unit.Init(r.self); err != nil {
			undo()
			return fmt.Errorf("init: %w", err)
		}
	}
	return nil
}

// fail applies the failure policy to err and returns what the caller should return.
func (r *Registry) fail(unit string, err error) error {
	lerr := &UnitLoadError{Component: r.name, Unit: unit, Err: err}
	if r.observer != nil {
		r.observer.UnitFailed(r.name, unit, err)
	}
	if r.strict {
		return lerr
	}
	r.diagnostics = append(r.diagnostics, lerr)
	if r.logger != nil {
		r.logger.Warn("hook unit skipped", "unit", unit, "err", err)
	}
	return nil
}

// IsLoaded reports whether the unit identifier has been merged.
func (r *Registry) IsLoaded(id string) bool {
	_, ok := r.loaded[id]
	return ok
}

// Loaded returns the merged unit identifiers in load order.
func (r *Registry) Loaded() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Diagnostics returns the failures recorded in permissive mode.
func (r *Registry) Diagnostics() []error {
	out := make([]error, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}

// Close releases resources held by merged units, in reverse load order.
// The first error is returned after every unit has been closed.
func (r *Registry) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}
