package component

import (
	"sort"

	"github.com/dshills/chzapp/internal/hook"
)

// Exporter is implemented by components that expose methods by name.
// The table is the component's compiled method set as seen by the resolver.
type Exporter interface {
	Exports() map[string]func(args ...any) (any, error)
}

// Resolver resolves member names the compiled type does not answer for.
// Methods are looked up in the compiled table first, then in the injected
// table. Properties exist only in the injected table.
//
// Property policy: a property must be declared by a hook unit before it can be
// read or written. Writing an undeclared name fails the same way reading it does.
type Resolver struct {
	typeName   string
	self       any
	compiled   map[string]func(args ...any) (any, error)
	methods    map[string]hook.Method
	properties map[string]any
}

// NewResolver creates a resolver for self. compiled may be nil.
func NewResolver(typeName string, self any, compiled map[string]func(args ...any) (any, error)) *Resolver {
	if compiled == nil {
		compiled = make(map[string]func(args ...any) (any, error))
	}
	return &Resolver{
		typeName:   typeName,
		self:       self,
		compiled:   compiled,
		methods:    make(map[string]hook.Method),
		properties: make(map[string]any),
	}
}

// Resolve returns a callable for name, compiled methods first.
func (r *Resolver) Resolve(name string) (func(args ...any) (any, error), bool) {
	if fn, ok := r.compiled[name]; ok {
		return fn, true
	}
	if m, ok := r.methods[name]; ok {
		return r.bind(m), true
	}
	return nil, false
}

func (r *Resolver) bind(m hook.Method) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return m(r.self, args...)
	}
}

// Call invokes name, compiled methods first.
func (r *Resolver) Call(name string, args ...any) (any, error) {
	return r.CallHooked(name, false, args...)
}

// CallHooked invokes name. Without force the compiled table is consulted
// first; with force only injected methods are considered.
func (r *Resolver) CallHooked(name string, force bool, args ...any) (any, error) {
	if !force {
		if fn, ok := r.compiled[name]; ok {
			return fn(args...)
		}
	}
	if m, ok := r.methods[name]; ok {
		return m(r.self, args...)
	}
	return nil, &UndefinedMethodError{Type: r.typeName, Method: name}
}

// Get returns an injected property.
func (r *Resolver) Get(name string) (any, error) {
	v, ok := r.properties[name]
	if !ok {
		return nil, &UndefinedPropertyError{Type: r.typeName, Property: name}
	}
	return v, nil
}

// Set updates an injected property that a hook unit has declared.
func (r *Resolver) Set(name string, value any) error {
	if _, ok := r.properties[name]; !ok {
		return &UndefinedPropertyError{Type: r.typeName, Property: name}
	}
	r.properties[name] = value
	return nil
}

// IsHookedMethod reports whether a loaded unit declared method name.
func (r *Resolver) IsHookedMethod(name string) bool {
	_, ok := r.methods[name]
	return ok
}

// HasMethod reports whether name resolves to a compiled or injected method.
func (r *Resolver) HasMethod(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// HasProperty reports whether a loaded unit declared property name.
func (r *Resolver) HasProperty(name string) bool {
	_, ok := r.properties[name]
	return ok
}

// HookedMethods returns the injected method names, sorted.
func (r *Resolver) HookedMethods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompiledMethods returns the compiled method names, sorted.
func (r *Resolver) CompiledMethods() []string {
	names := make([]string, 0, len(r.compiled))
	for name := range r.compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Properties returns a copy of the injected properties.
func (r *Resolver) Properties() map[string]any {
	out := make(map[string]any, len(r.properties))
	for k, v := range r.properties {
		out[k] = v
	}
	return out
}

// inject merges a unit's methods and properties, overwriting existing keys.
// restore puts back what the merge replaced.
func (r *Resolver) inject(u *hook.Unit) (restore func()) {
	prevMethods := make(map[string]hook.Method, len(u.Methods))
	prevProps := make(map[string]any, len(u.Properties))
	for name, m := range u.Methods {
		if m == nil {
			continue
		}
		if old, ok := r.methods[name]; ok {
			prevMethods[name] = old
		} else {
			prevMethods[name] = nil
		}
		r.methods[name] = m
	}
	for name, v := range u.Properties {
		if old, ok := r.properties[name]; ok {
			prevProps[name] = old
		} else {
			prevProps[name] = absent{}
		}
		r.properties[name] = v
	}

	return func() {
		for name, m := range prevMethods {
			if m == nil {
				delete(r.methods, name)
			} else {
				r.methods[name] = m
			}
		}
		for name, v := range prevProps {
			if _, ok := v.(absent); ok {
				delete(r.properties, name)
			} else {
				r.properties[name] = v
			}
		}
	}
}

// absent marks a property that did not exist before an inject.
type absent struct{}
