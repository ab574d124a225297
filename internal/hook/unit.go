package hook

import (
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// Method is an injected method. self is the instance the unit was merged into.
type Method func(self any, args ...any) (any, error)

// Handler is an event listener that receives its owner explicitly.
type Handler func(self any, args ...any) error

// Initializer runs once when a unit is merged into an instance.
type Initializer func(self any) error

// Target is the view of a component that hook code works against.
type Target interface {
	// Property reads a hook-declared property.
	Property(name string) (any, error)

	// SetProperty writes a hook-declared property.
	SetProperty(name string, value any) error

	// Call invokes a compiled or injected method.
	Call(name string, args ...any) (any, error)

	// Emit fires an event on the component's bus.
	Emit(event string, args ...any) error

	// HasMethod reports whether name resolves to a compiled or injected method.
	HasMethod(name string) bool
}

// Unit is a hook definition unit.
type Unit struct {
	// ID identifies the unit (the file name for filesystem units).
	ID string

	// Target is the type key the unit applies to. Registries reject a unit
	// whose Target normalizes to a different key.
	Target string

	Methods    map[string]Method
	Properties map[string]any
	Events     map[string]Handler
	Init       Initializer

	// Closer releases resources held by the unit (a Lua state, for example).
	Closer io.Closer
}

// EventNames returns the unit's event names in sorted order.
func (u *Unit) EventNames() []string {
	names := make([]string, 0, len(u.Events))
	for name := range u.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodNames returns the unit's method names in sorted order.
func (u *Unit) MethodNames() []string {
	names := make([]string, 0, len(u.Methods))
	for name := range u.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertyNames returns the unit's property names in sorted order.
func (u *Unit) PropertyNames() []string {
	names := make([]string, 0, len(u.Properties))
	for name := range u.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clone returns a copy of u with its own tables. Functions and property
// values are shared.
func (u *Unit) clone() *Unit {
	c := *u
	if u.Methods != nil {
		c.Methods = make(map[string]Method, len(u.Methods))
		for k, v := range u.Methods {
			c.Methods[k] = v
		}
	}
	if u.Properties != nil {
		c.Properties = make(map[string]any, len(u.Properties))
		for k, v := range u.Properties {
			c.Properties[k] = v
		}
	}
	if u.Events != nil {
		c.Events = make(map[string]Handler, len(u.Events))
		for k, v := range u.Events {
			c.Events[k] = v
		}
	}
	return &c
}

// Close releases the unit's resources, if any.
func (u *Unit) Close() error {
	if u == nil || u.Closer == nil {
		return nil
	}
	return u.Closer.Close()
}

// Key derives the discovery key from a qualified type name.
// Namespace separators are replaced by underscores: "cache.Memory" -> "cache_Memory".
func Key(typeName string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '/', '\\', ':':
			return '_'
		}
		return r
	}, typeName)
}

// Match reports whether a file name selects key, i.e. has the form
// <key>_<suffix>.<ext> with a non-empty suffix and extension.
func Match(key, name string) bool {
	if key == "" {
		return false
	}
	prefix := key + "_"
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return false
	}
	suffix := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
	return suffix != ""
}
