// Package controller dispatches named actions on hookable components.
//
// A controller embeds Base and exposes its actions through Exports. Action
// names end in an HTTP verb, "profile_GET" for example. Hook units may add
// new actions or replace compiled ones; a hooked action always wins.
package controller

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/chzapp/internal/component"
)

var (
	// ErrNotFound is returned when no action answers the name.
	ErrNotFound = errors.New("action not found")

	// ErrRestricted is returned when a restriction rejects the call.
	ErrRestricted = errors.New("action restricted")

	// ErrNoRenderer is returned by Render when the owner has no renderer.
	ErrNoRenderer = errors.New("no renderer available")
)

var (
	actionName = regexp.MustCompile(`_(GET|POST|PUT|PATCH|DELETE)$`)
	segment    = regexp.MustCompile(`(?i)^[a-z0-9_]+$`)
)

// Action handles a dispatched call.
type Action func(args ...any) (any, error)

// Restriction guards an action. Returning false rejects the call.
type Restriction func(args ...any) bool

// Renderer renders a named template.
type Renderer interface {
	Render(template string, data any) (string, error)
}

type pattern struct {
	re     *regexp.Regexp
	action string
}

// Base is embedded by controllers next to their Setup call.
type Base struct {
	component.Component

	custom       map[string]Action
	restrictions map[string][]Restriction
	patterns     []pattern
}

// CanHook implements component.Hookable.
func (b *Base) CanHook() bool { return true }

// AddAction registers an action under name. Registered actions take
// precedence over compiled ones.
func (b *Base) AddAction(name string, fn Action) {
	if fn == nil {
		return
	}
	if b.custom == nil {
		b.custom = make(map[string]Action)
	}
	b.custom[name] = fn
}

// Restrict adds a restriction to the action name.
func (b *Base) Restrict(name string, r Restriction) {
	if r == nil {
		return
	}
	if b.restrictions == nil {
		b.restrictions = make(map[string][]Restriction)
	}
	b.restrictions[name] = append(b.restrictions[name], r)
}

// RestrictAll adds r to every action except those in skip.
func (b *Base) RestrictAll(r Restriction, skip ...string) {
	for _, name := range b.Actions() {
		if contains(skip, name) {
			continue
		}
		b.Restrict(name, r)
	}
}

// AddPattern maps routes matching expr to action for ParseRoute.
func (b *Base) AddPattern(expr, action string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("route pattern %q: %w", expr, err)
	}
	b.patterns = append(b.patterns, pattern{re: re, action: action})
	return nil
}

// ParseRoute returns the action of the first pattern matching route, or
// route itself.
func (b *Base) ParseRoute(route string) string {
	for _, p := range b.patterns {
		if p.re.MatchString(route) {
			return p.action
		}
	}
	return route
}

// Actions lists the action names the controller answers, sorted.
func (b *Base) Actions() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if actionName.MatchString(name) && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if r := b.Resolver(); r != nil {
		for _, name := range r.CompiledMethods() {
			add(name)
		}
		for _, name := range r.HookedMethods() {
			add(name)
		}
	}
	for name := range b.custom {
		add(name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the action name. Restrictions run first; then a hooked
// action is preferred over a registered one, which is preferred over the
// compiled one.
func (b *Base) Dispatch(name string, args ...any) (any, error) {
	_, custom := b.custom[name]
	if !custom && !b.HasMethod(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	for _, r := range b.restrictions[name] {
		if !r(args...) {
			b.Logger().Debug("action restricted", "action", name)
			return nil, fmt.Errorf("%w: %s", ErrRestricted, name)
		}
	}

	if b.IsHookedMethod(name) {
		return b.CallHooked(name, true, args...)
	}
	if custom {
		return b.custom[name](args...)
	}

	v, err := b.Call(name, args...)
	var undefined *component.UndefinedMethodError
	if errors.As(err, &undefined) && undefined.Method == name {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, err
}

// Render renders template with the renderer of the owning application.
func (b *Base) Render(template string, data any) (string, error) {
	owner, ok := b.Context().(interface{ Renderer() (Renderer, error) })
	if !ok {
		return "", ErrNoRenderer
	}
	r, err := owner.Renderer()
	if err != nil {
		return "", err
	}
	return r.Render(template, data)
}

// ActionName derives an action from a route and request method. The first
// path segment names the controller and is dropped; the rest are joined
// with underscores. An empty action becomes "index".
//
//	ActionName("/account/profile/edit", "get") == "profile_edit_GET"
func ActionName(route, method string) string {
	var parts []string
	for _, s := range strings.Split(route, "/") {
		if s != "" && segment.MatchString(s) {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		parts = parts[1:]
	}
	action := strings.Join(parts, "_")
	if action == "" {
		action = "index"
	}
	return action + "_" + strings.ToUpper(method)
}

// HasKeys reports whether values holds every key.
func HasKeys(values map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := values[k]; !ok {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
