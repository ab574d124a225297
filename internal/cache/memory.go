package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/chzapp/internal/component"
)

type entry struct {
	value   any
	expires time.Time // zero: never
}

// Memory is an in-process cache. Values are stored as given.
type Memory struct {
	component.Component

	opts    options
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory creates an in-process cache owned by app.
func NewMemory(app component.Context, opts ...Option) (*Memory, error) {
	m := &Memory{
		opts:    defaultOptions(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(&m.opts)
	}
	if err := m.Setup(m, app, m.opts.component...); err != nil {
		return nil, err
	}
	return m, nil
}

// CanHook implements component.Hookable.
func (m *Memory) CanHook() bool { return true }

// Exports implements component.Exporter.
func (m *Memory) Exports() map[string]func(args ...any) (any, error) {
	table := exports(m)
	table["Len"] = func(args ...any) (any, error) { return m.Len(), nil }
	return table
}

// Get implements Cache.
func (m *Memory) Get(ctx context.Context, index string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[index]
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		delete(m.entries, index)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Create implements Cache.
func (m *Memory) Create(ctx context.Context, index string, data any, ttl time.Duration) (any, error) {
	value, err := produce(data)
	if err != nil {
		return nil, err
	}

	e := entry{value: value}
	if life := m.opts.lifetime(ttl); life > 0 {
		e.expires = m.opts.now().Add(life)
	}

	m.mu.Lock()
	m.entries[index] = e
	m.mu.Unlock()

	if err := m.Emit("create", index); err != nil {
		return nil, err
	}
	return value, nil
}

// Remove implements Cache.
func (m *Memory) Remove(ctx context.Context, index string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[index]
	delete(m.entries, index)
	m.mu.Unlock()

	if !ok || m.expired(e) {
		return false, nil
	}
	if err := m.Emit("remove", index); err != nil {
		return true, err
	}
	return true, nil
}

// Parse implements Cache.
func (m *Memory) Parse(ctx context.Context, index string, data any, ttl time.Duration, force bool) (any, error) {
	return parse(ctx, m, index, data, ttl, force)
}

// Purge drops expired entries and returns how many were dropped.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for index, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, index)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(e entry) bool {
	return !e.expires.IsZero() && !m.opts.now().Before(e.expires)
}

var _ Cache = (*Memory)(nil)
