package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/chzapp/internal/component"
	"github.com/dshills/chzapp/internal/hook"
	hooklua "github.com/dshills/chzapp/internal/hook/lua"
)

type cacheContext struct {
	hooks  bool
	source hook.Source
}

func (c *cacheContext) HooksEnabled() bool                { return c.hooks }
func (c *cacheContext) HookSource() hook.Source           { return c.source }
func (c *cacheContext) StrictHooks() bool                 { return true }
func (c *cacheContext) Logger() *log.Logger               { return nil }
func (c *cacheContext) HookObserver() component.Observer { return nil }

// clock is a settable time source.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func newMemory(t *testing.T, opts ...Option) *Memory {
	t.Helper()
	m, err := NewMemory(nil, opts...)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	return m
}

func TestMemoryParse(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	calls := 0
	produce := func() any {
		calls++
		return calls
	}

	v, err := m.Parse(ctx, "k", produce, 0, false)
	if err != nil || v != 1 {
		t.Fatalf("Parse() = %v, %v, want 1", v, err)
	}
	v, err = m.Parse(ctx, "k", produce, 0, false)
	if err != nil || v != 1 {
		t.Errorf("second Parse() = %v, %v, want cached 1", v, err)
	}
	v, err = m.Parse(ctx, "k", produce, 0, true)
	if err != nil || v != 2 {
		t.Errorf("forced Parse() = %v, %v, want 2", v, err)
	}
	if calls != 2 {
		t.Errorf("producer called %d times, want 2", calls)
	}
}

func TestMemoryProducerError(t *testing.T) {
	m := newMemory(t)
	boom := errors.New("boom")
	_, err := m.Parse(context.Background(), "k", func() (any, error) { return nil, boom }, 0, false)
	if !errors.Is(err, boom) {
		t.Fatalf("Parse() error = %v, want boom", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after failed producer", m.Len())
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := newMemory(t, WithClock(clk.Now), WithDefaultTTL(time.Minute))

	tests := []struct {
		index string
		ttl   time.Duration
		after time.Duration
		hit   bool
	}{
		{"default live", 0, 30 * time.Second, true},
		{"default expired", 0, time.Minute, false},
		{"explicit live", time.Hour, 30 * time.Minute, true},
		{"explicit expired", time.Second, 2 * time.Second, false},
		{"forever", NoExpiry, 1000 * time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.index, func(t *testing.T) {
			clk.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			if _, err := m.Create(ctx, tt.index, "v", tt.ttl); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			clk.Advance(tt.after)
			_, ok, err := m.Get(ctx, tt.index)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if ok != tt.hit {
				t.Errorf("Get() hit = %v, want %v", ok, tt.hit)
			}
		})
	}
}

func TestMemoryRemoveAndPurge(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := newMemory(t, WithClock(clk.Now))

	_, _ = m.Create(ctx, "a", 1, time.Second)
	_, _ = m.Create(ctx, "b", 2, time.Second)
	_, _ = m.Create(ctx, "c", 3, NoExpiry)

	ok, err := m.Remove(ctx, "a")
	if err != nil || !ok {
		t.Errorf("Remove(a) = %v, %v", ok, err)
	}
	if ok, _ := m.Remove(ctx, "a"); ok {
		t.Error("second Remove(a) = true")
	}

	clk.Advance(time.Minute)
	if ok, _ := m.Remove(ctx, "b"); ok {
		t.Error("Remove(expired) = true")
	}

	_, _ = m.Create(ctx, "d", 4, time.Second)
	clk.Advance(time.Minute)
	if n := m.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMemoryEvents(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	var got []string
	record := func(name string) func(args ...any) error {
		return func(args ...any) error {
			got = append(got, name+":"+args[0].(string))
			return nil
		}
	}
	_ = m.OnBound("create", record("create"))
	_ = m.OnBound("remove", record("remove"))

	_, _ = m.Create(ctx, "k", 1, 0)
	_, _ = m.Remove(ctx, "k")
	_, _ = m.Remove(ctx, "k")

	want := []string{"create:k", "remove:k"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMemoryGoHook(t *testing.T) {
	unit := &hook.Unit{
		ID:         "cache_Memory_stats",
		Target:     "cache_Memory",
		Properties: map[string]any{"writes": 0},
		Events: map[string]hook.Handler{
			"create": func(self any, args ...any) error {
				target := self.(hook.Target)
				n, _ := target.Property("writes")
				return target.SetProperty("writes", n.(int)+1)
			},
		},
	}
	app := &cacheContext{hooks: true, source: hook.NewMemorySource(unit)}
	m, err := NewMemory(app)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}

	ctx := context.Background()
	_, _ = m.Create(ctx, "a", 1, 0)
	_, _ = m.Parse(ctx, "a", 2, 0, false)
	_, _ = m.Parse(ctx, "b", 2, 0, false)

	if n, _ := m.Property("writes"); n != 2 {
		t.Errorf("writes = %v, want 2", n)
	}
}

func TestMemoryLuaHook(t *testing.T) {
	dir := t.TempDir()
	code := `
return {
    methods = {
        remember = function(self, key, value)
            return self:Parse(key, value, 60)
        end,
        size = function(self)
            return self:Len()
        end,
    },
}`
	if err := os.WriteFile(filepath.Join(dir, "cache_Memory_lua.lua"), []byte(code), 0644); err != nil {
		t.Fatal(err)
	}

	src := hook.NewDirSource(dir, hooklua.NewDecoder().Option())
	m, err := NewMemory(&cacheContext{hooks: true, source: src})
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	defer m.Close()

	v, err := m.Call("remember", "k", "first")
	if err != nil || v != "first" {
		t.Fatalf("remember = %v, %v", v, err)
	}
	v, _ = m.Call("remember", "k", "second")
	if v != "first" {
		t.Errorf("remember = %v, want cached first", v)
	}
	if n, _ := m.Call("size"); n != int64(1) {
		t.Errorf("size = %v (%T), want 1", n, n)
	}
}

func TestExportArguments(t *testing.T) {
	m := newMemory(t)
	tests := []struct {
		name string
		args []any
	}{
		{"no index", nil},
		{"empty index", []any{""}},
		{"bad ttl", []any{"k", 1, "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Call("Create", tt.args...); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Create error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}
