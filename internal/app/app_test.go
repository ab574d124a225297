package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/chzapp/internal/cache"
	"github.com/dshills/chzapp/internal/component"
	"github.com/dshills/chzapp/internal/config"
	"github.com/dshills/chzapp/internal/hook"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Hooks.Dir = t.TempDir()
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	a, err := New(Options{Config: cfg, Logger: log.New(&bytes.Buffer{})})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeHook(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hooks.Strict = true
	a := newApp(t, cfg)

	if !a.HooksEnabled() || !a.StrictHooks() {
		t.Error("hook settings not taken from config")
	}
	if a.HookSource() == nil || a.Units().Dir() != cfg.Hooks.Dir {
		t.Error("hook source not rooted at the hook dir")
	}
	if a.HookObserver() == nil {
		t.Error("HookObserver() = nil with metrics enabled")
	}

	exts := strings.Join(a.Units().Extensions(), " ")
	for _, ext := range []string{".toml", ".yaml", ".json", ".lua"} {
		if !strings.Contains(exts, ext) {
			t.Errorf("decoder for %s not registered (have %s)", ext, exts)
		}
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "memcached"

	_, err := New(Options{Config: cfg})
	var ierr *InitError
	if !errors.As(err, &ierr) || ierr.Component != "config" {
		t.Fatalf("New() error = %v, want config InitError", err)
	}
	if !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("New() error = %v, want ErrValidationFailed", err)
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	a := newApp(t, cfg)
	if a.HookObserver() != nil {
		t.Error("HookObserver() != nil with metrics disabled")
	}
}

func TestDuplicateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig(t)
	if _, err := New(Options{Config: cfg, Registry: reg}); err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	_, err := New(Options{Config: cfg, Registry: reg})
	var ierr *InitError
	if !errors.As(err, &ierr) || ierr.Component != "metrics" {
		t.Errorf("second New() error = %v, want metrics InitError", err)
	}
}

func TestLoggerFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t)
	cfg.Log.Level = "debug"
	a, err := New(Options{Config: cfg, LogOutput: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Logger().GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", a.Logger().GetLevel())
	}
	if !strings.Contains(buf.String(), "application ready") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestCacheFromConfig(t *testing.T) {
	a := newApp(t, testConfig(t))

	c, err := a.Cache()
	if err != nil {
		t.Fatalf("Cache() error = %v", err)
	}
	if _, ok := c.(*cache.Memory); !ok {
		t.Fatalf("Cache() = %T, want *cache.Memory", c)
	}
	again, _ := a.Cache()
	if again != c {
		t.Error("Cache() built a second instance")
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := a.Cache(); !errors.Is(err, ErrClosed) {
		t.Errorf("Cache() after Close error = %v", err)
	}
}

func TestCacheOverride(t *testing.T) {
	mem, err := cache.NewMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(Options{Config: testConfig(t), Cache: mem})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c, _ := a.Cache(); c != mem {
		t.Errorf("Cache() = %v, want the override", c)
	}
}

type fakeSchema struct{ installed bool }

func (f *fakeSchema) InstallSchema(ctx context.Context) error {
	f.installed = true
	return nil
}

func (f *fakeSchema) UninstallSchema(ctx context.Context) error { return nil }

type fakeMailer struct{}

func (fakeMailer) Send(ctx context.Context, msg Message) (string, error) {
	return "queued " + msg.Subject, nil
}

func TestCollaborators(t *testing.T) {
	bare := newApp(t, testConfig(t))
	if _, err := bare.Renderer(); !errors.Is(err, ErrComponentNotAvailable) {
		t.Errorf("Renderer() error = %v", err)
	}
	if _, err := bare.Mailer(); !errors.Is(err, ErrComponentNotAvailable) {
		t.Errorf("Mailer() error = %v", err)
	}
	if _, err := bare.SchemaManager(); !errors.Is(err, ErrComponentNotAvailable) {
		t.Errorf("SchemaManager() error = %v", err)
	}

	schema := &fakeSchema{}
	a, err := New(Options{Config: testConfig(t), SchemaManager: schema, Mailer: fakeMailer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sm, err := a.SchemaManager()
	if err != nil {
		t.Fatalf("SchemaManager() error = %v", err)
	}
	_ = sm.InstallSchema(context.Background())
	if !schema.installed {
		t.Error("schema manager not used")
	}
	m, _ := a.Mailer()
	if res, _ := m.Send(context.Background(), Message{Subject: "hi"}); res != "queued hi" {
		t.Errorf("Send() = %q", res)
	}
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, testConfig(t))

	s, err := a.Session("")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if s.Timeout() != 30*time.Minute {
		t.Errorf("Timeout() = %v, want config timeout", s.Timeout())
	}
	if err := s.Set(ctx, "user", "ana"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	resumed, err := a.Session(s.SessionID())
	if err != nil {
		t.Fatalf("Session(id) error = %v", err)
	}
	if v, _ := resumed.Value("user"); v != "ana" {
		t.Errorf("resumed Value(user) = %v", v)
	}
}

func TestHookMetrics(t *testing.T) {
	cfg := testConfig(t)
	writeHook(t, cfg.Hooks.Dir, "cache_Memory_a.toml", `
[properties]
hits = 0

[methods]
whoami = "name"

[events]
create = "log"
`)
	writeHook(t, cfg.Hooks.Dir, "cache_Memory_b.toml", `
[methods]
broken = "no.such.func"
`)
	a := newApp(t, cfg)

	c, err := a.Cache()
	if err != nil {
		t.Fatalf("Cache() error = %v", err)
	}
	mem := c.(*cache.Memory)

	if got, err := mem.Call("whoami"); err != nil || got != "cache.Memory" {
		t.Errorf("whoami = %v, %v", got, err)
	}
	if _, err := mem.Create(context.Background(), "k", 1, 0); err != nil {
		t.Errorf("Create() error = %v", err)
	}
	if n := len(mem.Diagnostics()); n != 1 {
		t.Errorf("Diagnostics() = %d, want 1", n)
	}

	if got := testutil.ToFloat64(a.metrics.loaded.WithLabelValues("cache.Memory")); got != 1 {
		t.Errorf("units loaded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(a.metrics.failed.WithLabelValues("cache.Memory")); got != 1 {
		t.Errorf("units failed = %v, want 1", got)
	}
}

func TestLuaHookThroughApp(t *testing.T) {
	cfg := testConfig(t)
	writeHook(t, cfg.Hooks.Dir, "cache_Memory_lua.lua", `
return {
    methods = {
        remember = function(self, key, value)
            return self:Parse(key, value, 60)
        end,
    },
}`)
	a := newApp(t, cfg)
	c, err := a.Cache()
	if err != nil {
		t.Fatalf("Cache() error = %v", err)
	}
	mem := c.(*cache.Memory)
	if v, err := mem.Call("remember", "k", "v"); err != nil || v != "v" {
		t.Errorf("remember = %v, %v", v, err)
	}
}

func TestWatchHooksDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hooks.Enabled = false
	a := newApp(t, cfg)
	err := a.WatchHooks(context.Background(), func(hook.Change) {})
	if !errors.Is(err, component.ErrHookingDisabled) {
		t.Errorf("WatchHooks() error = %v", err)
	}
}

func TestWatchHooks(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan hook.Change, 8)
	done := make(chan error, 1)
	go func() {
		done <- a.WatchHooks(ctx, func(c hook.Change) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for found := false; !found; {
		select {
		case c := <-changes:
			found = c.Matches("cache.Memory")
		case <-tick.C:
			writeHook(t, cfg.Hooks.Dir, "cache_Memory_new.toml", "[properties]\nx = 1\n")
		case <-deadline:
			t.Fatal("no change reported")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("WatchHooks() error = %v", err)
	}
}
