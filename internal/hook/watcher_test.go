package hook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsNewUnit(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if w.Dir() != dir {
		t.Errorf("Dir() = %q", w.Dir())
	}

	if err := os.WriteFile(filepath.Join(dir, "Widget_late.toml"), []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-w.Changes():
			if c.Name != "Widget_late.toml" {
				continue
			}
			if !c.Matches("Widget") {
				t.Error("Change.Matches(Widget) = false")
			}
			if c.Matches("Gadget") {
				t.Error("Change.Matches(Gadget) = true")
			}
			return
		case <-timeout:
			t.Fatal("timed out waiting for change")
		}
	}
}

func TestWatcherMissingDir(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewWatcher() on missing dir should fail")
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("second Close() error = %v, want ErrWatcherClosed", err)
	}
}

func TestOpString(t *testing.T) {
	tests := map[Op]string{
		OpCreate: "create",
		OpWrite:  "write",
		OpRemove: "remove",
		Op(99):   "unknown",
	}
	for op, want := range tests {
		if got := op.String(); got != want {
			t.Errorf("Op(%d).String() = %q, want %q", op, got, want)
		}
	}
}
