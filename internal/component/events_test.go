package component

import (
	"errors"
	"testing"
)

type counter struct {
	n int
}

func TestEmitUnregisteredIsNoop(t *testing.T) {
	e := NewEvents(nil)
	if err := e.Emit("nothing", 1, 2); err != nil {
		t.Errorf("Emit() error = %v", err)
	}
}

func TestEmitOrder(t *testing.T) {
	owner := &counter{}
	e := NewEvents(owner)

	var got []string
	_ = e.On("save", func(self any, args ...any) error {
		if self != owner {
			t.Errorf("self = %v, want owner", self)
		}
		got = append(got, "first:"+args[0].(string))
		return nil
	})
	_ = e.OnBound("save", func(args ...any) error {
		got = append(got, "second:"+args[0].(string))
		return nil
	})

	if err := e.Emit("save", "x"); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if len(got) != 2 || got[0] != "first:x" || got[1] != "second:x" {
		t.Errorf("calls = %v", got)
	}
}

func TestOff(t *testing.T) {
	e := NewEvents(nil)
	calls := 0
	for i := 0; i < 3; i++ {
		_ = e.OnBound("tick", func(args ...any) error {
			calls++
			return nil
		})
	}
	e.Off("tick")
	e.Off("never-registered")

	if err := e.Emit("tick"); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d after Off, want 0", calls)
	}
	if e.Count("tick") != 0 {
		t.Errorf("Count() = %d", e.Count("tick"))
	}
}

func TestOnRejectsNil(t *testing.T) {
	e := NewEvents(nil)

	if err := e.On("x", nil); !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("On(nil) error = %v", err)
	}
	if err := e.OnBound("x", nil); !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("OnBound(nil) error = %v", err)
	}
	if err := e.OnFunc("x", nil); !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("OnFunc(nil) error = %v", err)
	}
	if err := e.OnFunc("x", 42); !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("OnFunc(42) error = %v", err)
	}
	if err := e.OnFunc("x", func() int { return 1 }); !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("OnFunc(func() int) error = %v", err)
	}
}

func TestOnFunc(t *testing.T) {
	owner := &counter{}
	e := NewEvents(owner)

	if err := e.OnFunc("add", func(c *counter, n int) { c.n += n }); err != nil {
		t.Fatalf("OnFunc(owner) error = %v", err)
	}
	var last string
	if err := e.OnFunc("add", func(n int) error {
		last = "bound"
		return nil
	}); err != nil {
		t.Fatalf("OnFunc(bound) error = %v", err)
	}

	if err := e.Emit("add", 5); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if owner.n != 5 || last != "bound" {
		t.Errorf("owner.n = %d, last = %q", owner.n, last)
	}

	// float64 values convert to the declared numeric type.
	if err := e.Emit("add", float64(2)); err != nil {
		t.Fatalf("Emit(float64) error = %v", err)
	}
	if owner.n != 7 {
		t.Errorf("owner.n = %d, want 7", owner.n)
	}
}

func TestOnFuncArgumentMismatch(t *testing.T) {
	e := NewEvents(nil)
	_ = e.OnFunc("greet", func(name string) {})

	err := e.Emit("greet", 1)
	if !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("Emit(int) error = %v, want ErrInvalidCallback", err)
	}
	err = e.Emit("greet")
	if !errors.Is(err, ErrInvalidCallback) {
		t.Errorf("Emit() error = %v, want ErrInvalidCallback", err)
	}
}

func TestOnFuncVariadic(t *testing.T) {
	e := NewEvents(nil)
	var sum int
	_ = e.OnFunc("sum", func(prefix string, ns ...int) {
		for _, n := range ns {
			sum += n
		}
	})
	if err := e.Emit("sum", "p", 1, 2, 3); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if sum != 6 {
		t.Errorf("sum = %d", sum)
	}
}

func TestEmitStopsAtFirstError(t *testing.T) {
	e := NewEvents(nil)
	boom := errors.New("boom")
	third := false

	_ = e.OnBound("x", func(args ...any) error { return nil })
	_ = e.OnBound("x", func(args ...any) error { return boom })
	_ = e.OnBound("x", func(args ...any) error {
		third = true
		return nil
	})

	err := e.Emit("x")
	var herr *HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("Emit() error = %v, want *HandlerError", err)
	}
	if herr.Index != 1 || herr.Event != "x" || !errors.Is(err, boom) {
		t.Errorf("HandlerError = %+v", herr)
	}
	if third {
		t.Error("listener after the failing one ran")
	}
}

func TestEmitSnapshot(t *testing.T) {
	e := NewEvents(nil)
	calls := 0
	_ = e.OnBound("x", func(args ...any) error {
		calls++
		return e.OnBound("x", func(args ...any) error {
			calls++
			return nil
		})
	})

	_ = e.Emit("x")
	if calls != 1 {
		t.Errorf("calls = %d, listeners added during Emit must wait for the next one", calls)
	}
	if e.Count("x") != 2 {
		t.Errorf("Count() = %d", e.Count("x"))
	}
}

func TestEventsNames(t *testing.T) {
	e := NewEvents(nil)
	_ = e.OnBound("b", func(args ...any) error { return nil })
	_ = e.OnBound("a", func(args ...any) error { return nil })

	names := e.Events()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Events() = %v", names)
	}
}

type eventTable map[string]func(args ...any) error

func (t eventTable) EventMethods() map[string]func(args ...any) error { return t }

func TestBindEventMethods(t *testing.T) {
	e := NewEvents(nil)
	var got []string
	src := eventTable{
		"save": func(args ...any) error {
			got = append(got, "save")
			return nil
		},
		"init": func(args ...any) error {
			got = append(got, "init")
			return nil
		},
	}
	if err := BindEventMethods(e, src); err != nil {
		t.Fatalf("BindEventMethods() error = %v", err)
	}
	if e.Count("save") != 1 || e.Count("init") != 1 {
		t.Errorf("counts = %d, %d", e.Count("save"), e.Count("init"))
	}

	_ = e.Emit("init")
	if len(got) != 1 || got[0] != "init" {
		t.Errorf("got = %v", got)
	}

	if err := BindEventMethods(e, nil); err != nil {
		t.Errorf("BindEventMethods(nil) error = %v", err)
	}
}

func TestBindEventMethodsInvalidName(t *testing.T) {
	e := NewEvents(nil)
	src := eventTable{"bad-name": func(args ...any) error { return nil }}

	if err := BindEventMethods(e, src); !errors.Is(err, ErrInvalidEventName) {
		t.Errorf("BindEventMethods() error = %v, want ErrInvalidEventName", err)
	}
}

func TestValidEventName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"init", true},
		{"before_save2", true},
		{"", false},
		{"a.b", false},
		{"a b", false},
	}
	for _, tt := range tests {
		if got := ValidEventName(tt.name); got != tt.want {
			t.Errorf("ValidEventName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
