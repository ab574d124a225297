package component

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dshills/chzapp/internal/hook"
)

// listener is a registered callback. Exactly one of the fields is set.
type listener struct {
	// unbound listeners receive the owner as their first argument.
	unbound hook.Handler

	// bound listeners already carry their receiver.
	bound func(args ...any) error
}

func (l listener) invoke(owner any, args []any) error {
	if l.bound != nil {
		return l.bound(args...)
	}
	return l.unbound(owner, args...)
}

// Events is a per-object event bus. Listeners fire synchronously in
// registration order.
//
// Events is not safe for concurrent use; it belongs to the object that owns it.
type Events struct {
	owner     any
	listeners map[string][]listener
}

// NewEvents creates an empty bus whose unbound listeners receive owner.
func NewEvents(owner any) *Events {
	return &Events{
		owner:     owner,
		listeners: make(map[string][]listener),
	}
}

// On registers h for event. h is called with the owner followed by the
// emitted arguments.
func (e *Events) On(event string, h hook.Handler) error {
	if h == nil {
		return &InvalidCallbackError{Event: event, Reason: "callback is nil"}
	}
	e.listeners[event] = append(e.listeners[event], listener{unbound: h})
	return nil
}

// OnBound registers fn for event. fn is called with the emitted arguments only.
func (e *Events) OnBound(event string, fn func(args ...any) error) error {
	if fn == nil {
		return &InvalidCallbackError{Event: event, Reason: "callback is nil"}
	}
	e.listeners[event] = append(e.listeners[event], listener{bound: fn})
	return nil
}

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
)

// OnFunc registers an arbitrary Go function for event.
//
// The function may return nothing or a single error. If its first parameter
// has a concrete type the owner is assignable to, the owner is passed there
// and the emitted arguments follow; otherwise only the emitted arguments are
// passed. Arguments that do not fit the signature fail the emission with an
// InvalidCallbackError.
func (e *Events) OnFunc(event string, fn any) error {
	switch f := fn.(type) {
	case nil:
		return &InvalidCallbackError{Event: event, Reason: "callback is nil"}
	case hook.Handler:
		return e.On(event, f)
	case func(self any, args ...any) error:
		return e.On(event, f)
	case func(args ...any) error:
		return e.OnBound(event, f)
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return &InvalidCallbackError{Event: event, Reason: fmt.Sprintf("%T is not a function", fn)}
	}
	t := v.Type()
	if t.NumOut() > 1 || (t.NumOut() == 1 && t.Out(0) != errorType) {
		return &InvalidCallbackError{Event: event, Reason: "callback must return nothing or an error"}
	}

	var prefix []reflect.Value
	if e.owner != nil && t.NumIn() > 0 && t.In(0) != anyType &&
		reflect.TypeOf(e.owner).AssignableTo(t.In(0)) {
		prefix = []reflect.Value{reflect.ValueOf(e.owner)}
	}

	e.listeners[event] = append(e.listeners[event], listener{
		bound: func(args ...any) error {
			return callReflect(event, v, prefix, args)
		},
	})
	return nil
}

// callReflect invokes fn with prefix followed by args, checking each argument
// against the signature.
func callReflect(event string, fn reflect.Value, prefix []reflect.Value, args []any) error {
	t := fn.Type()
	n := len(prefix) + len(args)

	if t.IsVariadic() {
		if n < t.NumIn()-1 {
			return &InvalidCallbackError{Event: event, Reason: fmt.Sprintf("want at least %d arguments, got %d", t.NumIn()-1, n)}
		}
	} else if n != t.NumIn() {
		return &InvalidCallbackError{Event: event, Reason: fmt.Sprintf("want %d arguments, got %d", t.NumIn(), n)}
	}

	in := make([]reflect.Value, 0, n)
	in = append(in, prefix...)
	for i, arg := range args {
		idx := len(prefix) + i
		var pt reflect.Type
		if t.IsVariadic() && idx >= t.NumIn()-1 {
			pt = t.In(t.NumIn() - 1).Elem()
		} else {
			pt = t.In(idx)
		}

		av, err := argValue(arg, pt)
		if err != nil {
			return &InvalidCallbackError{Event: event, Reason: fmt.Sprintf("argument %d: %v", i, err)}
		}
		in = append(in, av)
	}

	out := fn.Call(in)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func argValue(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", pt)
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(pt) {
		return av, nil
	}
	if isNumeric(av.Kind()) && isNumeric(pt.Kind()) {
		return av.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", av.Type(), pt)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Off removes every listener for event. It is a no-op when none are registered.
func (e *Events) Off(event string) {
	delete(e.listeners, event)
}

// Emit invokes every listener for event, in registration order. Emitting an
// event nobody listens to does nothing.
//
// The set of listeners is fixed when Emit starts. The first listener error
// stops the emission and is returned as a *HandlerError.
func (e *Events) Emit(event string, args ...any) error {
	list := e.listeners[event]
	if len(list) == 0 {
		return nil
	}

	snapshot := make([]listener, len(list))
	copy(snapshot, list)

	for i, l := range snapshot {
		if err := l.invoke(e.owner, args); err != nil {
			return &HandlerError{Event: event, Index: i, Err: err}
		}
	}
	return nil
}

// Count returns the number of listeners registered for event.
func (e *Events) Count(event string) int {
	return len(e.listeners[event])
}

// Events returns the names of events with at least one listener, sorted.
func (e *Events) Events() []string {
	names := make([]string, 0, len(e.listeners))
	for name, list := range e.listeners {
		if len(list) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// mark records the listener counts of events so rollback can drop anything
// registered after it.
func (e *Events) mark(events []string) map[string]int {
	marks := make(map[string]int, len(events))
	for _, name := range events {
		marks[name] = len(e.listeners[name])
	}
	return marks
}

func (e *Events) rollback(marks map[string]int) {
	for name, n := range marks {
		list := e.listeners[name]
		if len(list) <= n {
			continue
		}
		if n == 0 {
			delete(e.listeners, name)
			continue
		}
		e.listeners[name] = list[:n:n]
	}
}
