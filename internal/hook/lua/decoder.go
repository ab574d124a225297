package lua

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/chzapp/internal/hook"
)

// Ext is the file extension Lua units use.
const Ext = ".lua"

// Decoder builds hook units from Lua chunks. It implements hook.Decoder.
type Decoder struct {
	timeout time.Duration
	logger  *log.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithCallTimeout sets the timeout applied to each call into a unit.
func WithCallTimeout(timeout time.Duration) DecoderOption {
	return func(d *Decoder) {
		d.timeout = timeout
	}
}

// WithPrintLogger routes print output from units to logger.
func WithPrintLogger(logger *log.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// NewDecoder creates a Lua unit decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Option returns the hook.DirOption that registers d for .lua files.
func (d *Decoder) Option() hook.DirOption {
	return hook.WithDecoder(Ext, d)
}

// Decode runs the chunk in a fresh state and converts the returned table.
// The unit owns the state; closing the unit closes it.
func (d *Decoder) Decode(id string, data []byte) (*hook.Unit, error) {
	s := NewState(WithName(id), WithTimeout(d.timeout), WithLogger(d.logger))

	unit, err := d.decode(s, id, string(data))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return unit, nil
}

func (d *Decoder) decode(s *State, id, code string) (*hook.Unit, error) {
	ret, err := s.Load(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hook.ErrInvalidUnit, err)
	}
	def, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotTable, ret.Type())
	}

	unit := &hook.Unit{
		ID:         id,
		Properties: make(map[string]any),
		Methods:    make(map[string]hook.Method),
		Events:     make(map[string]hook.Handler),
		Closer:     s,
	}

	if target, ok := def.RawGetString("target").(lua.LString); ok {
		unit.Target = string(target)
	}

	if props, ok := def.RawGetString("properties").(*lua.LTable); ok {
		props.ForEach(func(k, v lua.LValue) {
			unit.Properties[k.String()] = s.Bridge().ToGoValue(v)
		})
	}

	methods, err := functions(def, "methods")
	if err != nil {
		return nil, err
	}
	for name, fn := range methods {
		unit.Methods[name] = methodFunc(s, fn)
	}

	events, err := functions(def, "events")
	if err != nil {
		return nil, err
	}
	for name, fn := range events {
		unit.Events[name] = handlerFunc(s, fn)
	}

	switch fn := def.RawGetString("init").(type) {
	case *lua.LNilType:
	case *lua.LFunction:
		unit.Init = initFunc(s, fn)
	default:
		return nil, fmt.Errorf("%w: init is a %s", ErrNotFunction, fn.Type())
	}

	return unit, nil
}

// functions reads a table of name -> function from def[field].
func functions(def *lua.LTable, field string) (map[string]*lua.LFunction, error) {
	out := make(map[string]*lua.LFunction)
	tbl, ok := def.RawGetString(field).(*lua.LTable)
	if !ok {
		return out, nil
	}

	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		fn, ok := v.(*lua.LFunction)
		if !ok {
			err = fmt.Errorf("%w: %s.%s is a %s", ErrNotFunction, field, k.String(), v.Type())
			return
		}
		out[k.String()] = fn
	})
	return out, err
}

// selfValue converts the instance for use as the first argument.
func selfValue(s *State, self any) lua.LValue {
	if target, ok := self.(hook.Target); ok {
		return s.Bridge().Proxy(target)
	}
	return s.Bridge().ToLuaValue(self)
}

func callArgs(s *State, self any, args []any) []lua.LValue {
	values := make([]lua.LValue, 0, len(args)+1)
	values = append(values, selfValue(s, self))
	for _, arg := range args {
		values = append(values, s.Bridge().ToLuaValue(arg))
	}
	return values
}

func methodFunc(s *State, fn *lua.LFunction) hook.Method {
	return func(self any, args ...any) (any, error) {
		results, err := s.Call(fn, callArgs(s, self, args)...)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return s.Bridge().ToGoValue(results[0]), nil
	}
}

func handlerFunc(s *State, fn *lua.LFunction) hook.Handler {
	return func(self any, args ...any) error {
		_, err := s.Call(fn, callArgs(s, self, args)...)
		return err
	}
}

func initFunc(s *State, fn *lua.LFunction) hook.Initializer {
	return func(self any) error {
		_, err := s.Call(fn, selfValue(s, self))
		return err
	}
}
