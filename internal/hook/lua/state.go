package lua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds a single call from Go into a unit.
const DefaultTimeout = 5 * time.Second

// State is a sandboxed Lua state owned by one hook unit.
//
// gopher-lua's LState is not goroutine-safe and State adds no locking: a unit
// method may call back into the component, which may call another method of
// the same unit on the same stack, so a mutex would deadlock. The owning
// component serializes access.
type State struct {
	L *lua.LState

	name    string
	timeout time.Duration
	logger  *log.Logger
	bridge  *Bridge

	depth  int
	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// WithLogger routes the unit's print calls to logger.
func WithLogger(logger *log.Logger) StateOption {
	return func(s *State) {
		s.logger = logger
	}
}

// WithName names the state in log output and errors.
func WithName(name string) StateOption {
	return func(s *State) {
		s.name = name
	}
}

// NewState creates a sandboxed state.
func NewState(opts ...StateOption) *State {
	s := &State{
		name:    "chunk",
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s.L)
	s.bridge = newBridge(s.L)
	s.installGlobals()

	return s
}

// openSafeLibraries opens only the libraries a unit may use.
// io, os and debug stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func (s *State) installGlobals() {
	s.L.SetGlobal("print", s.L.NewFunction(s.luaPrint))
	s.L.SetGlobal("emit", s.L.NewFunction(s.luaEmit))
}

// luaPrint logs its arguments at info level.
func (s *State) luaPrint(L *lua.LState) int {
	if s.logger == nil {
		return 0
	}
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	s.logger.Info(strings.Join(parts, "\t"), "unit", s.name)
	return 0
}

// luaEmit implements emit(self, event, ...).
func (s *State) luaEmit(L *lua.LState) int {
	target := s.bridge.checkTarget(L, 1)
	event := L.CheckString(2)

	args := make([]any, 0, L.GetTop()-2)
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, s.bridge.ToGoValue(L.Get(i)))
	}
	if err := target.Emit(event, args...); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// Bridge returns the state's value bridge.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// Name returns the state's name.
func (s *State) Name() string {
	return s.name
}

// Load runs code and returns the value of its return statement.
func (s *State) Load(code string) (lua.LValue, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn, err := s.L.Load(strings.NewReader(code), s.name)
	if err != nil {
		return nil, err
	}
	results, err := s.Call(fn)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return lua.LNil, nil
	}
	return results[0], nil
}

// Call calls fn with args. The outermost call on the state runs under the
// state's timeout; nested calls share it.
func (s *State) Call(fn lua.LValue, args ...lua.LValue) (results []lua.LValue, err error) {
	if s.closed {
		return nil, ErrStateClosed
	}

	if s.depth == 0 && s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		s.L.SetContext(ctx)
		defer func() {
			s.L.RemoveContext()
			cancel()
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%s: %w", s.name, ErrExecutionTimeout)
			}
		}()
	}

	s.depth++
	defer func() { s.depth-- }()

	stackTop := s.L.GetTop()
	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lua panic: %v", r)
			}
		}()
		err = s.L.PCall(len(args), lua.MultRet, nil)
	}()
	if err != nil {
		s.L.SetTop(stackTop)
		return nil, err
	}

	n := s.L.GetTop() - stackTop
	results = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(n)
	return results, nil
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	return s.closed
}

// Close releases the Lua state. Closing twice is a no-op.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
