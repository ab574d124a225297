package app

import "github.com/dshills/chzapp/internal/component"

// Built-in manifest functions.
const (
	// FuncLog is a handler that logs the event arguments at info level.
	FuncLog = "log"

	// FuncName is a method returning the instance's component name.
	FuncName = "name"
)

func (a *Application) registerBuiltins() {
	a.funcs.RegisterHandler(FuncLog, func(self any, args ...any) error {
		logger := a.logger
		if c, ok := self.(interface{ Name() string }); ok {
			logger = logger.With("component", c.Name())
		}
		logger.Info("hook event", "args", args)
		return nil
	})
	a.funcs.RegisterMethod(FuncName, func(self any, args ...any) (any, error) {
		if c, ok := self.(interface{ Name() string }); ok {
			return c.Name(), nil
		}
		return component.TypeName(self), nil
	})
}
