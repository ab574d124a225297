package lua

import "errors"

// Errors for Lua hook units.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past the state's timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNotTable is returned when a unit chunk does not return a table.
	ErrNotTable = errors.New("lua hook unit must return a table")

	// ErrNotFunction is returned when a methods, events or init entry is not a function.
	ErrNotFunction = errors.New("lua hook entry is not a function")
)
