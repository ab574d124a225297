package hook

import "errors"

// Hook source errors.
var (
	// ErrNoDecoder is returned when no decoder is registered for a unit's extension.
	ErrNoDecoder = errors.New("no decoder for hook unit")

	// ErrUnknownFunc is returned when a manifest refers to an unregistered function.
	ErrUnknownFunc = errors.New("unknown hook function")

	// ErrInvalidUnit is returned when a unit's content cannot be interpreted.
	ErrInvalidUnit = errors.New("invalid hook unit")

	// ErrNilUnit is returned when a nil unit is registered.
	ErrNilUnit = errors.New("hook unit is nil")

	// ErrTargetMismatch is returned when a unit pins a type key other than
	// the one it is merged into.
	ErrTargetMismatch = errors.New("hook unit targets another type")

	// ErrSharedCloser is returned when a MemorySource is given a unit that
	// owns resources. Such units must be registered with AddFunc.
	ErrSharedCloser = errors.New("hook unit with a closer cannot be shared")

	// ErrInvalidSuffix is returned for a unit file suffix that is not a plain name.
	ErrInvalidSuffix = errors.New("invalid hook unit suffix")

	// ErrWatcherClosed is returned when operating on a closed watcher.
	ErrWatcherClosed = errors.New("hook watcher is closed")
)

// DecodeError describes a unit that could not be decoded.
type DecodeError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return "decoding hook unit " + e.ID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
