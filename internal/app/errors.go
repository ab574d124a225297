package app

import "errors"

// Application errors.
var (
	// ErrComponentNotAvailable indicates a collaborator was not configured.
	ErrComponentNotAvailable = errors.New("component not available")

	// ErrUnknownCacheDriver indicates the configured cache driver is not supported.
	ErrUnknownCacheDriver = errors.New("unknown cache driver")

	// ErrClosed indicates the application was closed.
	ErrClosed = errors.New("application closed")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
