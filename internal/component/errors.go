package component

import (
	"errors"
	"fmt"
	"strconv"
)

// Component runtime errors.
var (
	// ErrInvalidCallback is returned when a listener cannot be invoked.
	ErrInvalidCallback = errors.New("invalid callback")

	// ErrUndefinedMethod is returned when a method resolves nowhere.
	ErrUndefinedMethod = errors.New("undefined method")

	// ErrUndefinedProperty is returned when a property is not declared by any hook unit.
	ErrUndefinedProperty = errors.New("undefined property")

	// ErrUnitLoad is returned when a hook unit cannot be loaded or initialized.
	ErrUnitLoad = errors.New("hook unit load failed")

	// ErrHookingDisabled is returned when units are registered on an instance that cannot be hooked.
	ErrHookingDisabled = errors.New("hooking disabled")

	// ErrInvalidEventName is returned when an event method name does not match [A-Za-z0-9_]+.
	ErrInvalidEventName = errors.New("invalid event name")

	// ErrNotSetup is returned when a component is used before Setup.
	ErrNotSetup = errors.New("component not set up")

	// ErrAlreadySetup is returned when Setup runs twice on the same component.
	ErrAlreadySetup = errors.New("component already set up")
)

// InvalidCallbackError describes a rejected or failed listener.
type InvalidCallbackError struct {
	Event  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidCallbackError) Error() string {
	return fmt.Sprintf("invalid callback for event %q: %s", e.Event, e.Reason)
}

// Is matches ErrInvalidCallback.
func (e *InvalidCallbackError) Is(target error) bool {
	return target == ErrInvalidCallback
}

// UndefinedMethodError names the type and method that failed to resolve.
type UndefinedMethodError struct {
	Type   string
	Method string
}

// Error implements the error interface.
func (e *UndefinedMethodError) Error() string {
	return fmt.Sprintf("call to undefined method %s::%s()", e.Type, e.Method)
}

// Is matches ErrUndefinedMethod.
func (e *UndefinedMethodError) Is(target error) bool {
	return target == ErrUndefinedMethod
}

// UndefinedPropertyError names the type and property that failed to resolve.
type UndefinedPropertyError struct {
	Type     string
	Property string
}

// Error implements the error interface.
func (e *UndefinedPropertyError) Error() string {
	return fmt.Sprintf("undefined property %s::$%s", e.Type, e.Property)
}

// Is matches ErrUndefinedProperty.
func (e *UndefinedPropertyError) Is(target error) bool {
	return target == ErrUndefinedProperty
}

// UnitLoadError wraps a failure to load, merge or initialize a hook unit.
type UnitLoadError struct {
	Component string
	Unit      string
	Err       error
}

// Error implements the error interface.
func (e *UnitLoadError) Error() string {
	return "loading hook unit " + e.Unit + " into " + e.Component + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *UnitLoadError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnitLoad.
func (e *UnitLoadError) Is(target error) bool {
	return target == ErrUnitLoad
}

// HandlerError wraps an error returned by an event listener.
type HandlerError struct {
	Event string
	Index int // position of the listener in registration order
	Err   error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "listener " + strconv.Itoa(e.Index) + " for event " + e.Event + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
