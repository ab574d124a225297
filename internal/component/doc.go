// Package component implements the extensible object lifecycle.
//
// A component embeds Component and calls Setup from its constructor. Setup
// binds the component's event methods, discovers hook units when both the
// application and the instance allow it, then runs Init.
//
// Hook units contribute injected methods reachable through Call and
// CallHooked, injected properties reachable through Property and SetProperty,
// and event listeners appended after the component's own.
//
// Compiled behavior is exposed through explicit tables:
//
//	func (w *Widget) Exports() map[string]func(args ...any) (any, error)
//	func (w *Widget) EventMethods() map[string]func(args ...any) error
//
// Components are not safe for concurrent use.
package component
