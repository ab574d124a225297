package component

import (
	"fmt"
	"regexp"
	"sort"
)

// EventSource is implemented by components that expose on_<event> methods.
// The table maps event names to the bound methods that handle them.
type EventSource interface {
	EventMethods() map[string]func(args ...any) error
}

var eventNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidEventName reports whether name can be used as an auto-bound event name.
func ValidEventName(name string) bool {
	return eventNamePattern.MatchString(name)
}

// BindEventMethods registers every method of src on events, in sorted event
// order. It runs once per instance, before hook discovery, so auto-bound
// methods always precede listeners added by hook units.
func BindEventMethods(events *Events, src EventSource) error {
	if src == nil {
		return nil
	}
	table := src.EventMethods()
	if len(table) == 0 {
		return nil
	}

	names := make([]string, 0, len(table))
	for name := range table {
		if !ValidEventName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidEventName, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := events.OnBound(name, table[name]); err != nil {
			return err
		}
	}
	return nil
}
