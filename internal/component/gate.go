package component

// Hookable is implemented by components that opt in to hook discovery.
// Components that do not implement it are never hooked.
type Hookable interface {
	CanHook() bool
}

// CanHook decides whether hook discovery may run for self. Both the
// application-wide switch and the instance's own opt-in must allow it; the
// application switch is consulted first.
func CanHook(ctx Context, self any) bool {
	if ctx == nil || !ctx.HooksEnabled() {
		return false
	}
	h, ok := self.(Hookable)
	return ok && h.CanHook()
}
