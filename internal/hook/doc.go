// Package hook defines hook definition units and the sources they are
// discovered from.
//
// A unit is an externally supplied bundle of extension data for one component
// type. It may carry:
//   - methods: injected methods, reachable through the component's resolver
//   - properties: injected properties, the only storage for names the Go type
//     does not declare
//   - events: listeners added to the component's event bus
//   - init: an initializer run once when the unit is merged
//
// Units are matched to a component by a key derived from the component's type
// name (see Key). A filesystem source selects every entry named
// <key>_<suffix>.<ext>:
//
//	hooks/
//	├── cache_Memory_stats.lua    # Lua unit (see package hook/lua)
//	├── cache_Memory_limits.toml  # manifest unit
//	└── session_Session_audit.yaml
//
// Manifest units declare literal properties and refer to Go functions that
// were registered in a Funcs table:
//
//	[properties]
//	maxEntries = 500
//
//	[methods]
//	trim = "cache.trim"
//
// Units can also be built in code and registered through a MemorySource.
package hook
