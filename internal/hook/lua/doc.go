// Package lua decodes hook units written in Lua.
//
// A unit file is a chunk that returns a table:
//
//	return {
//	    properties = { hits = 0 },
//	    methods = {
//	        double = function(self, n) return n * 2 end,
//	    },
//	    events = {
//	        save = function(self, key) self.hits = self.hits + 1 end,
//	    },
//	    init = function(self)
//	        emit(self, "ready")
//	    end,
//	}
//
// Every unit runs in its own sandboxed gopher-lua state. The io, os, debug
// and package libraries are not opened, dofile and load are removed, and
// require only serves string, table and math. Each call from Go into Lua
// runs under the decoder's timeout.
//
// Inside Lua, self is a proxy for the component: reading a field returns a
// declared property or a callable method, assigning a field writes a declared
// property, and emit(self, event, ...) fires an event on the component.
//
// States are not safe for concurrent use. A unit belongs to the component it
// was merged into.
package lua
