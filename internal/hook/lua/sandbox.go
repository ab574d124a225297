package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// removedGlobals load code from outside the unit.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
}

// allowedModules are the only names require accepts.
var allowedModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// installSandbox removes the loaders and replaces require with a whitelist.
func installSandbox(L *lua.LState) {
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
		L.SetField(pkg, "loadlib", lua.LNil)

		if loaded, ok := L.GetField(pkg, "loaded").(*lua.LTable); ok {
			var remove []string
			loaded.ForEach(func(k, _ lua.LValue) {
				if ks, ok := k.(lua.LString); ok && !allowedModules[string(ks)] && string(ks) != "_G" {
					remove = append(remove, string(ks))
				}
			})
			for _, key := range remove {
				loaded.RawSetString(key, lua.LNil)
			}
		}
	}

	original := L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !allowedModules[name] || original == lua.LNil {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}
