package lua

import (
	"fmt"
	"reflect"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/chzapp/internal/hook"
)

// Bridge converts values between Go and Lua and wraps components as proxies.
type Bridge struct {
	L     *lua.LState
	proxy *lua.LTable
}

func newBridge(L *lua.LState) *Bridge {
	b := &Bridge{L: L}
	b.proxy = L.NewTable()
	L.SetField(b.proxy, "__index", L.NewFunction(b.proxyIndex))
	L.SetField(b.proxy, "__newindex", L.NewFunction(b.proxyNewIndex))
	L.SetField(b.proxy, "__tostring", L.NewFunction(b.proxyString))
	L.SetField(b.proxy, "__metatable", lua.LString("component"))
	return b
}

// ToGoValue converts a Lua value to Go. Integral numbers become int64,
// others float64. Sequences become []any, other tables map[string]any.
// Proxies convert back to the component they wrap.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = b.toGo(t.RawGetInt(i), visited)
		}
		return out
	}

	out := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			key = k.String()
		}
		out[key] = b.toGo(v, visited)
	})
	return out
}

// ToLuaValue converts a Go value to Lua. Components become proxies.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, b.ToLuaValue(item))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, b.ToLuaValue(item))
		}
		return t
	case hook.Target:
		return b.Proxy(val)
	}
	return b.reflectToLua(v)
}

func (b *Bridge) reflectToLua(v any) lua.LValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return lua.LNumber(rv.Int())
	case reflect.Uint8, reflect.Uint16:
		return lua.LNumber(rv.Uint())
	case reflect.Pointer:
		if rv.IsNil() {
			return lua.LNil
		}
	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.ToLuaValue(rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := b.L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(b.ToLuaValue(iter.Key().Interface()), b.ToLuaValue(iter.Value().Interface()))
		}
		return t
	}
	ud := b.L.NewUserData()
	ud.Value = v
	return ud
}

// Proxy wraps target so Lua code can use it as self.
func (b *Bridge) Proxy(target hook.Target) *lua.LUserData {
	ud := b.L.NewUserData()
	ud.Value = target
	b.L.SetMetatable(ud, b.proxy)
	return ud
}

func (b *Bridge) checkTarget(L *lua.LState, n int) hook.Target {
	ud := L.CheckUserData(n)
	target, ok := ud.Value.(hook.Target)
	if !ok {
		L.ArgError(n, "component expected")
		return nil
	}
	return target
}

// proxyIndex resolves self.name: methods first, then declared properties.
func (b *Bridge) proxyIndex(L *lua.LState) int {
	target := b.checkTarget(L, 1)
	name := L.CheckString(2)

	if target.HasMethod(name) {
		L.Push(L.NewFunction(func(L *lua.LState) int {
			return b.callMethod(L, target, name)
		}))
		return 1
	}

	v, err := target.Property(name)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(b.ToLuaValue(v))
	return 1
}

// callMethod supports both self:name(...) and self.name(...).
func (b *Bridge) callMethod(L *lua.LState, target hook.Target, name string) int {
	first := 1
	if ud, ok := L.Get(1).(*lua.LUserData); ok && ud.Value == target {
		first = 2
	}

	args := make([]any, 0, L.GetTop())
	for i := first; i <= L.GetTop(); i++ {
		args = append(args, b.ToGoValue(L.Get(i)))
	}

	result, err := target.Call(name, args...)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(b.ToLuaValue(result))
	return 1
}

func (b *Bridge) proxyNewIndex(L *lua.LState) int {
	target := b.checkTarget(L, 1)
	name := L.CheckString(2)
	if err := target.SetProperty(name, b.ToGoValue(L.Get(3))); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (b *Bridge) proxyString(L *lua.LState) int {
	target := b.checkTarget(L, 1)
	L.Push(lua.LString(fmt.Sprintf("component<%T>", target)))
	return 1
}
