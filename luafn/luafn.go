// Package luafn lets users script FHIRPath extension functions in Lua.
// A chunk evaluating to `function(input, ...)` is compiled at
// registration to validate it, compiled again in a fresh Lua state on
// every call, and registered through the registry's extension path, so built-in names
// stay protected. Collections map to Lua tables and scalar results map
// back to boxed values.
package luafn

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

// Register compiles a Lua chunk and installs it as an extension
// function with the given name and argument count. The chunk must
// evaluate to a function whose first parameter is the focus collection
// and whose remaining parameters are the (eagerly evaluated) call
// arguments.
func Register(reg *registry.Registry, name, chunk string, arity int) error {
	if !reg.CanRegister(name) {
		return fmt.Errorf("luafn: function %q is already registered", name)
	}
	// Compile once up front so registration fails on bad chunks.
	probe := lua.NewState()
	defer probe.Close()
	if err := probe.DoString("return " + chunk); err != nil {
		return fmt.Errorf("luafn: invalid chunk for %q: %w", name, err)
	}
	if probe.Get(-1).Type() != lua.LTFunction {
		return fmt.Errorf("luafn: chunk for %q must evaluate to a function", name)
	}

	args := make([]registry.ArgDescriptor, arity)
	for i := range args {
		args[i] = registry.ArgDescriptor{Name: fmt.Sprintf("arg%d", i+1)}
	}
	return reg.RegisterFunction(&registry.FunctionEntry{
		Name: name,
		Args: args,
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Each invocation runs in a fresh state for isolation.
			L := lua.NewState()
			defer L.Close()
			if err := L.DoString("return " + chunk); err != nil {
				return nil, errors.New(errors.CodeExtension, "luafn %s: %v", name, err)
			}
			fn, ok := L.Get(-1).(*lua.LFunction)
			if !ok {
				return nil, errors.New(errors.CodeExtension, "luafn %s: chunk is not a function", name)
			}
			L.Pop(1)

			callArgs := make([]lua.LValue, 0, len(inv.Args)+1)
			callArgs = append(callArgs, collectionToLua(L, inv.Input))
			for _, a := range inv.Args {
				callArgs = append(callArgs, collectionToLua(L, a.Value))
			}
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, callArgs...); err != nil {
				return nil, errors.New(errors.CodeExtension, "luafn %s: %v", name, err)
			}
			result := L.Get(-1)
			L.Pop(1)
			return luaToCollection(result), nil
		},
	})
}

// collectionToLua converts a collection to a Lua value: empty becomes
// nil, a singleton becomes the bare value, longer collections become
// an array table.
func collectionToLua(L *lua.LState, c types.Collection) lua.LValue {
	switch len(c) {
	case 0:
		return lua.LNil
	case 1:
		return valueToLua(L, c[0])
	default:
		table := L.NewTable()
		for _, v := range c {
			table.Append(valueToLua(L, v))
		}
		return table
	}
}

func valueToLua(L *lua.LState, v types.Value) lua.LValue {
	switch d := types.Unbox(v).(type) {
	case bool:
		return lua.LBool(d)
	case int64:
		return lua.LNumber(d)
	case float64:
		return lua.LNumber(d)
	case string:
		return lua.LString(d)
	case types.Quantity:
		table := L.NewTable()
		table.RawSetString("value", lua.LNumber(d.Value))
		table.RawSetString("unit", lua.LString(d.Unit))
		return table
	case map[string]interface{}:
		return jsonToLua(L, d)
	default:
		return lua.LString(v.String())
	}
}

func jsonToLua(L *lua.LState, data interface{}) lua.LValue {
	switch d := data.(type) {
	case map[string]interface{}:
		table := L.NewTable()
		for k, v := range d {
			table.RawSetString(k, jsonToLua(L, v))
		}
		return table
	case []interface{}:
		table := L.NewTable()
		for _, v := range d {
			table.Append(jsonToLua(L, v))
		}
		return table
	case string:
		return lua.LString(d)
	case float64:
		return lua.LNumber(d)
	case int64:
		return lua.LNumber(d)
	case bool:
		return lua.LBool(d)
	case nil:
		return lua.LNil
	default:
		return lua.LString(fmt.Sprintf("%v", d))
	}
}

// luaToCollection converts a Lua result back: nil is empty, an array
// table fans out into a collection, anything else boxes as a single
// value.
func luaToCollection(v lua.LValue) types.Collection {
	if v == lua.LNil {
		return types.EmptyCollection
	}
	if table, ok := v.(*lua.LTable); ok && table.Len() > 0 {
		var out types.Collection
		table.ForEach(func(_, item lua.LValue) {
			out = append(out, luaToValue(item))
		})
		return out
	}
	return types.Singleton(luaToValue(v))
}

func luaToValue(v lua.LValue) types.Value {
	switch d := v.(type) {
	case lua.LBool:
		return types.NewBoolean(bool(d))
	case lua.LNumber:
		f := float64(d)
		if f == float64(int64(f)) {
			return types.NewInteger(int64(f))
		}
		return types.NewDecimal(f)
	case lua.LString:
		return types.NewString(string(d))
	case *lua.LTable:
		obj := make(map[string]interface{})
		d.ForEach(func(k, item lua.LValue) {
			obj[k.String()] = luaRaw(item)
		})
		return types.NewObject(obj)
	default:
		return types.NewString(v.String())
	}
}

func luaRaw(v lua.LValue) interface{} {
	switch d := v.(type) {
	case lua.LBool:
		return bool(d)
	case lua.LNumber:
		return float64(d)
	case lua.LString:
		return string(d)
	case *lua.LTable:
		if d.Len() > 0 {
			var arr []interface{}
			d.ForEach(func(_, item lua.LValue) {
				arr = append(arr, luaRaw(item))
			})
			return arr
		}
		obj := make(map[string]interface{})
		d.ForEach(func(k, item lua.LValue) {
			obj[k.String()] = luaRaw(item)
		})
		return obj
	case nil:
		return nil
	default:
		return v.String()
	}
}
