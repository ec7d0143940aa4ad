package script

import (
	"encoding/json"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go payload into a Lua value. Structs go through their JSON
// encoding so scripts see the same field names as the HTTP API.
func toLua(L *lua.LState, v any) (lua.LValue, error) {
	if v == nil {
		return lua.LNil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return lua.LNil, fmt.Errorf("encode payload: %w", err)
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return lua.LNil, fmt.Errorf("decode payload: %w", err)
	}
	return plainToLua(L, plain), nil
}

func plainToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, plainToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, plainToLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// fromLua converts a Lua value returned by a handler into plain Go values:
// nil, bool, int64, float64, string, []any or map[string]any.
func fromLua(lv lua.LValue) any {
	return fromLuaVisited(lv, make(map[*lua.LTable]bool))
}

func fromLuaVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
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
		return tableToGo(v, visited)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if count == 0 {
		return []any{}
	}
	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = fromLuaVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = fromLuaVisited(v, visited)
	})
	return m
}

// tenantTable builds the tenant argument handed to script handlers.
func tenantTable(L *lua.LState, id, name string, components []string) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(id))
	t.RawSetString("name", lua.LString(name))

	sort.Strings(components)
	comps := L.NewTable()
	for i, c := range components {
		comps.RawSetInt(i+1, lua.LString(c))
	}
	t.RawSetString("components", comps)
	return t
}
