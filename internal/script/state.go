package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrStateClosed is returned when calling into a closed script.
var ErrStateClosed = errors.New("script state is closed")

// state wraps one Lua interpreter. An LState is single-threaded, so every
// call into it holds mu.
type state struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// newState creates a Lua state with only the base, table, string and math
// libraries, plus a plugbus module exposing log functions bound to logger.
func newState(logger *slog.Logger) *state {
	if logger == nil {
		logger = slog.Default()
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// The base library loads files and code from strings; scripts get neither.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"debug": logFunc(logger, slog.LevelDebug),
		"info":  logFunc(logger, slog.LevelInfo),
		"warn":  logFunc(logger, slog.LevelWarn),
		"error": logFunc(logger, slog.LevelError),
	})
	L.SetGlobal("plugbus", mod)

	return &state{L: L}
}

func logFunc(logger *slog.Logger, level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		var args []any
		if t, ok := L.Get(2).(*lua.LTable); ok {
			t.ForEach(func(k, v lua.LValue) {
				args = append(args, k.String(), fromLua(v))
			})
		}
		logger.Log(context.Background(), level, msg, args...)
		return 0
	}
}

func (s *state) doFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.L.DoFile(path)
}

// hasFunction reports whether the global name is a Lua function.
func (s *state) hasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.L.GetGlobal(name).Type() == lua.LTFunction
}

// call invokes the global function fn. build runs under the state lock and
// produces the arguments. The first return value is converted with fromLua.
func (s *state) call(ctx context.Context, fn string, build func(L *lua.LState) ([]lua.LValue, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStateClosed
	}

	f := s.L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return nil, fmt.Errorf("function %q not found", fn)
	}
	args, err := build(s.L)
	if err != nil {
		return nil, err
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	if err := s.L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, args...); err != nil {
		return nil, err
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	return fromLua(ret), nil
}

func (s *state) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.L.Close()
		s.closed = true
	}
}
