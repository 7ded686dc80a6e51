// Package jsonpath implements the @lmb/json-path binding (C9):
// query(expr, v) → seq of matched nodes, Goessner-style ($, .name, [idx],
// [*], ..), over github.com/PaesslerAG/jsonpath.
package jsonpath

import (
	"github.com/PaesslerAG/jsonpath"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
)

// Loader returns the @lmb/json-path module loader.
func Loader() sandbox.ModuleLoader {
	return func(L *lua.LState) lua.LValue {
		mod := L.NewTable()
		mod.RawSetString("query", L.NewFunction(luaQuery))
		return mod
	}
}

func luaQuery(L *lua.LState) int {
	expr := L.CheckString(1)
	v := L.Get(2)

	cv, err := sandbox.FromLua(v)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "json-path.query", err))
		return 0
	}

	result, err := jsonpath.Get(expr, codec.ToAny(cv))
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "json-path.query "+expr, err))
		return 0
	}

	seq := asSeq(result)
	L.Push(sandbox.ToLua(L, codec.Seq(seq)))
	return 1
}

// asSeq normalizes jsonpath.Get's result into a sequence of matched
// nodes: queries like [*] or .. already return a []interface{}; a
// single-node match (e.g. $.name) is wrapped as a one-element sequence.
func asSeq(result any) []codec.Value {
	if items, ok := result.([]any); ok {
		out := make([]codec.Value, len(items))
		for i, item := range items {
			out[i] = codec.FromAny(item)
		}
		return out
	}
	return []codec.Value{codec.FromAny(result)}
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
}
