// Package json implements the @lmb/json binding (C9): encode(v) →
// string, decode(s) → v, bridging value-codec Values through stdlib
// encoding/json — the same library the teacher's adapter/webhook uses for
// its own event payloads.
package json

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
)

// Loader returns the @lmb/json module loader.
func Loader() sandbox.ModuleLoader {
	return func(L *lua.LState) lua.LValue {
		mod := L.NewTable()
		mod.RawSetString("encode", L.NewFunction(luaEncode))
		mod.RawSetString("decode", L.NewFunction(luaDecode))
		return mod
	}
}

func luaEncode(L *lua.LState) int {
	v := L.Get(1)
	cv, err := sandbox.FromLua(v)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "json.encode", err))
		return 0
	}
	b, err := json.Marshal(codec.ToAny(cv))
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "json.encode", err))
		return 0
	}
	L.Push(lua.LString(string(b)))
	return 1
}

func luaDecode(L *lua.LState) int {
	s := L.CheckString(1)
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "json.decode", err))
		return 0
	}
	L.Push(sandbox.ToLua(L, codec.FromAny(v)))
	return 1
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
}
