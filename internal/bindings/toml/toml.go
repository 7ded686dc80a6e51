// Package toml implements the @lmb/toml binding (C9): encode(v) →
// string, decode(s) → v, analogous to @lmb/json but over TOML's narrower
// type system (no top-level scalars or sequences — only tables).
package toml

import (
	"bytes"

	"github.com/BurntSushi/toml"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
)

// Loader returns the @lmb/toml module loader.
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
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "toml.encode", err))
		return 0
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(codec.ToAny(cv)); err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "toml.encode", err))
		return 0
	}
	L.Push(lua.LString(buf.String()))
	return 1
}

func luaDecode(L *lua.LState) int {
	s := L.CheckString(1)
	var v map[string]any
	if _, err := toml.Decode(s, &v); err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "toml.decode", err))
		return 0
	}
	L.Push(sandbox.ToLua(L, codec.FromAny(v)))
	return 1
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
}
