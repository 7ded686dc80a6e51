package sandbox

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmberr"
)

// FromLua converts a Lua value into the value codec's representation.
// Functions, userdata, channels, and other live Lua objects are
// unrepresentable and return an lmberr.KindValueCodec error, per
// CONTRACT_VALUE.md's "unrepresentable" failure case. Cyclic tables are
// detected via a visited-set keyed by the table's pointer identity so
// FromLua itself never recurses forever, before the encoding cycle
// backstop in internal/codec ever runs.
func FromLua(v lua.LValue) (codec.Value, error) {
	return fromLua(v, nil)
}

func fromLua(v lua.LValue, visited map[*lua.LTable]struct{}) (codec.Value, error) {
	switch lv := v.(type) {
	case *lua.LNilType:
		return codec.Nil, nil
	case lua.LBool:
		return codec.Bool(bool(lv)), nil
	case lua.LNumber:
		f := float64(lv)
		if i := int64(f); float64(i) == f {
			return codec.Int(i), nil
		}
		return codec.Float(f), nil
	case lua.LString:
		return codec.String(string(lv)), nil
	case *lua.LTable:
		return tableFromLua(lv, visited)
	default:
		return codec.Nil, lmberr.New(lmberr.KindValueCodec, "unrepresentable Lua value: "+v.Type().String())
	}
}

func tableFromLua(t *lua.LTable, visited map[*lua.LTable]struct{}) (codec.Value, error) {
	if _, seen := visited[t]; seen {
		return codec.Nil, lmberr.New(lmberr.KindValueCodec, "cyclic table")
	}
	next := make(map[*lua.LTable]struct{}, len(visited)+1)
	for k := range visited {
		next[k] = struct{}{}
	}
	next[t] = struct{}{}

	out := codec.NewMap()
	var rangeErr error
	t.ForEach(func(k, val lua.LValue) {
		if rangeErr != nil {
			return
		}
		var key codec.MapKey
		switch kv := k.(type) {
		case lua.LNumber:
			if i := int64(kv); float64(i) == float64(kv) {
				key = codec.IntKey(i)
			} else {
				key = codec.StrKey(kv.String())
			}
		case lua.LString:
			key = codec.StrKey(string(kv))
		default:
			key = codec.StrKey(k.String())
		}
		cv, err := fromLua(val, next)
		if err != nil {
			rangeErr = err
			return
		}
		out.Set(key, cv)
	})
	if rangeErr != nil {
		return codec.Nil, rangeErr
	}
	if out.IsSequence() {
		items := make([]codec.Value, out.Len())
		for _, k := range out.Keys() {
			v, _ := out.Get(k)
			items[k.Int-1] = v
		}
		return codec.Seq(items), nil
	}
	return out, nil
}

// ToLua converts a value-codec Value into a Lua value bound to L.
func ToLua(L *lua.LState, v codec.Value) lua.LValue {
	switch v.Kind() {
	case codec.KindNil:
		return lua.LNil
	case codec.KindBool:
		return lua.LBool(v.AsBool())
	case codec.KindInt:
		return lua.LNumber(v.AsInt())
	case codec.KindFloat:
		return lua.LNumber(v.AsFloat())
	case codec.KindString:
		return lua.LString(v.AsString())
	case codec.KindSeq:
		t := L.NewTable()
		for i, item := range v.AsSeq() {
			t.RawSetInt(i+1, ToLua(L, item))
		}
		return t
	case codec.KindMap:
		t := L.NewTable()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			if k.IsInt {
				t.RawSetInt(int(k.Int), ToLua(L, val))
			} else {
				t.RawSetString(k.Str, ToLua(L, val))
			}
		}
		return t
	default:
		return lua.LNil
	}
}
