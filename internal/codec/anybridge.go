package codec

import "fmt"

// ToAny converts a Value into a plain Go any tree (map[string]any,
// []any, and scalar types), for bridging to encoding/json, BurntSushi/toml,
// gopkg.in/yaml.v3, and PaesslerAG/jsonpath, none of which know about
// Value directly. Map keys render via MapKey.String(), so an integer key
// becomes "#N"; print()'s table formatting (sandbox.RenderPrintArg)
// renders integer keys as plain decimal instead.
func ToAny(v Value) any {
	switch v.Kind() {
	case KindNil:
		return nil
	case KindBool:
		return v.AsBool()
	case KindInt:
		return v.AsInt()
	case KindFloat:
		return v.AsFloat()
	case KindString:
		return v.AsString()
	case KindSeq:
		items := v.AsSeq()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToAny(item)
		}
		return out
	case KindMap:
		out := make(map[string]any, v.Len())
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out[k.String()] = ToAny(val)
		}
		return out
	default:
		return nil
	}
}

// FromAny converts a plain Go any tree (as produced by encoding/json,
// BurntSushi/toml, gopkg.in/yaml.v3 unmarshaling) into a Value. Integer
// keys re-enter as IntKey only when the source library itself used
// non-string map keys (map[any]any, as yaml.v3 produces); encoding/json
// and toml always key by string.
func FromAny(v any) Value {
	switch tv := v.(type) {
	case nil:
		return Nil
	case bool:
		return Bool(tv)
	case int:
		return Int(int64(tv))
	case int64:
		return Int(tv)
	case float64:
		if i := int64(tv); float64(i) == tv {
			return Int(i)
		}
		return Float(tv)
	case string:
		return String(tv)
	case []byte:
		return Bytes(tv)
	case []any:
		items := make([]Value, len(tv))
		for i, item := range tv {
			items[i] = FromAny(item)
		}
		return Seq(items)
	case map[string]any:
		m := NewMap()
		for k, item := range tv {
			m.Set(StrKey(k), FromAny(item))
		}
		return m
	case map[any]any:
		m := NewMap()
		for k, item := range tv {
			m.Set(anyToMapKey(k), FromAny(item))
		}
		return m
	default:
		return Nil
	}
}

func anyToMapKey(k any) MapKey {
	switch kv := k.(type) {
	case string:
		return StrKey(kv)
	case int:
		return IntKey(int64(kv))
	case int64:
		return IntKey(kv)
	default:
		return StrKey(fmt.Sprintf("%v", k))
	}
}
