// Package codec implements the value codec (C1): a bidirectional mapping
// between script values and a self-describing binary encoding used for
// store persistence and request/response transfer, per CONTRACT_VALUE.md.
package codec

import "fmt"

// Kind discriminates the representable value shapes. The zero Kind is
// KindNil so a zero-value Value is the null value, matching "a script
// that neither errors nor explicitly returns yields the null value".
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSeq
	KindMap
)

// MapKey is a tagged string-or-integer key. Integer keys encode distinctly
// from same-digit string keys: MapKey{IsInt: true, Int: 1} and
// MapKey{Str: "1"} are never equal and never collide in a Value map.
type MapKey struct {
	IsInt bool
	Int   int64
	Str   string
}

// IntKey builds an integer-keyed MapKey.
func IntKey(i int64) MapKey { return MapKey{IsInt: true, Int: i} }

// StrKey builds a string-keyed MapKey.
func StrKey(s string) MapKey { return MapKey{Str: s} }

func (k MapKey) String() string {
	if k.IsInt {
		return fmt.Sprintf("#%d", k.Int)
	}
	return k.Str
}

// Value is the scalar-or-container unit exchanged between scripts and
// hosts, and the unit persisted in the store. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    []byte
	seq  []Value
	m    map[MapKey]Value
	// keys preserves map insertion order so encode() is deterministic and
	// sequence-vs-map detection (dense 1..N integer keys) is stable.
	keys []MapKey
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Nil is the null value.
var Nil = Value{kind: KindNil}

// Bool constructs a bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int constructs an int64 value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float constructs a float64 value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String constructs a string(bytes) value.
func String(s string) Value { return Value{kind: KindString, s: []byte(s)} }

// Bytes constructs a string(bytes) value from a raw byte slice.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindString, s: cp}
}

// Seq constructs a sequence value. A nil or empty items slice yields an
// empty sequence, distinct from an empty map.
func Seq(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSeq, seq: cp}
}

// NewMap constructs an empty, order-tracking map value. Use Set to
// populate it; an empty NewMap() is distinct from Seq(nil).
func NewMap() Value {
	return Value{kind: KindMap, m: make(map[MapKey]Value)}
}

// Set assigns key=val on a KindMap value, preserving first-insertion
// order for deterministic re-encoding. Panics if v is not a map — callers
// within this package always check Kind first.
func (v *Value) Set(key MapKey, val Value) {
	if v.kind != KindMap {
		panic("codec: Set on non-map Value")
	}
	if _, exists := v.m[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
}

// Get looks up key on a KindMap value.
func (v Value) Get(key MapKey) (Value, bool) {
	if v.kind != KindMap {
		return Nil, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Keys returns a KindMap value's keys in insertion order.
func (v Value) Keys() []MapKey {
	if v.kind != KindMap {
		return nil
	}
	out := make([]MapKey, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of entries for KindSeq/KindMap, else 0.
func (v Value) Len() int {
	switch v.kind {
	case KindSeq:
		return len(v.seq)
	case KindMap:
		return len(v.keys)
	default:
		return 0
	}
}

// AsBool, AsInt, AsFloat, AsString, AsSeq are unchecked accessors; callers
// must check Kind first. They exist so other packages (sandbox, store,
// bindings) don't need to reach into codec internals.
func (v Value) AsBool() bool       { return v.b }
func (v Value) AsInt() int64       { return v.i }
func (v Value) AsFloat() float64   { return v.f }
func (v Value) AsString() string   { return string(v.s) }
func (v Value) AsBytes() []byte    { return v.s }
func (v Value) AsSeq() []Value     { return v.seq }

// IsSequence reports whether a KindMap value's keys form a dense 1..N
// integer range — the array-vs-map detection rule from CONTRACT_VALUE.md.
// KindSeq values are trivially sequences; other kinds are not.
func (v Value) IsSequence() bool {
	switch v.kind {
	case KindSeq:
		return true
	case KindMap:
		return isDenseRange(v.keys)
	default:
		return false
	}
}

func isDenseRange(keys []MapKey) bool {
	if len(keys) == 0 {
		return false
	}
	seen := make(map[int64]bool, len(keys))
	for _, k := range keys {
		if !k.IsInt || k.Int < 1 {
			return false
		}
		seen[k.Int] = true
	}
	for i := int64(1); i <= int64(len(keys)); i++ {
		if !seen[i] {
			return false
		}
	}
	return true
}

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}
