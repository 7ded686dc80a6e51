package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/henry40408/lmb/internal/lmberr"
)

// tag discriminants per CONTRACT_VALUE.md. These are lmb's own tag set,
// carried as the first element of a two-element msgpack array so the
// wire format stays self-describing independent of msgpack's native
// type system (which cannot distinguish int-keyed from string-keyed
// maps the way CONTRACT_VALUE.md requires).
const (
	tagNil byte = iota
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagBin
	tagSeq
	tagMap
)

// Encode serializes v to lmb's tagged binary encoding. Encoding is total
// over representable Values; unrepresentable inputs never reach here
// because Value can only be constructed as one of the seven kinds.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeValue(enc, v, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeValue writes v to enc. visited tracks container identities
// (by pointer to the underlying slice/map header) already on the current
// encode path, so cyclic containers are rejected rather than recursing
// forever — Go Values built purely from this package's constructors can
// only cycle if a caller manually aliases a container into itself via a
// pointer-shared map/slice, which FromLua (sandbox package) guards against
// at construction time; this check is the codec's own backstop.
func encodeValue(enc *msgpack.Encoder, v Value, visited map[uintptr]struct{}) error {
	switch v.kind {
	case KindNil:
		if err := enc.EncodeArrayLen(1); err != nil {
			return err
		}
		return enc.EncodeUint8(tagNil)
	case KindBool:
		tag := tagFalse
		if v.b {
			tag = tagTrue
		}
		if err := enc.EncodeArrayLen(1); err != nil {
			return err
		}
		return enc.EncodeUint8(uint8(tag))
	case KindInt:
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeUint8(tagInt); err != nil {
			return err
		}
		return enc.EncodeInt64(v.i)
	case KindFloat:
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeUint8(tagFloat); err != nil {
			return err
		}
		return enc.EncodeFloat64(v.f)
	case KindString:
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeUint8(tagBin); err != nil {
			return err
		}
		return enc.EncodeBytes(v.s)
	case KindSeq:
		return encodeSeq(enc, v, visited)
	case KindMap:
		return encodeMap(enc, v, visited)
	default:
		return lmberr.New(lmberr.KindValueCodec, fmt.Sprintf("unrepresentable kind %d", v.kind))
	}
}

func encodeSeq(enc *msgpack.Encoder, v Value, visited map[uintptr]struct{}) error {
	id, guarded := identityOf(v.seq)
	if guarded {
		if _, dup := visited[id]; dup {
			return lmberr.New(lmberr.KindValueCodec, "cyclic sequence")
		}
		visited = withVisited(visited, id)
	}

	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeUint8(tagSeq); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(v.seq)); err != nil {
		return err
	}
	for _, item := range v.seq {
		if err := encodeValue(enc, item, visited); err != nil {
			return err
		}
	}
	return nil
}

func encodeMap(enc *msgpack.Encoder, v Value, visited map[uintptr]struct{}) error {
	id, guarded := identityOfMap(v.m)
	if guarded {
		if _, dup := visited[id]; dup {
			return lmberr.New(lmberr.KindValueCodec, "cyclic map")
		}
		visited = withVisited(visited, id)
	}

	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeUint8(tagMap); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(v.keys)); err != nil {
		return err
	}
	for _, k := range v.keys {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if k.IsInt {
			if err := enc.EncodeBool(true); err != nil {
				return err
			}
			if err := enc.EncodeInt64(k.Int); err != nil {
				return err
			}
		} else {
			if err := enc.EncodeBool(false); err != nil {
				return err
			}
			if err := enc.EncodeString(k.Str); err != nil {
				return err
			}
		}
		if err := encodeValue(enc, v.m[k], visited); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses lmb's tagged binary encoding back into a Value. It is the
// inverse of Encode: decode(encode(v)) == v for every representable v.
func Decode(data []byte) (Value, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	return decodeValue(dec)
}

func decodeValue(dec *msgpack.Decoder) (Value, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed value frame", err)
	}
	if n < 1 {
		return Nil, lmberr.New(lmberr.KindValueCodec, "empty value frame")
	}
	tagU, err := dec.DecodeUint64()
	if err != nil {
		return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed tag", err)
	}
	switch byte(tagU) {
	case tagNil:
		return Nil, nil
	case tagFalse:
		return Bool(false), nil
	case tagTrue:
		return Bool(true), nil
	case tagInt:
		i, err := dec.DecodeInt64()
		if err != nil {
			return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed int", err)
		}
		return Int(i), nil
	case tagFloat:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed float", err)
		}
		return Float(f), nil
	case tagBin:
		b, err := dec.DecodeBytes()
		if err != nil {
			return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed bin", err)
		}
		return Bytes(b), nil
	case tagSeq:
		return decodeSeq(dec)
	case tagMap:
		return decodeMap(dec)
	default:
		return Nil, lmberr.New(lmberr.KindValueCodec, fmt.Sprintf("unknown tag %d", tagU))
	}
}

func decodeSeq(dec *msgpack.Decoder) (Value, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed seq length", err)
	}
	items := make([]Value, 0, nonNegative(n))
	for i := 0; i < n; i++ {
		item, err := decodeValue(dec)
		if err != nil {
			return Nil, err
		}
		items = append(items, item)
	}
	return Seq(items), nil
}

func decodeMap(dec *msgpack.Decoder) (Value, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed map length", err)
	}
	out := NewMap()
	for i := 0; i < n; i++ {
		if _, err := dec.DecodeArrayLen(); err != nil {
			return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed map entry", err)
		}
		isInt, err := dec.DecodeBool()
		if err != nil {
			return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed map key tag", err)
		}
		var key MapKey
		if isInt {
			ik, err := dec.DecodeInt64()
			if err != nil {
				return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed int map key", err)
			}
			key = IntKey(ik)
		} else {
			sk, err := dec.DecodeString()
			if err != nil {
				return Nil, lmberr.Wrap(lmberr.KindValueCodec, "malformed string map key", err)
			}
			key = StrKey(sk)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return Nil, err
		}
		out.Set(key, val)
	}
	return out, nil
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
