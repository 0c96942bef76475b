package filebroker

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

// Value kind constants.
const (
	KindNil ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBinary
	KindArray
	KindMap
)

func (k ValueKind) String() string {
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
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is a closed tagged union carried as user metadata on a file record.
// It travels end-to-end through the storage layer as opaque JSON text, so the
// backend never needs to understand its shape. The zero Value has KindNil and
// is not a valid metadata entry.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	bin  []byte
	arr  []Value
	obj  map[string]Value
}

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating-point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Binary returns a binary Value. The slice is used as-is, not copied.
func Binary(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{kind: KindBinary, bin: v}
}

// Array returns an ordered-list Value.
func Array(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindArray, arr: vs}
}

// Map returns a nested-map Value.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, obj: m}
}

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// BoolValue returns the boolean payload; second result is false if the kind
// does not match.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// IntValue returns the integer payload.
func (v Value) IntValue() (int64, bool) { return v.i, v.kind == KindInt }

// FloatValue returns the floating-point payload.
func (v Value) FloatValue() (float64, bool) { return v.f, v.kind == KindFloat }

// StringValue returns the string payload.
func (v Value) StringValue() (string, bool) { return v.s, v.kind == KindString }

// BinaryValue returns the binary payload.
func (v Value) BinaryValue() ([]byte, bool) { return v.bin, v.kind == KindBinary }

// ArrayValue returns the list payload.
func (v Value) ArrayValue() ([]Value, bool) { return v.arr, v.kind == KindArray }

// MapValue returns the nested-map payload.
func (v Value) MapValue() (map[string]Value, bool) { return v.obj, v.kind == KindMap }

// Equal reports structural equality, recursing into arrays and maps.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// JSON field names, one per variant. The wire form is a single-key object
// naming the variant, which keeps int/float/string/binary distinguishable
// after a round trip through the backend's flat string metadata.
const (
	jsonFieldBool   = "b"
	jsonFieldInt    = "i"
	jsonFieldFloat  = "flt"
	jsonFieldString = "str"
	jsonFieldBinary = "bin"
	jsonFieldArray  = "arr"
	jsonFieldMap    = "obj"
)

// MarshalJSON encodes v as a single-key object, e.g. {"i":42} or
// {"obj":{"k":{"str":"v"}}}. Binary payloads are base64-encoded.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindBool:
		buf.WriteString(`{"` + jsonFieldBool + `":`)
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		fmt.Fprintf(buf, `{"`+jsonFieldInt+`":%d`, v.i)
	case KindFloat:
		raw, err := json.Marshal(v.f)
		if err != nil {
			return fmt.Errorf("marshal float value: %w", err)
		}
		buf.WriteString(`{"` + jsonFieldFloat + `":`)
		buf.Write(raw)
	case KindString:
		raw, err := json.Marshal(v.s)
		if err != nil {
			return fmt.Errorf("marshal string value: %w", err)
		}
		buf.WriteString(`{"` + jsonFieldString + `":`)
		buf.Write(raw)
	case KindBinary:
		buf.WriteString(`{"` + jsonFieldBinary + `":"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(v.bin))
		buf.WriteByte('"')
	case KindArray:
		buf.WriteString(`{"` + jsonFieldArray + `":[`)
		for i, el := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := el.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteString(`{"` + jsonFieldMap + `":{`)
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			rawKey, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("marshal map key: %w", err)
			}
			buf.Write(rawKey)
			buf.WriteByte(':')
			if err := v.obj[k].appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot marshal value of kind %s", v.kind)
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON decodes the single-key object form produced by MarshalJSON.
// An object with zero or multiple keys, or an unknown variant name, fails.
func (v *Value) UnmarshalJSON(data []byte) error {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	if len(outer) != 1 {
		return fmt.Errorf("unmarshal value: expected single variant field, got %d", len(outer))
	}

	for field, raw := range outer {
		switch field {
		case jsonFieldBool:
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("unmarshal bool value: %w", err)
			}
			*v = Bool(b)
		case jsonFieldInt:
			var i int64
			if err := json.Unmarshal(raw, &i); err != nil {
				return fmt.Errorf("unmarshal int value: %w", err)
			}
			*v = Int(i)
		case jsonFieldFloat:
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return fmt.Errorf("unmarshal float value: %w", err)
			}
			*v = Float(f)
		case jsonFieldString:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("unmarshal string value: %w", err)
			}
			*v = String(s)
		case jsonFieldBinary:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("unmarshal binary value: %w", err)
			}
			bin, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return fmt.Errorf("unmarshal binary value: %w", err)
			}
			*v = Binary(bin)
		case jsonFieldArray:
			var elems []json.RawMessage
			if err := json.Unmarshal(raw, &elems); err != nil {
				return fmt.Errorf("unmarshal array value: %w", err)
			}
			arr := make([]Value, len(elems))
			for i, el := range elems {
				if err := arr[i].UnmarshalJSON(el); err != nil {
					return err
				}
			}
			*v = Array(arr...)
		case jsonFieldMap:
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				return fmt.Errorf("unmarshal map value: %w", err)
			}
			obj := make(map[string]Value, len(fields))
			for k, el := range fields {
				var mv Value
				if err := mv.UnmarshalJSON(el); err != nil {
					return err
				}
				obj[k] = mv
			}
			*v = Map(obj)
		default:
			return fmt.Errorf("unmarshal value: unknown variant field %q", field)
		}
	}
	return nil
}
