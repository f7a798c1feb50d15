package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies which variant a Value holds
type Kind uint8

const (
	// KindMissing is the zero Kind, returned by lookups on absent paths
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a JSON-like recursive tagged value.
// Numbers are always held as fixed-point decimals, never as float64.
// The zero Value is Missing.
type Value struct {
	kind Kind
	b    bool
	n    decimal.Decimal
	s    string
	a    []Value
	o    map[string]Value
}

// Missing is the value of an absent path
var Missing = Value{}

// ErrUnsupportedType is returned by FromInterface for Go types with no JSON equivalent
var ErrUnsupportedType = errors.New("unsupported type")

func NewNull() Value { return Value{kind: KindNull} }

func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

func NewNumber(d decimal.Decimal) Value { return Value{kind: KindNumber, n: d} }

func NewInt(i int64) Value { return Value{kind: KindNumber, n: decimal.NewFromInt(i)} }

func NewString(s string) Value { return Value{kind: KindString, s: s} }

// NewArray builds an array value. The slice is not copied.
func NewArray(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, a: items}
}

// NewObject builds an object value. The map is not copied.
func NewObject(fields map[string]Value) Value {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return Value{kind: KindObject, o: fields}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsMissing() bool { return v.kind == KindMissing }

// IsNull reports whether v is null or missing
func (v Value) IsNull() bool { return v.kind == KindNull || v.kind == KindMissing }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Number() (decimal.Decimal, bool) { return v.n, v.kind == KindNumber }

func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

func (v Value) Array() ([]Value, bool) { return v.a, v.kind == KindArray }

func (v Value) Object() (map[string]Value, bool) { return v.o, v.kind == KindObject }

// Numeric returns the number held by v, parsing numeric strings
func (v Value) Numeric() (decimal.Decimal, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// Truthy follows JsonLogic truthiness: null, missing, false, 0, "" and [] are falsy
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return !v.n.IsZero()
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.a) > 0
	case KindObject:
		return true
	default:
		return false
	}
}

// Keys returns the sorted keys of an object value
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.o))
	for k := range v.o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports structural equality. Numbers compare by value ("1.0" == "1").
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindMissing, KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n.Equal(other.n)
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.a) != len(other.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(other.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.o) != len(other.o) {
			return false
		}
		for k, fv := range v.o {
			ov, ok := other.o[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of v
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.a))
		for i, item := range v.a {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, a: items}
	case KindObject:
		fields := make(map[string]Value, len(v.o))
		for k, fv := range v.o {
			fields[k] = fv.Clone()
		}
		return Value{kind: KindObject, o: fields}
	default:
		return v
	}
}

// Interface converts v to plain Go values (numbers become json.Number)
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.n.String())
	case KindString:
		return v.s
	case KindArray:
		items := make([]interface{}, len(v.a))
		for i, item := range v.a {
			items[i] = item.Interface()
		}
		return items
	case KindObject:
		fields := make(map[string]interface{}, len(v.o))
		for k, fv := range v.o {
			fields[k] = fv.Interface()
		}
		return fields
	default:
		return nil
	}
}

// FromInterface converts decoded JSON (or equivalent Go values) into a Value
func FromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NewNull(), nil
	case Value:
		return t, nil
	case bool:
		return NewBool(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Missing, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return NewNumber(d), nil
	case decimal.Decimal:
		return NewNumber(t), nil
	case float64:
		return NewNumber(decimal.NewFromFloat(t)), nil
	case float32:
		return NewNumber(decimal.NewFromFloat32(t)), nil
	case int:
		return NewInt(int64(t)), nil
	case int8:
		return NewInt(int64(t)), nil
	case int16:
		return NewInt(int64(t)), nil
	case int32:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case uint:
		return NewNumber(decimal.NewFromUint64(uint64(t))), nil
	case uint8:
		return NewInt(int64(t)), nil
	case uint16:
		return NewInt(int64(t)), nil
	case uint32:
		return NewInt(int64(t)), nil
	case uint64:
		return NewNumber(decimal.NewFromUint64(t)), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = NewString(s)
		}
		return NewArray(items), nil
	case []Value:
		return NewArray(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			iv, err := FromInterface(item)
			if err != nil {
				return Missing, err
			}
			items[i] = iv
		}
		return NewArray(items), nil
	case map[string]Value:
		return NewObject(t), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			iv, err := FromInterface(item)
			if err != nil {
				return Missing, err
			}
			fields[k] = iv
		}
		return NewObject(fields), nil
	default:
		return Missing, fmt.Errorf("%w: %T", ErrUnsupportedType, x)
	}
}

// Parse decodes a JSON document without ever going through float64
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Missing, err
	}
	return FromInterface(raw)
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(s string) Value {
	v, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}

// MarshalJSON encodes v with sorted object keys. Missing encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindMissing, KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.n.String())
	case KindString:
		return encodeString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.a {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.o[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// encodeString writes s as a JSON string, leaving <, > and & unescaped
func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates each value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON decodes JSON into v using decimal numbers
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String returns the JSON text of v, or "<missing>"
func (v Value) String() string {
	if v.kind == KindMissing {
		return "<missing>"
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid %s>", v.kind)
	}
	return string(b)
}
