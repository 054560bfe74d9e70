package hive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Kind is the registry type of a parameter value. The numeric values match the
// Windows REG_* type codes.
type Kind uint32

const (
	KindNone         Kind = 0
	KindString       Kind = 1
	KindExpandString Kind = 2
	KindBinary       Kind = 3
	KindDWord        Kind = 4
	KindMultiString  Kind = 7
	KindQWord        Kind = 11
)

var kindNames = map[Kind]string{
	KindNone:         "none",
	KindString:       "string",
	KindExpandString: "expand",
	KindBinary:       "binary",
	KindDWord:        "dword",
	KindMultiString:  "multi",
	KindQWord:        "qword",
}

// String returns the short kind name used by the CLI and export files.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a short kind name back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: kind %q", ErrUnsupportedType, name)
}

// Value is a typed parameter payload. The zero Value is an empty KindNone value.
type Value struct {
	kind    Kind
	text    string
	number  uint64
	data    []byte
	strings []string
}

// NewString returns a KindString value.
func NewString(s string) Value { return Value{kind: KindString, text: s} }

// NewExpandString returns a KindExpandString value. Environment references are stored unexpanded.
func NewExpandString(s string) Value { return Value{kind: KindExpandString, text: s} }

// NewDWord returns a KindDWord value.
func NewDWord(n uint32) Value { return Value{kind: KindDWord, number: uint64(n)} }

// NewQWord returns a KindQWord value.
func NewQWord(n uint64) Value { return Value{kind: KindQWord, number: n} }

// NewBinary returns a KindBinary value holding a copy of b.
func NewBinary(b []byte) Value { return Value{kind: KindBinary, data: append([]byte{}, b...)} }

// NewMultiString returns a KindMultiString value holding a copy of list.
func NewMultiString(list []string) Value {
	return Value{kind: KindMultiString, strings: append([]string{}, list...)}
}

// NewNone returns a KindNone value carrying raw bytes.
func NewNone(b []byte) Value { return Value{kind: KindNone, data: append([]byte{}, b...)} }

// ValueOf converts a Go value to a Value using the registry's type inference:
// 32-bit integers become DWORDs, wider integers QWORDs, byte slices binary data
// and string slices multi-strings.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return NewString(x), nil
	case []string:
		return NewMultiString(x), nil
	case []byte:
		return NewBinary(x), nil
	case uint8:
		return NewDWord(uint32(x)), nil
	case uint16:
		return NewDWord(uint32(x)), nil
	case uint32:
		return NewDWord(x), nil
	case int8:
		return NewDWord(uint32(int32(x))), nil
	case int16:
		return NewDWord(uint32(int32(x))), nil
	case int32:
		return NewDWord(uint32(x)), nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return NewDWord(uint32(int32(x))), nil
		}
		return NewQWord(uint64(x)), nil
	case int64:
		return NewQWord(uint64(x)), nil
	case uint:
		return NewQWord(uint64(x)), nil
	case uint64:
		return NewQWord(x), nil
	case fmt.Stringer:
		return NewString(x.String()), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// Kind returns the value's registry type.
func (v Value) Kind() Kind { return v.kind }

// Text returns the payload of a String or ExpandString value.
func (v Value) Text() (string, bool) {
	if v.kind != KindString && v.kind != KindExpandString {
		return "", false
	}
	return v.text, true
}

// Uint returns the payload of a DWord or QWord value.
func (v Value) Uint() (uint64, bool) {
	if v.kind != KindDWord && v.kind != KindQWord {
		return 0, false
	}
	return v.number, true
}

// Int returns the signed payload of a DWord (as int32) or QWord (as int64) value.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindDWord:
		return int64(int32(uint32(v.number))), true
	case KindQWord:
		return int64(v.number), true
	default:
		return 0, false
	}
}

// Bytes returns a copy of the payload of a Binary or None value.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBinary && v.kind != KindNone {
		return nil, false
	}
	return append([]byte{}, v.data...), true
}

// Strings returns a copy of the payload of a MultiString value.
func (v Value) Strings() ([]string, bool) {
	if v.kind != KindMultiString {
		return nil, false
	}
	return append([]string{}, v.strings...), true
}

// Interface returns the payload as a plain Go value: string, uint32, uint64, []byte or []string.
func (v Value) Interface() any {
	switch v.kind {
	case KindString, KindExpandString:
		return v.text
	case KindDWord:
		return uint32(v.number)
	case KindQWord:
		return v.number
	case KindMultiString:
		return append([]string{}, v.strings...)
	default:
		return append([]byte{}, v.data...)
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString, KindExpandString:
		return v.text == o.text
	case KindDWord, KindQWord:
		return v.number == o.number
	case KindMultiString:
		return slices.Equal(v.strings, o.strings)
	default:
		return bytes.Equal(v.data, o.data)
	}
}

// String formats the payload for display.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindExpandString:
		return v.text
	case KindDWord, KindQWord:
		return fmt.Sprintf("%d", v.number)
	case KindMultiString:
		return strings.Join(v.strings, ", ")
	default:
		return fmt.Sprintf("%x", v.data)
	}
}

// Encode returns the byte representation used by durable backends.
func (v Value) Encode() []byte {
	switch v.kind {
	case KindString, KindExpandString:
		return []byte(v.text)
	case KindDWord:
		return binary.LittleEndian.AppendUint32(nil, uint32(v.number))
	case KindQWord:
		return binary.LittleEndian.AppendUint64(nil, v.number)
	case KindMultiString:
		buf := []byte{}
		for _, s := range v.strings {
			buf = append(buf, s...)
			buf = append(buf, 0)
		}
		return buf
	default:
		return append([]byte{}, v.data...)
	}
}

// Decode rebuilds a Value from its kind and Encode output.
func Decode(kind Kind, data []byte) (Value, error) {
	switch kind {
	case KindString:
		return NewString(string(data)), nil
	case KindExpandString:
		return NewExpandString(string(data)), nil
	case KindDWord:
		if len(data) != 4 {
			return Value{}, fmt.Errorf("hive: decode dword: want 4 bytes, got %d", len(data))
		}
		return NewDWord(binary.LittleEndian.Uint32(data)), nil
	case KindQWord:
		if len(data) != 8 {
			return Value{}, fmt.Errorf("hive: decode qword: want 8 bytes, got %d", len(data))
		}
		return NewQWord(binary.LittleEndian.Uint64(data)), nil
	case KindMultiString:
		if len(data) == 0 {
			return NewMultiString(nil), nil
		}
		trimmed := bytes.TrimSuffix(data, []byte{0})
		return NewMultiString(strings.Split(string(trimmed), "\x00")), nil
	case KindBinary:
		return NewBinary(data), nil
	case KindNone:
		return NewNone(data), nil
	default:
		return Value{}, fmt.Errorf("%w: kind %d", ErrUnsupportedType, uint32(kind))
	}
}
