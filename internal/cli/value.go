package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/jacentio/regtree/hive"
)

// parseValue builds a value of kind from command line arguments. Only multi
// takes more than one argument. Integers accept Go syntax (0x.., 0o.., 0b..)
// and negative numbers, stored in two's complement. Binary data is hex.
func parseValue(kind hive.Kind, args []string) (hive.Value, error) {
	if kind != hive.KindMultiString && len(args) != 1 {
		return hive.Value{}, fmt.Errorf("%s takes exactly one value, got %d", kind, len(args))
	}

	switch kind {
	case hive.KindString:
		return hive.NewString(args[0]), nil
	case hive.KindExpandString:
		return hive.NewExpandString(args[0]), nil
	case hive.KindDWord:
		n, err := parseUint(args[0], 32)
		if err != nil {
			return hive.Value{}, err
		}
		return hive.NewDWord(uint32(n)), nil
	case hive.KindQWord:
		n, err := parseUint(args[0], 64)
		if err != nil {
			return hive.Value{}, err
		}
		return hive.NewQWord(n), nil
	case hive.KindMultiString:
		return hive.NewMultiString(args), nil
	case hive.KindBinary, hive.KindNone:
		b, err := parseHex(args[0])
		if err != nil {
			return hive.Value{}, err
		}
		if kind == hive.KindNone {
			return hive.NewNone(b), nil
		}
		return hive.NewBinary(b), nil
	default:
		return hive.Value{}, fmt.Errorf("%w: %s", hive.ErrUnsupportedType, kind)
	}
}

func parseUint(s string, bits int) (uint64, error) {
	if n, err := strconv.ParseUint(s, 0, bits); err == nil {
		return n, nil
	}
	n, err := strconv.ParseInt(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a %d-bit integer", hive.ErrUnsupportedType, s, bits)
	}
	u := uint64(n)
	if bits < 64 {
		u &= 1<<bits - 1
	}
	return u, nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: binary data must be hex: %v", hive.ErrUnsupportedType, err)
	}
	return b, nil
}

// exportData converts a value to the plain form used in JSON and YAML output.
func exportData(v hive.Value) any {
	switch v.Kind() {
	case hive.KindString, hive.KindExpandString:
		s, _ := v.Text()
		return s
	case hive.KindDWord, hive.KindQWord:
		n, _ := v.Uint()
		return n
	case hive.KindMultiString:
		list, _ := v.Strings()
		return list
	default:
		b, _ := v.Bytes()
		return hex.EncodeToString(b)
	}
}

// importData is the inverse of exportData for decoded YAML.
func importData(kind hive.Kind, data any) (hive.Value, error) {
	switch kind {
	case hive.KindString, hive.KindExpandString:
		s, ok := data.(string)
		if !ok {
			return hive.Value{}, fmt.Errorf("%w: %s data must be a string, got %T", hive.ErrUnsupportedType, kind, data)
		}
		if kind == hive.KindExpandString {
			return hive.NewExpandString(s), nil
		}
		return hive.NewString(s), nil

	case hive.KindDWord, hive.KindQWord:
		bits := 64
		if kind == hive.KindDWord {
			bits = 32
		}
		n, err := toUint(data, bits)
		if err != nil {
			return hive.Value{}, err
		}
		if kind == hive.KindDWord {
			return hive.NewDWord(uint32(n)), nil
		}
		return hive.NewQWord(n), nil

	case hive.KindMultiString:
		switch list := data.(type) {
		case []string:
			return hive.NewMultiString(list), nil
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return hive.Value{}, fmt.Errorf("%w: multi entries must be strings, got %T", hive.ErrUnsupportedType, item)
				}
				out = append(out, s)
			}
			return hive.NewMultiString(out), nil
		case nil:
			return hive.NewMultiString(nil), nil
		default:
			return hive.Value{}, fmt.Errorf("%w: multi data must be a list, got %T", hive.ErrUnsupportedType, data)
		}

	case hive.KindBinary, hive.KindNone:
		s, ok := data.(string)
		if !ok && data != nil {
			return hive.Value{}, fmt.Errorf("%w: %s data must be a hex string, got %T", hive.ErrUnsupportedType, kind, data)
		}
		b, err := parseHex(s)
		if err != nil {
			return hive.Value{}, err
		}
		if kind == hive.KindNone {
			return hive.NewNone(b), nil
		}
		return hive.NewBinary(b), nil

	default:
		return hive.Value{}, fmt.Errorf("%w: %s", hive.ErrUnsupportedType, kind)
	}
}

func toUint(data any, bits int) (uint64, error) {
	var n uint64
	switch x := data.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", hive.ErrUnsupportedType, x)
		}
		n = uint64(x)
	case uint64:
		n = x
	case uint32:
		n = uint64(x)
	default:
		return 0, fmt.Errorf("%w: integer data expected, got %T", hive.ErrUnsupportedType, data)
	}
	if bits < 64 && n>>bits != 0 {
		return 0, fmt.Errorf("%w: %d does not fit in %d bits", hive.ErrUnsupportedType, n, bits)
	}
	return n, nil
}
