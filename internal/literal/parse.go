package literal

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Parse builds a literal of kind k from its textual form.
// Integer kinds are range-checked against their width; chars accept either a
// single character or a decimal code unit.
func Parse(k Kind, text string) (Literal, error) {
	switch k {
	case KindBoolean:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("boolean literal %q: %w", text, err)
		}
		return Boolean{v}, nil
	case KindByte:
		v, err := strconv.ParseInt(text, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("byte literal %q: %w", text, err)
		}
		return Byte{int8(v)}, nil
	case KindChar:
		if r, size := utf8.DecodeRuneInString(text); size == len(text) && r != utf8.RuneError && r <= 0xFFFF && (r < '0' || r > '9') {
			return Char{uint16(r)}, nil
		}
		v, err := strconv.ParseUint(text, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("char literal %q: %w", text, err)
		}
		return Char{uint16(v)}, nil
	case KindShort:
		v, err := strconv.ParseInt(text, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("short literal %q: %w", text, err)
		}
		return Short{int16(v)}, nil
	case KindInteger:
		v, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("int literal %q: %w", text, err)
		}
		return Integer{int32(v)}, nil
	case KindLong:
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("long literal %q: %w", text, err)
		}
		return Long{v}, nil
	case KindFloat:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("float literal %q: %w", text, err)
		}
		return Float{float32(v)}, nil
	case KindDouble:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("double literal %q: %w", text, err)
		}
		return Double{v}, nil
	}
	return nil, fmt.Errorf("invalid literal kind: %d", k)
}
