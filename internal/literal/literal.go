package literal

import (
	"fmt"
	"math"
	"strconv"
)

// Kind distinguishes literal kinds.
type Kind uint8

const (
	// KindInvalid is the zero Kind and never reported by a literal.
	KindInvalid Kind = iota
	// KindBoolean represents a boolean literal.
	KindBoolean
	// KindByte represents a signed 8-bit literal.
	KindByte
	// KindChar represents an unsigned 16-bit character literal.
	KindChar
	// KindShort represents a signed 16-bit literal.
	KindShort
	// KindInteger represents a signed 32-bit literal.
	KindInteger
	// KindLong represents a signed 64-bit literal.
	KindLong
	// KindFloat represents a 32-bit floating point literal.
	KindFloat
	// KindDouble represents a 64-bit floating point literal.
	KindDouble
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInteger: "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
}

var kindDescriptors = [...]byte{
	KindBoolean: 'Z',
	KindByte:    'B',
	KindChar:    'C',
	KindShort:   'S',
	KindInteger: 'I',
	KindLong:    'J',
	KindFloat:   'F',
	KindDouble:  'D',
}

// String returns the string representation of Kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Descriptor returns the one-letter type descriptor of the kind, or 0 for KindInvalid.
func (k Kind) Descriptor() byte {
	if int(k) < len(kindDescriptors) {
		return kindDescriptors[k]
	}
	return 0
}

// Wide reports whether values of the kind occupy two virtual registers.
func (k Kind) Wide() bool {
	return k == KindLong || k == KindDouble
}

// ParseKind converts a kind name or a one-letter descriptor to a Kind.
func ParseKind(s string) (Kind, error) {
	if len(s) == 1 {
		if k := KindOfDescriptor(s[0]); k != KindInvalid {
			return k, nil
		}
	}
	for k := KindBoolean; k <= KindDouble; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	switch s {
	case "bool":
		return KindBoolean, nil
	case "integer":
		return KindInteger, nil
	}
	return KindInvalid, fmt.Errorf("invalid literal kind: %q", s)
}

// KindOfDescriptor maps a primitive type descriptor to its Kind.
// Non-primitive descriptors and 'V' map to KindInvalid.
func KindOfDescriptor(c byte) Kind {
	for k := KindBoolean; k <= KindDouble; k++ {
		if kindDescriptors[k] == c {
			return k
		}
	}
	return KindInvalid
}

// Literal is an immutable, kind-tagged argument value.
type Literal interface {
	Kind() Kind
	String() string
	literal()
}

// Boolean is a boolean literal.
type Boolean struct{ v bool }

// Byte is a signed 8-bit literal.
type Byte struct{ v int8 }

// Char is an unsigned 16-bit character literal.
type Char struct{ v uint16 }

// Short is a signed 16-bit literal.
type Short struct{ v int16 }

// Integer is a signed 32-bit literal.
type Integer struct{ v int32 }

// Long is a signed 64-bit literal.
type Long struct{ v int64 }

// Float is a 32-bit floating point literal.
type Float struct{ v float32 }

// Double is a 64-bit floating point literal.
type Double struct{ v float64 }

func NewBoolean(v bool) Boolean { return Boolean{v} }
func (l Boolean) Value() bool { return l.v }
func (Boolean) Kind() Kind { return KindBoolean }
func (l Boolean) String() string { return strconv.FormatBool(l.v) }
func (Boolean) literal() {}

func NewByte(v int8) Byte { return Byte{v} }
func (l Byte) Value() int8 { return l.v }
func (Byte) Kind() Kind { return KindByte }
func (l Byte) String() string { return strconv.FormatInt(int64(l.v), 10) }
func (Byte) literal() {}

func NewChar(v uint16) Char { return Char{v} }
func (l Char) Value() uint16 { return l.v }
func (Char) Kind() Kind { return KindChar }
func (l Char) String() string { return strconv.QuoteRune(rune(l.v)) }
func (Char) literal() {}

func NewShort(v int16) Short { return Short{v} }
func (l Short) Value() int16 { return l.v }
func (Short) Kind() Kind { return KindShort }
func (l Short) String() string { return strconv.FormatInt(int64(l.v), 10) }
func (Short) literal() {}

func NewInteger(v int32) Integer { return Integer{v} }
func (l Integer) Value() int32 { return l.v }
func (Integer) Kind() Kind { return KindInteger }
func (l Integer) String() string { return strconv.FormatInt(int64(l.v), 10) }
func (Integer) literal() {}

func NewLong(v int64) Long { return Long{v} }
func (l Long) Value() int64 { return l.v }
func (Long) Kind() Kind { return KindLong }
func (l Long) String() string { return strconv.FormatInt(l.v, 10) + "L" }
func (Long) literal() {}

func NewFloat(v float32) Float { return Float{v} }
func (l Float) Value() float32 { return l.v }
func (Float) Kind() Kind { return KindFloat }
func (l Float) String() string { return strconv.FormatFloat(float64(l.v), 'g', -1, 32) + "f" }
func (Float) literal() {}

func NewDouble(v float64) Double { return Double{v} }
func (l Double) Value() float64 { return l.v }
func (Double) Kind() Kind { return KindDouble }
func (l Double) String() string { return strconv.FormatFloat(l.v, 'g', -1, 64) }
func (Double) literal() {}

// Bits returns the raw 64-bit payload of l as stored in an encoded constant slot.
// Floating point literals keep their IEEE-754 bit pattern.
func Bits(l Literal) uint64 {
	switch v := l.(type) {
	case Boolean:
		if v.v {
			return 1
		}
		return 0
	case Byte:
		return uint64(int64(v.v))
	case Char:
		return uint64(v.v)
	case Short:
		return uint64(int64(v.v))
	case Integer:
		return uint64(int64(v.v))
	case Long:
		return uint64(v.v)
	case Float:
		return uint64(math.Float32bits(v.v))
	case Double:
		return math.Float64bits(v.v)
	}
	return 0
}

// FromBits rebuilds a literal of kind k from the payload produced by Bits.
func FromBits(k Kind, bits uint64) (Literal, error) {
	switch k {
	case KindBoolean:
		return Boolean{bits != 0}, nil
	case KindByte:
		return Byte{int8(bits)}, nil
	case KindChar:
		return Char{uint16(bits)}, nil
	case KindShort:
		return Short{int16(bits)}, nil
	case KindInteger:
		return Integer{int32(bits)}, nil
	case KindLong:
		return Long{int64(bits)}, nil
	case KindFloat:
		return Float{math.Float32frombits(uint32(bits))}, nil
	case KindDouble:
		return Double{math.Float64frombits(bits)}, nil
	}
	return nil, fmt.Errorf("invalid literal kind: %d", k)
}
