package ir

import "codeweave/internal/literal"

type InstrID int32
type BlockID int32

const (
	NoInstrID InstrID = -1
	NoBlockID BlockID = -1
)

// Type is the type of the value an instruction defines, spelled as the
// one-letter descriptor of its kind. References of any class are TypeRef.
type Type byte

const (
	TypeNone    Type = 0
	TypeVoid    Type = 'V'
	TypeBoolean Type = 'Z'
	TypeByte    Type = 'B'
	TypeChar    Type = 'C'
	TypeShort   Type = 'S'
	TypeInt     Type = 'I'
	TypeLong    Type = 'J'
	TypeFloat   Type = 'F'
	TypeDouble  Type = 'D'
	TypeRef     Type = 'L'
)

// TypeOf maps a type descriptor to the value type it produces.
func TypeOf(desc string) Type {
	if desc == "" {
		return TypeNone
	}
	switch desc[0] {
	case 'L', '[':
		return TypeRef
	case 'V', 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		if len(desc) == 1 {
			return Type(desc[0])
		}
	}
	return TypeNone
}

// TypeOfLiteral returns the value type of a constant holding a literal of kind k.
func TypeOfLiteral(k literal.Kind) Type {
	return Type(k.Descriptor())
}

// String returns the descriptor letter, or "-" for TypeNone.
func (t Type) String() string {
	if t == TypeNone {
		return "-"
	}
	return string(rune(t))
}

// DefinesValue reports whether an instruction of this type produces a value.
func (t Type) DefinesValue() bool {
	return t != TypeNone && t != TypeVoid
}
