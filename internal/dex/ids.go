package dex

type StringIdx int32
type TypeIdx int32
type ProtoIdx int32
type FieldIdx int32
type MethodIdx int32
type ClassDefIdx int32

// Sentinels returned by lookups that find nothing. They are distinct from
// every valid index, including 0.
const (
	NoStringIdx   StringIdx   = -1
	NoTypeIdx     TypeIdx     = -1
	NoProtoIdx    ProtoIdx    = -1
	NoFieldIdx    FieldIdx    = -1
	NoMethodIdx   MethodIdx   = -1
	NoClassDefIdx ClassDefIdx = -1
)

// Access flags stored on class definitions and encoded methods.
const (
	AccPublic      uint32 = 0x0001
	AccPrivate     uint32 = 0x0002
	AccProtected   uint32 = 0x0004
	AccStatic      uint32 = 0x0008
	AccFinal       uint32 = 0x0010
	AccNative      uint32 = 0x0100
	AccInterface   uint32 = 0x0200
	AccAbstract    uint32 = 0x0400
	AccConstructor uint32 = 0x10000
)

// TypeID names a type by its descriptor string.
type TypeID struct {
	Descriptor StringIdx `msgpack:"d" cbor:"1,keyasint"`
}

// ProtoID is a method prototype: shorty, return type and parameter types.
type ProtoID struct {
	Shorty StringIdx `msgpack:"s" cbor:"1,keyasint"`
	Return TypeIdx   `msgpack:"r" cbor:"2,keyasint"`
	Params []TypeIdx `msgpack:"p" cbor:"3,keyasint"`
}

// FieldID references a field by declaring class, type and name.
type FieldID struct {
	Class TypeIdx   `msgpack:"c" cbor:"1,keyasint"`
	Type  TypeIdx   `msgpack:"t" cbor:"2,keyasint"`
	Name  StringIdx `msgpack:"n" cbor:"3,keyasint"`
}

// MethodID references a method by declaring class, prototype and name.
type MethodID struct {
	Class TypeIdx   `msgpack:"c" cbor:"1,keyasint"`
	Proto ProtoIdx  `msgpack:"p" cbor:"2,keyasint"`
	Name  StringIdx `msgpack:"n" cbor:"3,keyasint"`
}

// ClassDef is a class defined by the binary, with its methods' class data.
type ClassDef struct {
	Class       TypeIdx         `msgpack:"c" cbor:"1,keyasint"`
	AccessFlags uint32          `msgpack:"a" cbor:"2,keyasint"`
	Super       TypeIdx         `msgpack:"s" cbor:"3,keyasint"`
	SourceFile  StringIdx       `msgpack:"f" cbor:"4,keyasint"`
	Methods     []EncodedMethod `msgpack:"m" cbor:"5,keyasint"`
}

// EncodedMethod is a method defined by a class, with its body if it has one.
type EncodedMethod struct {
	Method      MethodIdx `msgpack:"m" cbor:"1,keyasint"`
	AccessFlags uint32    `msgpack:"a" cbor:"2,keyasint"`
	Code        *Code     `msgpack:"c,omitempty" cbor:"3,keyasint,omitempty"`
}
