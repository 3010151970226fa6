// Package dex models the metadata of one compiled binary: its descriptor
// tables (strings, types, protos, fields, methods, class definitions), the
// encoded bodies of the methods it defines, and its on-disk image format.
package dex

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"codeweave/internal/signature"
)

// Binary is one loaded binary. Its tables are read-only once loaded and may
// be shared between goroutines.
type Binary struct {
	Location  string     `msgpack:"location" cbor:"1,keyasint"`
	Checksum  uint32     `msgpack:"checksum" cbor:"2,keyasint"`
	Strings   []string   `msgpack:"strings" cbor:"3,keyasint"`
	Types     []TypeID   `msgpack:"types" cbor:"4,keyasint"`
	Protos    []ProtoID  `msgpack:"protos" cbor:"5,keyasint"`
	Fields    []FieldID  `msgpack:"fields" cbor:"6,keyasint"`
	Methods   []MethodID `msgpack:"methods" cbor:"7,keyasint"`
	ClassDefs []ClassDef `msgpack:"class_defs" cbor:"8,keyasint"`
}

// Binary returns b itself so that a *Binary can be used wherever a lookup
// source is accepted.
func (b *Binary) Binary() *Binary { return b }

// String returns the string at idx, or "" when idx is out of range.
func (b *Binary) String(idx StringIdx) string {
	if idx < 0 || int(idx) >= len(b.Strings) {
		return ""
	}
	return b.Strings[idx]
}

// TypeDescriptor returns the descriptor of the type at idx.
func (b *Binary) TypeDescriptor(idx TypeIdx) string {
	if idx < 0 || int(idx) >= len(b.Types) {
		return ""
	}
	return b.String(b.Types[idx].Descriptor)
}

// ProtoParams returns the parameter descriptors of the proto at idx.
func (b *Binary) ProtoParams(idx ProtoIdx) []string {
	if idx < 0 || int(idx) >= len(b.Protos) {
		return nil
	}
	p := b.Protos[idx]
	params := make([]string, len(p.Params))
	for i, t := range p.Params {
		params[i] = b.TypeDescriptor(t)
	}
	return params
}

// ProtoSignature returns "(params)ret" for the proto at idx.
func (b *Binary) ProtoSignature(idx ProtoIdx) string {
	if idx < 0 || int(idx) >= len(b.Protos) {
		return ""
	}
	return signature.Encode(b.ProtoParams(idx), b.TypeDescriptor(b.Protos[idx].Return))
}

// MethodQualifiedName returns "Lpkg/Cls;->name(params)ret" for the method at idx.
func (b *Binary) MethodQualifiedName(idx MethodIdx) string {
	if idx < 0 || int(idx) >= len(b.Methods) {
		return ""
	}
	m := b.Methods[idx]
	return b.TypeDescriptor(m.Class) + "->" + b.String(m.Name) + b.ProtoSignature(m.Proto)
}

// PrettyMethod renders the method at idx in source form, e.g.
// "void com.example.Foo.bar(int, boolean)". Without signature only the
// dotted class and method name are returned.
func (b *Binary) PrettyMethod(idx MethodIdx, withSignature bool) string {
	if idx < 0 || int(idx) >= len(b.Methods) {
		return "<<invalid-method-idx-" + fmt.Sprint(int32(idx)) + ">>"
	}
	m := b.Methods[idx]
	name := signature.Pretty(b.TypeDescriptor(m.Class)) + "." + b.String(m.Name)
	if !withSignature {
		return name
	}
	p := b.Protos[m.Proto]
	params := b.ProtoParams(m.Proto)
	pretty := make([]string, len(params))
	for i, d := range params {
		pretty[i] = signature.Pretty(d)
	}
	return signature.Pretty(b.TypeDescriptor(p.Return)) + " " + name + "(" + strings.Join(pretty, ", ") + ")"
}

// FieldQualifiedName returns "Lpkg/Cls;->name:Type" for the field at idx.
func (b *Binary) FieldQualifiedName(idx FieldIdx) string {
	if idx < 0 || int(idx) >= len(b.Fields) {
		return ""
	}
	f := b.Fields[idx]
	return b.TypeDescriptor(f.Class) + "->" + b.String(f.Name) + ":" + b.TypeDescriptor(f.Type)
}

// EncodedMethod returns the class data entry defining the method at idx.
func (b *Binary) EncodedMethod(idx MethodIdx) (*EncodedMethod, bool) {
	for i := range b.ClassDefs {
		cd := &b.ClassDefs[i]
		for j := range cd.Methods {
			if cd.Methods[j].Method == idx {
				return &cd.Methods[j], true
			}
		}
	}
	return nil, false
}

// MethodAccessFlags returns the access flags of a method defined by b.
// Methods only referenced by b report 0.
func (b *Binary) MethodAccessFlags(idx MethodIdx) uint32 {
	if em, ok := b.EncodedMethod(idx); ok {
		return em.AccessFlags
	}
	return 0
}

// Counts is the size of every descriptor table of a binary.
type Counts struct {
	ClassDefs uint32
	Fields    uint32
	Methods   uint32
	Protos    uint32
	Strings   uint32
	Types     uint32
}

// Counts returns the size of every descriptor table.
func (b *Binary) Counts() (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.ClassDefs, err = safecast.Conv[uint32](len(b.ClassDefs)); err != nil {
		return Counts{}, fmt.Errorf("class def count: %w", err)
	}
	if c.Fields, err = safecast.Conv[uint32](len(b.Fields)); err != nil {
		return Counts{}, fmt.Errorf("field count: %w", err)
	}
	if c.Methods, err = safecast.Conv[uint32](len(b.Methods)); err != nil {
		return Counts{}, fmt.Errorf("method count: %w", err)
	}
	if c.Protos, err = safecast.Conv[uint32](len(b.Protos)); err != nil {
		return Counts{}, fmt.Errorf("proto count: %w", err)
	}
	if c.Strings, err = safecast.Conv[uint32](len(b.Strings)); err != nil {
		return Counts{}, fmt.Errorf("string count: %w", err)
	}
	if c.Types, err = safecast.Conv[uint32](len(b.Types)); err != nil {
		return Counts{}, fmt.Errorf("type count: %w", err)
	}
	return c, nil
}
