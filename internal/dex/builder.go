package dex

import (
	"fmt"

	"codeweave/internal/signature"
)

// Builder assembles a Binary, interning strings, types and protos so that
// every table entry is unique.
type Builder struct {
	b       *Binary
	strings map[string]StringIdx
	types   map[string]TypeIdx
	protos  map[string]ProtoIdx
	fields  map[string]FieldIdx
	methods map[string]MethodIdx
	classes map[TypeIdx]ClassDefIdx
}

// NewBuilder starts a binary at the given location.
func NewBuilder(location string) *Builder {
	return &Builder{
		b:       &Binary{Location: location},
		strings: make(map[string]StringIdx),
		types:   make(map[string]TypeIdx),
		protos:  make(map[string]ProtoIdx),
		fields:  make(map[string]FieldIdx),
		methods: make(map[string]MethodIdx),
		classes: make(map[TypeIdx]ClassDefIdx),
	}
}

// Binary returns the binary built so far. The builder keeps ownership; do
// not call further builder methods while the binary is in use elsewhere.
func (bd *Builder) Binary() *Binary { return bd.b }

func (bd *Builder) String(s string) StringIdx {
	if idx, ok := bd.strings[s]; ok {
		return idx
	}
	idx := StringIdx(len(bd.b.Strings))
	bd.b.Strings = append(bd.b.Strings, s)
	bd.strings[s] = idx
	return idx
}

func (bd *Builder) Type(desc string) TypeIdx {
	if idx, ok := bd.types[desc]; ok {
		return idx
	}
	idx := TypeIdx(len(bd.b.Types))
	bd.b.Types = append(bd.b.Types, TypeID{Descriptor: bd.String(desc)})
	bd.types[desc] = idx
	return idx
}

// Proto interns a prototype given as "(params)ret".
func (bd *Builder) Proto(proto string) (ProtoIdx, error) {
	if idx, ok := bd.protos[proto]; ok {
		return idx, nil
	}
	m, err := signature.Parse(proto)
	if err != nil {
		return NoProtoIdx, err
	}
	if m.Prefix != "" {
		return NoProtoIdx, fmt.Errorf("proto %q must not carry a name", proto)
	}
	p := ProtoID{
		Shorty: bd.String(signature.Shorty(m.Params, m.Return)),
		Return: bd.Type(m.Return),
	}
	for _, param := range m.Params {
		p.Params = append(p.Params, bd.Type(param))
	}
	idx := ProtoIdx(len(bd.b.Protos))
	bd.b.Protos = append(bd.b.Protos, p)
	bd.protos[proto] = idx
	return idx, nil
}

// Field interns the field class->name:type.
func (bd *Builder) Field(class, name, typ string) FieldIdx {
	key := class + "->" + name + ":" + typ
	if idx, ok := bd.fields[key]; ok {
		return idx
	}
	idx := FieldIdx(len(bd.b.Fields))
	bd.b.Fields = append(bd.b.Fields, FieldID{
		Class: bd.Type(class),
		Type:  bd.Type(typ),
		Name:  bd.String(name),
	})
	bd.fields[key] = idx
	return idx
}

// Method interns a method reference from its qualified signature
// "Lpkg/Cls;->name(params)ret".
func (bd *Builder) Method(qualified string) (MethodIdx, error) {
	if idx, ok := bd.methods[qualified]; ok {
		return idx, nil
	}
	m, err := signature.Parse(qualified)
	if err != nil {
		return NoMethodIdx, err
	}
	if m.Class() == "" {
		return NoMethodIdx, fmt.Errorf("method %q has no declaring class", qualified)
	}
	proto, err := bd.Proto(m.Proto())
	if err != nil {
		return NoMethodIdx, err
	}
	idx := MethodIdx(len(bd.b.Methods))
	bd.b.Methods = append(bd.b.Methods, MethodID{
		Class: bd.Type(m.Class()),
		Proto: proto,
		Name:  bd.String(m.Name()),
	})
	bd.methods[qualified] = idx
	return idx, nil
}

// Class defines (or returns the existing definition of) a class.
func (bd *Builder) Class(desc string, flags uint32) ClassDefIdx {
	t := bd.Type(desc)
	if idx, ok := bd.classes[t]; ok {
		return idx
	}
	idx := ClassDefIdx(len(bd.b.ClassDefs))
	bd.b.ClassDefs = append(bd.b.ClassDefs, ClassDef{
		Class:       t,
		AccessFlags: flags,
		Super:       bd.Type("Ljava/lang/Object;"),
		SourceFile:  NoStringIdx,
	})
	bd.classes[t] = idx
	return idx
}

// Define adds a method definition to its declaring class, creating the class
// definition when needed. code may be nil for abstract and native methods.
func (bd *Builder) Define(qualified string, flags uint32, code *Code) (MethodIdx, error) {
	idx, err := bd.Method(qualified)
	if err != nil {
		return NoMethodIdx, err
	}
	class := bd.b.TypeDescriptor(bd.b.Methods[idx].Class)
	cd := &bd.b.ClassDefs[bd.Class(class, AccPublic)]
	for _, em := range cd.Methods {
		if em.Method == idx {
			return NoMethodIdx, fmt.Errorf("method %q defined twice", qualified)
		}
	}
	cd.Methods = append(cd.Methods, EncodedMethod{Method: idx, AccessFlags: flags, Code: code})
	return idx, nil
}
