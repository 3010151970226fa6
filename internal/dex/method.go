package dex

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MethodDescriptor is the resolved identity of one method of a binary.
type MethodDescriptor struct {
	Idx         MethodIdx
	Name        string // qualified: Lpkg/Cls;->name(params)ret
	Class       string
	Params      []string
	Return      string
	AccessFlags uint32
}

// Describe resolves the method at idx into a MethodDescriptor.
func (b *Binary) Describe(idx MethodIdx) (*MethodDescriptor, error) {
	if idx < 0 || int(idx) >= len(b.Methods) {
		return nil, fmt.Errorf("method index %d out of range [0, %d)", idx, len(b.Methods))
	}
	m := b.Methods[idx]
	if m.Proto < 0 || int(m.Proto) >= len(b.Protos) {
		return nil, fmt.Errorf("method %d: proto index %d out of range", idx, m.Proto)
	}
	return &MethodDescriptor{
		Idx:         idx,
		Name:        b.MethodQualifiedName(idx),
		Class:       b.TypeDescriptor(m.Class),
		Params:      b.ProtoParams(m.Proto),
		Return:      b.TypeDescriptor(b.Protos[m.Proto].Return),
		AccessFlags: b.MethodAccessFlags(idx),
	}, nil
}

func (d *MethodDescriptor) IsStatic() bool { return d.AccessFlags&AccStatic != 0 }
func (d *MethodDescriptor) IsNative() bool { return d.AccessFlags&AccNative != 0 }

// Formals returns the value types an invoke of the method consumes, receiver
// first for instance methods.
func (d *MethodDescriptor) Formals() []string {
	if d.IsStatic() {
		return d.Params
	}
	out := make([]string, 0, len(d.Params)+1)
	out = append(out, d.Class)
	return append(out, d.Params...)
}

// FileName returns the entry name of a binary stored inside a container
// ("app.apk!classes2.dex" -> "classes2.dex"), or the base name of its
// location otherwise.
func (b *Binary) FileName() string {
	if i := strings.LastIndexByte(b.Location, '!'); i >= 0 {
		return b.Location[i+1:]
	}
	return filepath.Base(b.Location)
}
