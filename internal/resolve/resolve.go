// Package resolve maps human-readable names of methods, fields, types and
// class definitions to indices in a binary's descriptor tables.
//
// A name that does not resolve is an expected outcome: every lookup returns
// the table's No*Idx sentinel instead of an error, and callers check for it.
// Lookups are linear scans; tables are bounded per binary and resolution
// happens a handful of times per method.
package resolve

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"codeweave/internal/dex"
	"codeweave/internal/signature"
)

// Source is anything that can hand out the binary to search: a *dex.Binary
// itself or the *ir.Graph of a method compiled from it.
type Source interface {
	Binary() *dex.Binary
}

func binaryOf(src Source) *dex.Binary {
	if src == nil {
		return nil
	}
	return src.Binary()
}

// FindMethodID returns the method table entry matching name, or nil.
func FindMethodID(src Source, name string) *dex.MethodID {
	b := binaryOf(src)
	idx := FindMethodIdx(src, name)
	if idx == dex.NoMethodIdx {
		return nil
	}
	return &b.Methods[idx]
}

// FindMethodIdx returns the index of the first method matching name, or
// dex.NoMethodIdx. name is one of
//
//	Lpkg/Cls;->name(params)ret   qualified with signature
//	name(params)ret              any class
//	Lpkg/Cls;->name              any signature
//	name                         any class, any signature
func FindMethodIdx(src Source, name string) dex.MethodIdx {
	b := binaryOf(src)
	if b == nil || name == "" {
		return dex.NoMethodIdx
	}
	q := parseMethodQuery(name)
	for i := range b.Methods {
		m := &b.Methods[i]
		if !sameName(b.String(m.Name), q.name) {
			continue
		}
		if q.class != "" && !sameName(b.TypeDescriptor(m.Class), q.class) {
			continue
		}
		if q.proto != "" && b.ProtoSignature(m.Proto) != q.proto {
			continue
		}
		return dex.MethodIdx(i)
	}
	return dex.NoMethodIdx
}

type methodQuery struct {
	class string
	name  string
	proto string
}

func parseMethodQuery(s string) methodQuery {
	var q methodQuery
	if i := strings.Index(s, "->"); i >= 0 {
		q.class, s = s[:i], s[i+2:]
	}
	if i := strings.IndexByte(s, '('); i >= 0 {
		q.name, q.proto = s[:i], s[i:]
	} else {
		q.name = s
	}
	return q
}

// FindTypeIdx returns the index of the type named by a descriptor
// ("Ljava/lang/String;", "I") or a source name ("java.lang.String", "int[]"),
// or dex.NoTypeIdx.
func FindTypeIdx(src Source, name string) dex.TypeIdx {
	b := binaryOf(src)
	if b == nil || name == "" {
		return dex.NoTypeIdx
	}
	for i := range b.Types {
		desc := b.String(b.Types[i].Descriptor)
		if sameName(desc, name) || sameName(signature.Pretty(desc), name) {
			return dex.TypeIdx(i)
		}
	}
	return dex.NoTypeIdx
}

// FindFieldIdx returns the index of the first field matching name, or
// dex.NoFieldIdx. name is "Lpkg/Cls;->name:Type", "Lpkg/Cls;->name" or a
// bare field name.
func FindFieldIdx(src Source, name string) dex.FieldIdx {
	b := binaryOf(src)
	if b == nil || name == "" {
		return dex.NoFieldIdx
	}
	var class, typ string
	if i := strings.Index(name, "->"); i >= 0 {
		class, name = name[:i], name[i+2:]
	}
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name, typ = name[:i], name[i+1:]
	}
	for i := range b.Fields {
		f := &b.Fields[i]
		if !sameName(b.String(f.Name), name) {
			continue
		}
		if class != "" && !sameName(b.TypeDescriptor(f.Class), class) {
			continue
		}
		if typ != "" && !sameName(b.TypeDescriptor(f.Type), typ) {
			continue
		}
		return dex.FieldIdx(i)
	}
	return dex.NoFieldIdx
}

// FindClassDefIdx returns the index of the class definition for the class
// named by descriptor or source name, or dex.NoClassDefIdx.
func FindClassDefIdx(src Source, name string) dex.ClassDefIdx {
	b := binaryOf(src)
	if b == nil || name == "" {
		return dex.NoClassDefIdx
	}
	for i := range b.ClassDefs {
		desc := b.TypeDescriptor(b.ClassDefs[i].Class)
		if sameName(desc, name) || sameName(signature.Pretty(desc), name) {
			return dex.ClassDefIdx(i)
		}
	}
	return dex.NoClassDefIdx
}

// sameName compares two names after NFC normalisation. Table strings and
// configured names may spell the same identifier in different normal forms.
func sameName(a, b string) bool {
	if a == b {
		return true
	}
	if isASCII(a) && isASCII(b) {
		return false
	}
	return norm.NFC.String(a) == norm.NFC.String(b)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
