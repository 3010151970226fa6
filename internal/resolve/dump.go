package resolve

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"

	"codeweave/internal/dex"
	"codeweave/internal/ir"
	"codeweave/internal/signature"
)

// DumpTypes writes every type of the binary, one per line: index, descriptor
// and source name.
func DumpTypes(w io.Writer, src Source) error {
	b := binaryOf(src)
	if b == nil {
		return nil
	}
	width := 0
	for i := range b.Types {
		width = max(width, runewidth.StringWidth(b.String(b.Types[i].Descriptor)))
	}
	if _, err := fmt.Fprintf(w, "types=%d (%s)\n", len(b.Types), b.Location); err != nil {
		return err
	}
	for i := range b.Types {
		desc := b.String(b.Types[i].Descriptor)
		if _, err := fmt.Fprintf(w, "  T%-5d %s  %s\n", i, runewidth.FillRight(desc, width), signature.Pretty(desc)); err != nil {
			return err
		}
	}
	return nil
}

// DumpFields writes every field of the binary, one per line: index, field
// name and qualified form.
func DumpFields(w io.Writer, src Source) error {
	b := binaryOf(src)
	if b == nil {
		return nil
	}
	width := 0
	for i := range b.Fields {
		width = max(width, runewidth.StringWidth(b.String(b.Fields[i].Name)))
	}
	if _, err := fmt.Fprintf(w, "fields=%d (%s)\n", len(b.Fields), b.Location); err != nil {
		return err
	}
	for i := range b.Fields {
		name := b.String(b.Fields[i].Name)
		if _, err := fmt.Fprintf(w, "  F%-5d %s  %s\n", i, runewidth.FillRight(name, width), b.FieldQualifiedName(dex.FieldIdx(i))); err != nil {
			return err
		}
	}
	return nil
}

// MethodName returns the source name of an invoke's target, e.g.
// "com.example.Foo.bar", or with withSignature "void com.example.Foo.bar(int)".
// Non-invoke instructions yield "".
func MethodName(g *ir.Graph, invoke ir.InstrID, withSignature bool) string {
	in := g.Instr(invoke)
	if in == nil || !in.Op.IsInvoke() || g.Binary() == nil {
		return ""
	}
	return g.Binary().PrettyMethod(in.MethodIdx(), withSignature)
}

// MethodSignature returns the qualified signature of an invoke's target.
func MethodSignature(g *ir.Graph, invoke ir.InstrID) string {
	in := g.Instr(invoke)
	if in == nil || !in.Op.IsInvoke() || g.Binary() == nil {
		return ""
	}
	return g.Binary().MethodQualifiedName(in.MethodIdx())
}

// BinaryFileName returns the file name of the binary a graph was built from.
func BinaryFileName(src Source) string {
	b := binaryOf(src)
	if b == nil {
		return ""
	}
	return b.FileName()
}
