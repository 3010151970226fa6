package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable representation of the graph.
func Dump(w io.Writer, g *Graph) error {
	if w == nil || g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "method %s (%s)\n", g.QualifiedName(), g.Location()); err != nil {
		return err
	}
	for _, blk := range g.blocks {
		marker := ""
		if blk.ID == g.entry {
			marker = " entry"
		}
		fmt.Fprintf(w, "  bb%d%s:", blk.ID, marker)
		if len(blk.Succs) > 0 {
			fmt.Fprintf(w, " -> %s", formatBlocks(blk.Succs))
		}
		fmt.Fprintln(w)
		for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
			fmt.Fprintf(w, "    %s\n", FormatInstr(g, id))
		}
	}
	return nil
}

// FormatInstr renders one instruction, e.g. "%3:I = const 42".
func FormatInstr(g *Graph, id InstrID) string {
	in := g.Instr(id)
	if in == nil {
		return fmt.Sprintf("<invalid %%%d>", id)
	}
	var sb strings.Builder
	if in.Type.DefinesValue() {
		fmt.Fprintf(&sb, "%%%d:%s = ", id, in.Type)
	}
	sb.WriteString(in.Op.String())
	switch {
	case in.Op == OpConst && in.Const != nil:
		sb.WriteString(" " + in.Const.String())
	case in.Op == OpParameter:
		fmt.Fprintf(&sb, " #%d", in.Index)
	case in.Op == OpLoadClass && g.bin != nil:
		sb.WriteString(" " + g.bin.TypeDescriptor(dexTypeIdx(in.Index)))
	case in.Op == OpStaticGet && g.bin != nil:
		sb.WriteString(" " + g.bin.FieldQualifiedName(dexFieldIdx(in.Index)))
	case in.Op.IsInvoke() && g.bin != nil:
		sb.WriteString(" " + g.bin.MethodQualifiedName(dexMethodIdx(in.Index)))
	}
	for i, op := range in.Operands {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%%%d", op)
	}
	return sb.String()
}

func formatBlocks(ids []BlockID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("bb%d", id)
	}
	return strings.Join(parts, ", ")
}
