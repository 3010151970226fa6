package ir

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"codeweave/internal/dex"
	"codeweave/internal/literal"
)

// ErrNoCode reports a method without an encoded body (abstract, native or
// only referenced by the binary).
var ErrNoCode = errors.New("method has no code")

// Build decodes the body of the method at idx into a fresh graph.
func Build(bin *dex.Binary, idx dex.MethodIdx) (*Graph, error) {
	if bin == nil {
		return nil, fmt.Errorf("build: nil binary")
	}
	em, ok := bin.EncodedMethod(idx)
	if !ok || em.Code == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, bin.MethodQualifiedName(idx))
	}
	code := em.Code
	g := NewGraph(bin, idx)
	for range code.Blocks {
		g.AddBlock()
	}
	if code.Entry < 0 || int(code.Entry) >= len(code.Blocks) {
		return nil, fmt.Errorf("build %s: entry block %d out of range", bin.MethodQualifiedName(idx), code.Entry)
	}
	g.SetEntry(BlockID(code.Entry))

	ids := make(map[int32]InstrID, code.NumInsns())
	pending := make(map[InstrID][]int32)
	for bi := range code.Blocks {
		cb := &code.Blocks[bi]
		for _, insn := range cb.Insns {
			in, err := decodeInsn(insn)
			if err != nil {
				return nil, fmt.Errorf("build %s: bb%d: insn %d: %w", bin.MethodQualifiedName(idx), bi, insn.ID, err)
			}
			if _, dup := ids[insn.ID]; dup {
				return nil, fmt.Errorf("build %s: duplicate insn id %d", bin.MethodQualifiedName(idx), insn.ID)
			}
			id, err := g.Append(BlockID(bi), in)
			if err != nil {
				return nil, err
			}
			ids[insn.ID] = id
			if len(insn.Operands) > 0 {
				pending[id] = insn.Operands
			}
		}
		for _, s := range cb.Succs {
			if s < 0 || int(s) >= len(code.Blocks) {
				return nil, fmt.Errorf("build %s: bb%d: successor %d out of range", bin.MethodQualifiedName(idx), bi, s)
			}
			g.AddEdge(BlockID(bi), BlockID(s))
		}
	}
	for id, ops := range pending {
		in := g.instrs[id]
		in.Operands = make([]InstrID, len(ops))
		for i, op := range ops {
			def, ok := ids[op]
			if !ok {
				return nil, fmt.Errorf("build %s: %%%d uses unknown insn %d", bin.MethodQualifiedName(idx), id, op)
			}
			in.Operands[i] = def
		}
	}
	return g, nil
}

func decodeInsn(insn dex.Insn) (Instr, error) {
	op, err := ParseOp(insn.Op)
	if err != nil {
		return Instr{}, err
	}
	in := Instr{Op: op, Type: TypeOf(insn.Type), Index: insn.Index}
	if op == OpConst {
		if len(insn.Type) != 1 {
			return Instr{}, fmt.Errorf("const without primitive type")
		}
		c, err := literal.FromBits(literal.KindOfDescriptor(insn.Type[0]), insn.Const)
		if err != nil {
			return Instr{}, err
		}
		in.Const = c
	}
	return in, nil
}

// Lower encodes the graph back into a method body. Instructions are
// renumbered densely in block order.
func Lower(g *Graph) (*dex.Code, error) {
	if g == nil {
		return nil, fmt.Errorf("lower: nil graph")
	}
	entry, err := safecast.Conv[int32](g.entry)
	if err != nil {
		return nil, fmt.Errorf("lower: entry: %w", err)
	}
	code := &dex.Code{Entry: entry, Blocks: make([]dex.CodeBlock, len(g.blocks))}

	ids := make(map[InstrID]int32, len(g.instrs))
	next := 0
	for _, blk := range g.blocks {
		for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
			n, err := safecast.Conv[int32](next)
			if err != nil {
				return nil, fmt.Errorf("lower: too many instructions: %w", err)
			}
			ids[id] = n
			next++
		}
	}

	for bi, blk := range g.blocks {
		cb := &code.Blocks[bi]
		for _, s := range blk.Succs {
			cb.Succs = append(cb.Succs, int32(s))
		}
		for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
			in := g.instrs[id]
			insn := dex.Insn{ID: ids[id], Op: in.Op.String(), Index: in.Index}
			if in.Type != TypeNone {
				insn.Type = in.Type.String()
			}
			for _, op := range in.Operands {
				n, ok := ids[op]
				if !ok {
					return nil, fmt.Errorf("lower: %%%d uses unlinked %%%d", id, op)
				}
				insn.Operands = append(insn.Operands, n)
			}
			if in.Const != nil {
				insn.Const = literal.Bits(in.Const)
			}
			cb.Insns = append(cb.Insns, insn)
		}
	}
	return code, nil
}
