package testkit

import (
	"fmt"

	"codeweave/internal/ir"
)

// Snapshot records the instruction order of every block of g.
func Snapshot(g *ir.Graph) [][]ir.InstrID {
	out := make([][]ir.InstrID, g.NumBlocks())
	for b := range out {
		out[b] = g.Instrs(ir.BlockID(b))
	}
	return out
}

// CheckPreserved runs the invariants every injection must keep:
// 1) the graph still validates (def before use, terminators last)
// 2) every instruction of before is still in its block
// 3) those instructions keep their relative order
func CheckPreserved(g *ir.Graph, before [][]ir.InstrID) error {
	if err := ir.Validate(g); err != nil {
		return err
	}
	for b, old := range before {
		now := g.Instrs(ir.BlockID(b))
		pos := make(map[ir.InstrID]int, len(now))
		for i, id := range now {
			pos[id] = i
		}
		last := -1
		for _, id := range old {
			p, ok := pos[id]
			if !ok {
				return fmt.Errorf("bb%d: %%%d disappeared", b, id)
			}
			if p <= last {
				return fmt.Errorf("bb%d: %%%d reordered", b, id)
			}
			last = p
		}
	}
	return nil
}

// Added returns the instructions of block b that are not in before.
func Added(g *ir.Graph, before [][]ir.InstrID, b ir.BlockID) []ir.InstrID {
	old := make(map[ir.InstrID]bool)
	if int(b) < len(before) {
		for _, id := range before[b] {
			old[id] = true
		}
	}
	var out []ir.InstrID
	for _, id := range g.Instrs(b) {
		if !old[id] {
			out = append(out, id)
		}
	}
	return out
}
