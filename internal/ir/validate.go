package ir

import (
	"errors"
	"fmt"
)

// Validate checks graph invariants.
// Returns error if any invariant is violated.
func Validate(g *Graph) error {
	if g == nil {
		return nil
	}

	var errs []error

	// 1. Linked lists are consistent with block membership
	if err := validateLinks(g); err != nil {
		errs = append(errs, err)
	}

	// 2. Terminators only at block ends, every block terminated
	if err := validateTerminators(g); err != nil {
		errs = append(errs, err)
	}

	// 3. Operands defined before use
	if err := validateDefBeforeUse(g); err != nil {
		errs = append(errs, err)
	}

	// 4. Edge targets exist
	if err := validateEdges(g); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateLinks(g *Graph) error {
	var errs []error
	for _, blk := range g.blocks {
		n := 0
		prev := NoInstrID
		for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
			in := g.instrs[id]
			if in.Block != blk.ID {
				errs = append(errs, fmt.Errorf("bb%d: %%%d claims block bb%d", blk.ID, id, in.Block))
			}
			if in.prev != prev {
				errs = append(errs, fmt.Errorf("bb%d: %%%d has prev %%%d, want %%%d", blk.ID, id, in.prev, prev))
			}
			prev = id
			n++
			if n > len(g.instrs) {
				errs = append(errs, fmt.Errorf("bb%d: instruction list has a cycle", blk.ID))
				break
			}
		}
		if prev != blk.last {
			errs = append(errs, fmt.Errorf("bb%d: last is %%%d, list ends at %%%d", blk.ID, blk.last, prev))
		}
		if n != blk.size {
			errs = append(errs, fmt.Errorf("bb%d: size %d, counted %d", blk.ID, blk.size, n))
		}
	}
	return errors.Join(errs...)
}

func validateTerminators(g *Graph) error {
	var errs []error
	for _, blk := range g.blocks {
		if blk.last == NoInstrID {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", blk.ID))
			continue
		}
		for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
			in := g.instrs[id]
			isLast := id == blk.last
			if in.Op.IsTerminator() && !isLast {
				errs = append(errs, fmt.Errorf("bb%d: %s %%%d is not the last instruction", blk.ID, in.Op, id))
			}
			if isLast && !in.Op.IsTerminator() {
				errs = append(errs, fmt.Errorf("bb%d: unterminated block (ends with %s)", blk.ID, in.Op))
			}
		}
	}
	return errors.Join(errs...)
}

// validateDefBeforeUse checks that every operand is a live instruction that
// either belongs to another block or appears earlier in the same block.
func validateDefBeforeUse(g *Graph) error {
	var errs []error
	for _, blk := range g.blocks {
		seen := make(map[InstrID]bool, blk.size)
		for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
			in := g.instrs[id]
			for _, op := range in.Operands {
				def := g.Instr(op)
				switch {
				case def == nil || def.Block == NoBlockID:
					errs = append(errs, fmt.Errorf("bb%d: %%%d uses missing %%%d", blk.ID, id, op))
				case !def.Type.DefinesValue():
					errs = append(errs, fmt.Errorf("bb%d: %%%d uses %%%d which defines no value", blk.ID, id, op))
				case def.Block == blk.ID && !seen[op]:
					errs = append(errs, fmt.Errorf("bb%d: %%%d uses %%%d before its definition", blk.ID, id, op))
				}
			}
			seen[id] = true
		}
	}
	return errors.Join(errs...)
}

func validateEdges(g *Graph) error {
	var errs []error
	if len(g.blocks) > 0 && g.Block(g.entry) == nil {
		errs = append(errs, fmt.Errorf("entry block bb%d does not exist", g.entry))
	}
	for _, blk := range g.blocks {
		for _, s := range blk.Succs {
			if g.Block(s) == nil {
				errs = append(errs, fmt.Errorf("bb%d: successor bb%d does not exist", blk.ID, s))
			}
		}
		if last := g.Instr(blk.last); last != nil {
			want := -1
			switch last.Op {
			case OpGoto:
				want = 1
			case OpIf:
				want = 2
			case OpReturn, OpReturnVoid:
				want = 0
			}
			if want >= 0 && len(blk.Succs) != want {
				errs = append(errs, fmt.Errorf("bb%d: %s needs %d successors, has %d", blk.ID, last.Op, want, len(blk.Succs)))
			}
		}
	}
	return errors.Join(errs...)
}
