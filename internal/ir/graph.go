// Package ir is the instruction graph of one method under compilation.
//
// The graph is an arena: blocks and instructions live in slices owned by the
// Graph and are addressed by BlockID and InstrID handles that never move.
// Instructions of a block form a doubly linked list, so inserting before or
// after an anchor never invalidates handles held by a caller walking the block.
package ir

import (
	"errors"
	"fmt"

	"codeweave/internal/dex"
)

var (
	// ErrNoInstr reports a handle that does not name an instruction of the graph.
	ErrNoInstr = errors.New("no such instruction")
	// ErrNoBlock reports a handle that does not name a block of the graph.
	ErrNoBlock = errors.New("no such block")
)

// Graph is the instruction graph of one method of one binary.
// A Graph is not safe for concurrent mutation; each compilation owns its own.
type Graph struct {
	bin    *dex.Binary
	method dex.MethodIdx
	instrs []*Instr
	blocks []*Block
	entry  BlockID
}

// NewGraph creates an empty graph for the method at idx of bin.
func NewGraph(bin *dex.Binary, method dex.MethodIdx) *Graph {
	return &Graph{bin: bin, method: method, entry: NoBlockID}
}

// Binary returns the binary the method belongs to.
func (g *Graph) Binary() *dex.Binary {
	if g == nil {
		return nil
	}
	return g.bin
}

// MethodIdx returns the index of the compiled method in its binary.
func (g *Graph) MethodIdx() dex.MethodIdx { return g.method }

// QualifiedName returns "Lpkg/Cls;->name(params)ret" of the compiled method.
func (g *Graph) QualifiedName() string {
	if g.bin == nil {
		return ""
	}
	return g.bin.MethodQualifiedName(g.method)
}

// Location returns the location of the method's binary.
func (g *Graph) Location() string {
	if g.bin == nil {
		return ""
	}
	return g.bin.Location
}

// AddBlock appends an empty block.
func (g *Graph) AddBlock() BlockID {
	id := BlockID(len(g.blocks))
	g.blocks = append(g.blocks, &Block{ID: id, first: NoInstrID, last: NoInstrID})
	if g.entry == NoBlockID {
		g.entry = id
	}
	return id
}

// SetEntry marks b as the entry block.
func (g *Graph) SetEntry(b BlockID) { g.entry = b }

// Entry returns the entry block, or NoBlockID for an empty graph.
func (g *Graph) Entry() BlockID { return g.entry }

// EntryBlock returns the entry block, or nil for an empty graph.
func (g *Graph) EntryBlock() *Block { return g.Block(g.entry) }

// AddEdge records a control flow edge from -> to.
func (g *Graph) AddEdge(from, to BlockID) {
	f, t := g.Block(from), g.Block(to)
	if f == nil || t == nil {
		return
	}
	f.Succs = append(f.Succs, to)
	t.Preds = append(t.Preds, from)
}

// NumBlocks returns the number of blocks.
func (g *Graph) NumBlocks() int { return len(g.blocks) }

// NumInstrs returns the number of instructions ever added to the graph.
func (g *Graph) NumInstrs() int { return len(g.instrs) }

// Block returns the block with the given ID, or nil.
func (g *Graph) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(g.blocks) {
		return nil
	}
	return g.blocks[id]
}

// Instr returns the instruction with the given ID, or nil.
func (g *Graph) Instr(id InstrID) *Instr {
	if id < 0 || int(id) >= len(g.instrs) {
		return nil
	}
	return g.instrs[id]
}

// Instrs returns the instructions of block b in order.
func (g *Graph) Instrs(b BlockID) []InstrID {
	blk := g.Block(b)
	if blk == nil {
		return nil
	}
	out := make([]InstrID, 0, blk.size)
	for id := blk.first; id != NoInstrID; id = g.instrs[id].next {
		out = append(out, id)
	}
	return out
}

// Position returns the zero-based position of id within its block, or -1.
func (g *Graph) Position(id InstrID) int {
	in := g.Instr(id)
	if in == nil {
		return -1
	}
	pos := 0
	for cur := in.prev; cur != NoInstrID; cur = g.instrs[cur].prev {
		pos++
	}
	return pos
}

// Precedes reports whether a and b are linked into the same block with a
// strictly before b.
func (g *Graph) Precedes(a, b InstrID) bool {
	ia, ib := g.Instr(a), g.Instr(b)
	if ia == nil || ib == nil || ia.Block == NoBlockID || ia.Block != ib.Block || a == b {
		return false
	}
	for cur := ib.prev; cur != NoInstrID; cur = g.instrs[cur].prev {
		if cur == a {
			return true
		}
	}
	return false
}

// Users returns the instructions that use id as an operand.
func (g *Graph) Users(id InstrID) []InstrID {
	var out []InstrID
	for _, in := range g.instrs {
		if in.Block == NoBlockID {
			continue
		}
		for _, op := range in.Operands {
			if op == id {
				out = append(out, in.ID)
				break
			}
		}
	}
	return out
}

func (g *Graph) alloc(in Instr) *Instr {
	n := in
	n.ID = InstrID(len(g.instrs))
	n.prev, n.next = NoInstrID, NoInstrID
	n.Operands = append([]InstrID(nil), in.Operands...)
	g.instrs = append(g.instrs, &n)
	return &n
}

func (g *Graph) checkOperands(in Instr) error {
	for _, op := range in.Operands {
		if g.Instr(op) == nil {
			return fmt.Errorf("%w: operand %%%d", ErrNoInstr, op)
		}
	}
	return nil
}

// Append adds in at the end of block b and returns its handle.
func (g *Graph) Append(b BlockID, in Instr) (InstrID, error) {
	blk := g.Block(b)
	if blk == nil {
		return NoInstrID, fmt.Errorf("%w: bb%d", ErrNoBlock, b)
	}
	if err := g.checkOperands(in); err != nil {
		return NoInstrID, err
	}
	n := g.alloc(in)
	n.Block = b
	n.prev = blk.last
	if blk.last != NoInstrID {
		g.instrs[blk.last].next = n.ID
	} else {
		blk.first = n.ID
	}
	blk.last = n.ID
	blk.size++
	return n.ID, nil
}

// InsertBefore links in immediately before anchor, in anchor's block, and
// returns the new instruction's handle.
func (g *Graph) InsertBefore(anchor InstrID, in Instr) (InstrID, error) {
	a := g.Instr(anchor)
	if a == nil || a.Block == NoBlockID {
		return NoInstrID, fmt.Errorf("%w: anchor %%%d", ErrNoInstr, anchor)
	}
	if err := g.checkOperands(in); err != nil {
		return NoInstrID, err
	}
	blk := g.blocks[a.Block]
	n := g.alloc(in)
	n.Block = a.Block
	n.next = anchor
	n.prev = a.prev
	if a.prev != NoInstrID {
		g.instrs[a.prev].next = n.ID
	} else {
		blk.first = n.ID
	}
	a.prev = n.ID
	blk.size++
	return n.ID, nil
}

// InsertAfter links in immediately after anchor, in anchor's block, and
// returns the new instruction's handle.
func (g *Graph) InsertAfter(anchor InstrID, in Instr) (InstrID, error) {
	a := g.Instr(anchor)
	if a == nil || a.Block == NoBlockID {
		return NoInstrID, fmt.Errorf("%w: anchor %%%d", ErrNoInstr, anchor)
	}
	if err := g.checkOperands(in); err != nil {
		return NoInstrID, err
	}
	blk := g.blocks[a.Block]
	n := g.alloc(in)
	n.Block = a.Block
	n.prev = anchor
	n.next = a.next
	if a.next != NoInstrID {
		g.instrs[a.next].prev = n.ID
	} else {
		blk.last = n.ID
	}
	a.next = n.ID
	blk.size++
	return n.ID, nil
}

// Remove unlinks id from its block. The handle stays allocated but no longer
// belongs to any block.
func (g *Graph) Remove(id InstrID) error {
	in := g.Instr(id)
	if in == nil || in.Block == NoBlockID {
		return fmt.Errorf("%w: %%%d", ErrNoInstr, id)
	}
	if users := g.Users(id); len(users) > 0 {
		return fmt.Errorf("%%%d still used by %%%d", id, users[0])
	}
	blk := g.blocks[in.Block]
	if in.prev != NoInstrID {
		g.instrs[in.prev].next = in.next
	} else {
		blk.first = in.next
	}
	if in.next != NoInstrID {
		g.instrs[in.next].prev = in.prev
	} else {
		blk.last = in.prev
	}
	in.prev, in.next, in.Block = NoInstrID, NoInstrID, NoBlockID
	blk.size--
	return nil
}
