package ir

// Block is a basic block: a doubly linked list of instructions plus its
// edges in the control flow graph.
type Block struct {
	ID    BlockID
	Succs []BlockID
	Preds []BlockID

	first InstrID
	last  InstrID
	size  int
}

// First returns the first instruction of the block, or NoInstrID.
func (b *Block) First() InstrID { return b.first }

// Last returns the last instruction of the block, or NoInstrID.
func (b *Block) Last() InstrID { return b.last }

// Len returns the number of instructions in the block.
func (b *Block) Len() int { return b.size }

// Empty reports whether the block has no instructions.
func (b *Block) Empty() bool { return b == nil || b.size == 0 }
