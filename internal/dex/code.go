package dex

// Code is the encoded body of a method: basic blocks of instructions in
// program order. Instructions reference each other by ID, which is unique
// within one Code.
type Code struct {
	Entry  int32       `msgpack:"e" cbor:"1,keyasint"`
	Blocks []CodeBlock `msgpack:"b" cbor:"2,keyasint"`
}

// CodeBlock is one basic block. Succs lists successor block positions.
type CodeBlock struct {
	Insns []Insn  `msgpack:"i" cbor:"1,keyasint"`
	Succs []int32 `msgpack:"s,omitempty" cbor:"2,keyasint,omitempty"`
}

// Insn is one encoded instruction.
//
// Op is the instruction mnemonic, Type the one-letter descriptor of the value
// it defines ("" when it defines none). Index carries the table index the
// instruction refers to (type, field or method) or the parameter position.
// Const carries the literal payload of constant loads.
type Insn struct {
	ID       int32   `msgpack:"id" cbor:"1,keyasint"`
	Op       string  `msgpack:"op" cbor:"2,keyasint"`
	Type     string  `msgpack:"t,omitempty" cbor:"3,keyasint,omitempty"`
	Operands []int32 `msgpack:"o,omitempty" cbor:"4,keyasint,omitempty"`
	Index    int64   `msgpack:"x,omitempty" cbor:"5,keyasint,omitempty"`
	Const    uint64  `msgpack:"k,omitempty" cbor:"6,keyasint,omitempty"`
}

// NumInsns returns the number of instructions over all blocks.
func (c *Code) NumInsns() int {
	if c == nil {
		return 0
	}
	n := 0
	for i := range c.Blocks {
		n += len(c.Blocks[i].Insns)
	}
	return n
}
