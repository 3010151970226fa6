package ir

import (
	"fmt"

	"codeweave/internal/literal"
)

// Op enumerates instruction kinds.
type Op uint8

const (
	// OpNop does nothing.
	OpNop Op = iota
	// OpParameter defines the value of the method parameter at Index.
	OpParameter
	// OpConst loads the literal in Const.
	OpConst
	// OpLoadClass loads the class at type index Index.
	OpLoadClass
	// OpStaticGet reads the static field at field index Index; Operands[0]
	// is the LoadClass of its declaring class.
	OpStaticGet
	// OpInvokeStatic calls the static method at method index Index.
	OpInvokeStatic
	// OpInvokeVirtual calls the instance method at Index; Operands[0] is the receiver.
	OpInvokeVirtual
	// OpInvokeDirect calls a private method or constructor at Index.
	OpInvokeDirect
	// OpAdd adds its two operands.
	OpAdd
	// OpReturn returns Operands[0].
	OpReturn
	// OpReturnVoid returns without a value.
	OpReturnVoid
	// OpGoto jumps to the block's only successor.
	OpGoto
	// OpIf branches on Operands[0] to the block's first or second successor.
	OpIf
)

var opNames = [...]string{
	OpNop:           "nop",
	OpParameter:     "parameter",
	OpConst:         "const",
	OpLoadClass:     "load-class",
	OpStaticGet:     "sget",
	OpInvokeStatic:  "invoke-static",
	OpInvokeVirtual: "invoke-virtual",
	OpInvokeDirect:  "invoke-direct",
	OpAdd:           "add",
	OpReturn:        "return",
	OpReturnVoid:    "return-void",
	OpGoto:          "goto",
	OpIf:            "if",
}

// String returns the mnemonic of the op.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp converts a mnemonic back to an Op.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if name == s {
			return Op(i), nil
		}
	}
	return OpNop, fmt.Errorf("unknown op %q", s)
}

// IsTerminator reports whether the op ends a block.
func (o Op) IsTerminator() bool {
	switch o {
	case OpReturn, OpReturnVoid, OpGoto, OpIf:
		return true
	}
	return false
}

// IsInvoke reports whether the op calls a method.
func (o Op) IsInvoke() bool {
	return o == OpInvokeStatic || o == OpInvokeVirtual || o == OpInvokeDirect
}

// Instr is one node of the graph. The graph owns every Instr; callers hold
// InstrID handles, which stay valid across insertions.
type Instr struct {
	ID       InstrID
	Op       Op
	Type     Type
	Block    BlockID
	Operands []InstrID
	Const    literal.Literal
	Index    int64

	prev InstrID
	next InstrID
}

// Prev returns the instruction sequenced before i in its block.
func (i *Instr) Prev() InstrID { return i.prev }

// Next returns the instruction sequenced after i in its block.
func (i *Instr) Next() InstrID { return i.next }
