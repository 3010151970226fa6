// Package synth builds the instruction nodes of a call into the codelib and
// splices them into a method's graph.
//
// Every node created here is linked into the block of the cursor it was
// asked to insert at, and values are always defined before their first use
// within that block. A request that cannot be satisfied (an unresolved
// symbol, an argument of the wrong kind) fails before any node is created,
// so the graph is either fully updated or untouched.
package synth

import (
	"errors"
	"fmt"

	"codeweave/internal/dex"
	"codeweave/internal/ir"
	"codeweave/internal/literal"
	"codeweave/internal/resolve"
	"codeweave/internal/signature"
)

var (
	// ErrUnresolved reports a codelib symbol missing from the method's binary.
	ErrUnresolved = errors.New("unresolved symbol")
	// ErrNoAnchor reports a graph without an instruction to insert at.
	ErrNoAnchor = errors.New("no insertion anchor")
	// ErrAfterTerminator reports an insertion after a block terminator.
	ErrAfterTerminator = errors.New("insertion after terminator")
	// ErrUseBeforeDef reports a value argument defined after the insertion
	// point in the cursor's block.
	ErrUseBeforeDef = errors.New("argument used before its definition")
)

// CodeLib names the codelib class and the static field holding its instance.
type CodeLib struct {
	Class    string
	Instance string
}

// InstanceField returns the qualified instance field "LCls;->NAME:LCls;".
func (c CodeLib) InstanceField() string {
	return c.Class + "->" + c.Instance + ":" + c.Class
}

// Synth inserts codelib calls into one graph. It is owned by a single
// method compilation.
type Synth struct {
	g   *ir.Graph
	lib CodeLib
}

// New returns a synthesizer for g.
func New(g *ir.Graph, lib CodeLib) *Synth {
	return &Synth{g: g, lib: lib}
}

// Graph returns the graph nodes are inserted into.
func (s *Synth) Graph() *ir.Graph { return s.g }

// InjectCodeLib loads the codelib instance: a LoadClass of the codelib class
// followed by a StaticGet of its instance field. It returns the StaticGet.
//
// With atEntryBlock, or without a cursor, the anchor is the last instruction
// of the entry block. The nodes go before the anchor when it is a terminator
// or when a cursor was given, after it otherwise.
func (s *Synth) InjectCodeLib(cursor ir.InstrID, atEntryBlock bool) (ir.InstrID, error) {
	classIdx := resolve.FindTypeIdx(s.g, s.lib.Class)
	if classIdx == dex.NoTypeIdx {
		return ir.NoInstrID, fmt.Errorf("%w: codelib class %s", ErrUnresolved, s.lib.Class)
	}
	fieldIdx := resolve.FindFieldIdx(s.g, s.lib.InstanceField())
	if fieldIdx == dex.NoFieldIdx {
		return ir.NoInstrID, fmt.Errorf("%w: codelib instance %s", ErrUnresolved, s.lib.InstanceField())
	}

	anchor, before := cursor, true
	if atEntryBlock || cursor == ir.NoInstrID {
		entry := s.g.EntryBlock()
		if entry.Empty() {
			return ir.NoInstrID, fmt.Errorf("%w: entry block is empty", ErrNoAnchor)
		}
		anchor = entry.Last()
		before = s.g.Instr(anchor).Op.IsTerminator()
	}
	if in := s.g.Instr(anchor); in == nil || in.Block == ir.NoBlockID {
		return ir.NoInstrID, fmt.Errorf("%w: cursor %%%d", ir.ErrNoInstr, anchor)
	}

	load := ir.Instr{Op: ir.OpLoadClass, Type: ir.TypeRef, Index: int64(classIdx)}
	var (
		loadID ir.InstrID
		err    error
	)
	if before {
		loadID, err = s.g.InsertBefore(anchor, load)
	} else {
		loadID, err = s.g.InsertAfter(anchor, load)
	}
	if err != nil {
		return ir.NoInstrID, err
	}
	get := ir.Instr{Op: ir.OpStaticGet, Type: ir.TypeRef, Index: int64(fieldIdx), Operands: []ir.InstrID{loadID}}
	return s.g.InsertAfter(loadID, get)
}

// Arg is one argument of an injected call: a literal materialised as a
// constant, or a value already defined in the graph.
type Arg struct {
	lit   literal.Literal
	value ir.InstrID
}

// Lit passes a literal argument.
func Lit(l literal.Literal) Arg { return Arg{lit: l, value: ir.NoInstrID} }

// Value passes the value defined by an existing instruction.
func Value(id ir.InstrID) Arg { return Arg{value: id} }

// String renders the argument for diagnostics.
func (a Arg) String() string {
	if a.lit != nil {
		return a.lit.Kind().String() + " " + a.lit.String()
	}
	return fmt.Sprintf("%%%d", a.value)
}

// MismatchError reports a call whose arguments or return type do not match
// the resolved method.
type MismatchError struct {
	Method string
	What   string // "arity", "argument N", "return"
	Want   string
	Got    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: want %s, got %s", e.Method, e.What, e.Want, e.Got)
}

// InjectMethodCall inserts a call of the method named by sig immediately
// before or after cursor and returns the invoke node, which also defines the
// call's result when returnType is not void. One constant node is created per
// literal argument; they precede the invoke in argument order. Instance
// methods take the receiver as their first argument.
func (s *Synth) InjectMethodCall(cursor ir.InstrID, sig string, args []Arg, returnType string, insertBefore bool) (ir.InstrID, error) {
	at := s.g.Instr(cursor)
	if at == nil || at.Block == ir.NoBlockID {
		return ir.NoInstrID, fmt.Errorf("%w: cursor %%%d", ir.ErrNoInstr, cursor)
	}
	if !insertBefore && at.Op.IsTerminator() {
		return ir.NoInstrID, fmt.Errorf("%w: %s", ErrAfterTerminator, ir.FormatInstr(s.g, cursor))
	}
	idx := resolve.FindMethodIdx(s.g, sig)
	if idx == dex.NoMethodIdx {
		return ir.NoInstrID, fmt.Errorf("%w: method %s", ErrUnresolved, sig)
	}
	desc, err := s.g.Binary().Describe(idx)
	if err != nil {
		return ir.NoInstrID, err
	}
	if err := s.check(desc, args, returnType, cursor, insertBefore); err != nil {
		return ir.NoInstrID, err
	}

	anchor := cursor
	place := func(in ir.Instr) (ir.InstrID, error) {
		if insertBefore {
			return s.g.InsertBefore(cursor, in)
		}
		id, err := s.g.InsertAfter(anchor, in)
		if err == nil {
			anchor = id
		}
		return id, err
	}

	operands := make([]ir.InstrID, len(args))
	for i, a := range args {
		if a.lit == nil {
			operands[i] = a.value
			continue
		}
		id, err := place(ir.Instr{Op: ir.OpConst, Type: ir.TypeOfLiteral(a.lit.Kind()), Const: a.lit})
		if err != nil {
			return ir.NoInstrID, err
		}
		operands[i] = id
	}
	return place(ir.Instr{
		Op:       invokeOp(desc),
		Type:     ir.TypeOf(desc.Return),
		Index:    int64(idx),
		Operands: operands,
	})
}

func (s *Synth) check(desc *dex.MethodDescriptor, args []Arg, returnType string, cursor ir.InstrID, insertBefore bool) error {
	if returnType != "" && returnType != desc.Return {
		return &MismatchError{Method: desc.Name, What: "return", Want: desc.Return, Got: returnType}
	}
	formals := desc.Formals()
	if len(args) != len(formals) {
		return &MismatchError{
			Method: desc.Name,
			What:   "arity",
			Want:   fmt.Sprintf("%d arguments", len(formals)),
			Got:    fmt.Sprintf("%d", len(args)),
		}
	}
	for i, a := range args {
		formal := formals[i]
		what := fmt.Sprintf("argument %d", i)
		if a.lit != nil {
			want := signature.Literal(formal)
			if want == literal.KindInvalid || a.lit.Kind() != want {
				return &MismatchError{Method: desc.Name, What: what, Want: formal, Got: a.String()}
			}
			continue
		}
		in := s.g.Instr(a.value)
		if in == nil || in.Block == ir.NoBlockID {
			return fmt.Errorf("%s: %s: %w: %%%d", desc.Name, what, ir.ErrNoInstr, a.value)
		}
		if !in.Type.DefinesValue() || in.Type != ir.TypeOf(formal) {
			return &MismatchError{Method: desc.Name, What: what, Want: formal, Got: fmt.Sprintf("%%%d:%s", a.value, in.Type)}
		}
		if in.Block == s.g.Instr(cursor).Block && !s.g.Precedes(a.value, cursor) && (insertBefore || a.value != cursor) {
			return fmt.Errorf("%s: %s: %w: %%%d", desc.Name, what, ErrUseBeforeDef, a.value)
		}
	}
	return nil
}

func invokeOp(desc *dex.MethodDescriptor) ir.Op {
	switch {
	case desc.IsStatic():
		return ir.OpInvokeStatic
	case desc.AccessFlags&(dex.AccPrivate|dex.AccConstructor) != 0:
		return ir.OpInvokeDirect
	default:
		return ir.OpInvokeVirtual
	}
}

// IsNativeMethod reports whether the target of invoke is flagged native in
// the class data of the graph's binary. Targets the binary only references
// are not native.
func IsNativeMethod(g *ir.Graph, invoke ir.InstrID) bool {
	in := g.Instr(invoke)
	if in == nil || !in.Op.IsInvoke() || g.Binary() == nil {
		return false
	}
	return g.Binary().MethodAccessFlags(in.MethodIdx())&dex.AccNative != 0
}
