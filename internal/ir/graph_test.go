package ir_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"codeweave/internal/ir"
	"codeweave/internal/literal"
	"codeweave/internal/testkit"
)

func TestBuild_RunMethod(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Run)

	if g.NumBlocks() != 2 {
		t.Fatalf("blocks = %d, want 2", g.NumBlocks())
	}
	entry := g.EntryBlock()
	if entry == nil || entry.Len() != 2 {
		t.Fatalf("entry block = %+v", entry)
	}
	if last := g.Instr(entry.Last()); last.Op != ir.OpGoto {
		t.Errorf("entry ends with %s, want goto", last.Op)
	}
	body := g.Instrs(1)
	if len(body) != 5 {
		t.Fatalf("body = %d instrs, want 5", len(body))
	}
	call := g.Instr(body[2])
	if call.Op != ir.OpInvokeStatic || call.MethodIdx() != app.Add {
		t.Errorf("call = %s idx %d", call.Op, call.MethodIdx())
	}
	if len(call.Operands) != 2 || call.Operands[0] != body[0] || call.Operands[1] != body[1] {
		t.Errorf("call operands = %v, want %v", call.Operands, body[:2])
	}
	if c := g.Instr(body[0]).Const; c != literal.Literal(literal.NewInteger(1)) {
		t.Errorf("const = %v", c)
	}
	if g.QualifiedName() != testkit.MainClass+"->run()V" {
		t.Errorf("QualifiedName = %q", g.QualifiedName())
	}
}

func TestBuild_NoCode(t *testing.T) {
	app := testkit.NewApp(t)
	if _, err := ir.Build(app.Binary, app.Native); !errors.Is(err, ir.ErrNoCode) {
		t.Errorf("Build(native) error = %v, want ErrNoCode", err)
	}
}

func TestInsert_KeepsHandlesAndOrder(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Add)
	before := testkit.Snapshot(g)

	ret := g.Block(1).Last()
	add := g.Block(1).First()

	c, err := g.InsertBefore(ret, ir.Instr{Op: ir.OpConst, Type: ir.TypeInt, Const: literal.NewInteger(7)})
	if err != nil {
		t.Fatal(err)
	}
	n, err := g.InsertAfter(add, ir.Instr{Op: ir.OpNop})
	if err != nil {
		t.Fatal(err)
	}

	got := g.Instrs(1)
	want := []ir.InstrID{add, n, c, ret}
	if len(got) != len(want) {
		t.Fatalf("instrs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instrs = %v, want %v", got, want)
		}
	}
	if g.Position(ret) != 3 || g.Position(add) != 0 {
		t.Errorf("positions: add=%d ret=%d", g.Position(add), g.Position(ret))
	}
	if err := testkit.CheckPreserved(g, before); err != nil {
		t.Fatal(err)
	}
	if added := testkit.Added(g, before, 1); len(added) != 2 {
		t.Errorf("added = %v", added)
	}
}

func TestInsert_AtBlockEdges(t *testing.T) {
	g := ir.NewGraph(nil, 0)
	b := g.AddBlock()
	ret, err := g.Append(b, ir.Instr{Op: ir.OpReturnVoid})
	if err != nil {
		t.Fatal(err)
	}
	first, err := g.InsertBefore(ret, ir.Instr{Op: ir.OpNop})
	if err != nil {
		t.Fatal(err)
	}
	if g.Block(b).First() != first {
		t.Errorf("First = %d, want %d", g.Block(b).First(), first)
	}
	tail, err := g.InsertAfter(ret, ir.Instr{Op: ir.OpNop})
	if err != nil {
		t.Fatal(err)
	}
	if g.Block(b).Last() != tail {
		t.Errorf("Last = %d, want %d", g.Block(b).Last(), tail)
	}
	// a terminator followed by a nop is invalid
	if err := ir.Validate(g); err == nil {
		t.Error("expected validation error for instruction after terminator")
	}
	if err := g.Remove(tail); err != nil {
		t.Fatal(err)
	}
	if err := ir.Validate(g); err != nil {
		t.Errorf("Validate after Remove: %v", err)
	}
}

func TestPrecedes(t *testing.T) {
	g := ir.NewGraph(nil, 0)
	b0, b1 := g.AddBlock(), g.AddBlock()
	nop, _ := g.Append(b0, ir.Instr{Op: ir.OpNop})
	jump, _ := g.Append(b0, ir.Instr{Op: ir.OpGoto})
	ret, _ := g.Append(b1, ir.Instr{Op: ir.OpReturnVoid})
	tests := []struct {
		a, b ir.InstrID
		want bool
	}{
		{nop, jump, true},
		{jump, nop, false},
		{nop, nop, false},
		{nop, ret, false},
		{ir.NoInstrID, jump, false},
	}
	for _, tt := range tests {
		if got := g.Precedes(tt.a, tt.b); got != tt.want {
			t.Errorf("Precedes(%%%d, %%%d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestInsert_InvalidHandles(t *testing.T) {
	g := ir.NewGraph(nil, 0)
	b := g.AddBlock()
	if _, err := g.InsertBefore(42, ir.Instr{}); !errors.Is(err, ir.ErrNoInstr) {
		t.Errorf("InsertBefore(bad) = %v", err)
	}
	if _, err := g.Append(b+1, ir.Instr{}); !errors.Is(err, ir.ErrNoBlock) {
		t.Errorf("Append(bad block) = %v", err)
	}
	if _, err := g.Append(b, ir.Instr{Op: ir.OpReturn, Operands: []ir.InstrID{9}}); !errors.Is(err, ir.ErrNoInstr) {
		t.Errorf("Append(bad operand) = %v", err)
	}
}

func TestValidate_UseBeforeDef(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Add)
	ret := g.Block(1).Last()
	c, err := g.InsertBefore(ret, ir.Instr{Op: ir.OpConst, Type: ir.TypeInt, Const: literal.NewInteger(1)})
	if err != nil {
		t.Fatal(err)
	}
	// an add placed before the constant it reads
	if _, err := g.InsertBefore(g.Block(1).First(), ir.Instr{Op: ir.OpAdd, Type: ir.TypeInt, Operands: []ir.InstrID{c, c}}); err != nil {
		t.Fatal(err)
	}
	err = ir.Validate(g)
	if err == nil || !strings.Contains(err.Error(), "before its definition") {
		t.Errorf("Validate = %v, want use-before-def error", err)
	}
}

func TestLower_RoundTrip(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Check)
	code, err := ir.Lower(g)
	if err != nil {
		t.Fatal(err)
	}
	em, _ := app.Binary.EncodedMethod(app.Check)
	em.Code = code
	again := testkit.Graph(t, app.Binary, app.Check)

	var a, b bytes.Buffer
	if err := ir.Dump(&a, g); err != nil {
		t.Fatal(err)
	}
	if err := ir.Dump(&b, again); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Errorf("dump differs after round trip:\n%s\nvs\n%s", a.String(), b.String())
	}
	if !strings.Contains(a.String(), "bb1: -> bb2, bb3") {
		t.Errorf("dump missing branch edges:\n%s", a.String())
	}
}

func TestFormatInstr(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Run)
	call := g.Instrs(1)[2]
	got := ir.FormatInstr(g, call)
	want := "%4:I = invoke-static " + testkit.MainClass + "->add(II)I %2, %3"
	if got != want {
		t.Errorf("FormatInstr = %q, want %q", got, want)
	}
}
