package synth_test

import (
	"errors"
	"testing"

	"codeweave/internal/ir"
	"codeweave/internal/literal"
	"codeweave/internal/synth"
	"codeweave/internal/testkit"
)

var lib = synth.CodeLib{Class: testkit.CodeLibClass, Instance: testkit.CodeLibInstance}

// run() is bb0 {param, goto} -> bb1 {const 1, const 2, invoke add, invoke nanoTime, return-void}.
func setup(t *testing.T) (*testkit.App, *ir.Graph, *synth.Synth) {
	t.Helper()
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Run)
	return app, g, synth.New(g, lib)
}

func TestInjectMethodCall_LiteralsBeforeCursor(t *testing.T) {
	_, g, s := setup(t)
	before := testkit.Snapshot(g)
	cursor := g.Instrs(1)[2] // invoke add

	call, err := s.InjectMethodCall(cursor, "foo(IZ)V",
		[]synth.Arg{synth.Lit(literal.NewInteger(42)), synth.Lit(literal.NewBoolean(true))}, "V", true)
	if err != nil {
		t.Fatalf("InjectMethodCall: %v", err)
	}
	if err := testkit.CheckPreserved(g, before); err != nil {
		t.Fatal(err)
	}
	added := testkit.Added(g, before, 1)
	if len(added) != 3 {
		t.Fatalf("added %d nodes, want 3", len(added))
	}
	c0, c1, inv := g.Instr(added[0]), g.Instr(added[1]), g.Instr(added[2])
	if c0.Op != ir.OpConst || c0.Const != literal.NewInteger(42) || c0.Type != ir.TypeInt {
		t.Errorf("first node = %s", ir.FormatInstr(g, added[0]))
	}
	if c1.Op != ir.OpConst || c1.Const != literal.NewBoolean(true) || c1.Type != ir.TypeBoolean {
		t.Errorf("second node = %s", ir.FormatInstr(g, added[1]))
	}
	if inv.ID != call || inv.Op != ir.OpInvokeStatic || inv.Type != ir.TypeVoid {
		t.Errorf("invoke = %s", ir.FormatInstr(g, call))
	}
	if len(inv.Operands) != 2 || inv.Operands[0] != c0.ID || inv.Operands[1] != c1.ID {
		t.Errorf("operands = %v", inv.Operands)
	}
	if inv.Next() != cursor {
		t.Errorf("invoke not immediately before cursor")
	}
	if g.Position(cursor) != 5 {
		t.Errorf("cursor position = %d, want 5", g.Position(cursor))
	}
}

func TestInjectMethodCall_AfterCursor(t *testing.T) {
	_, g, s := setup(t)
	before := testkit.Snapshot(g)
	cursor := g.Instrs(1)[2]

	call, err := s.InjectMethodCall(cursor, testkit.CodeLibCounter,
		[]synth.Arg{synth.Lit(literal.NewLong(7))}, "J", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := testkit.CheckPreserved(g, before); err != nil {
		t.Fatal(err)
	}
	ids := g.Instrs(1)
	if ids[3] != g.Instr(call).Operands[0] || ids[4] != call {
		t.Errorf("order = %v, want const then invoke right after cursor", ids)
	}
	if g.Instr(call).Type != ir.TypeLong {
		t.Errorf("invoke should define a long result")
	}
}

func TestInjectMethodCall_ReceiverFromCodeLib(t *testing.T) {
	_, g, s := setup(t)
	before := testkit.Snapshot(g)
	handle, err := s.InjectCodeLib(ir.NoInstrID, true)
	if err != nil {
		t.Fatal(err)
	}
	ret := g.Instrs(1)[4]
	call, err := s.InjectMethodCall(ret, testkit.CodeLibEntered,
		[]synth.Arg{synth.Value(handle), synth.Lit(literal.NewInteger(1))}, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if g.Instr(call).Op != ir.OpInvokeVirtual {
		t.Errorf("op = %s, want invoke-virtual", g.Instr(call).Op)
	}
	if err := testkit.CheckPreserved(g, before); err != nil {
		t.Fatal(err)
	}
}

func TestInjectMethodCall_Mismatch(t *testing.T) {
	tests := []struct {
		name string
		sig  string
		args []synth.Arg
		ret  string
		what string
	}{
		{"kind", "foo(IZ)V", []synth.Arg{synth.Lit(literal.NewLong(42)), synth.Lit(literal.NewBoolean(true))}, "V", "argument 0"},
		{"no implicit widening", "foo(IZ)V", []synth.Arg{synth.Lit(literal.NewShort(1)), synth.Lit(literal.NewBoolean(true))}, "V", "argument 0"},
		{"arity", "foo(IZ)V", []synth.Arg{synth.Lit(literal.NewInteger(1))}, "V", "arity"},
		{"return", "foo(IZ)V", []synth.Arg{synth.Lit(literal.NewInteger(1)), synth.Lit(literal.NewBoolean(false))}, "I", "return"},
		{"missing receiver", testkit.CodeLibEntered, []synth.Arg{synth.Lit(literal.NewInteger(1))}, "", "arity"},
		{"value type", testkit.CodeLibCounter, []synth.Arg{synth.Value(2)}, "", "argument 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g, s := setup(t)
			before := testkit.Snapshot(g)
			n := g.NumInstrs()
			_, err := s.InjectMethodCall(g.Instrs(1)[2], tt.sig, tt.args, tt.ret, true)
			var mm *synth.MismatchError
			if !errors.As(err, &mm) {
				t.Fatalf("err = %v, want *MismatchError", err)
			}
			if mm.What != tt.what {
				t.Errorf("What = %q, want %q", mm.What, tt.what)
			}
			if g.NumInstrs() != n {
				t.Errorf("nodes were created before the mismatch was reported")
			}
			if err := testkit.CheckPreserved(g, before); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestInjectMethodCall_Errors(t *testing.T) {
	_, g, s := setup(t)
	ret := g.Instrs(1)[4]
	if _, err := s.InjectMethodCall(ret, "foo(IZ)V",
		[]synth.Arg{synth.Lit(literal.NewInteger(1)), synth.Lit(literal.NewBoolean(true))}, "", false); !errors.Is(err, synth.ErrAfterTerminator) {
		t.Errorf("after terminator: err = %v", err)
	}
	if _, err := s.InjectMethodCall(ret, "bar()V", nil, "", true); !errors.Is(err, synth.ErrUnresolved) {
		t.Errorf("unresolved: err = %v", err)
	}
	if _, err := s.InjectMethodCall(ir.InstrID(99), "foo(IZ)V", nil, "", true); !errors.Is(err, ir.ErrNoInstr) {
		t.Errorf("bad cursor: err = %v", err)
	}
	if _, err := s.InjectMethodCall(ret, testkit.CodeLibCounter, []synth.Arg{synth.Value(99)}, "", true); !errors.Is(err, ir.ErrNoInstr) {
		t.Errorf("bad value: err = %v", err)
	}
}

func TestInjectMethodCall_ValueOrder(t *testing.T) {
	_, g, _ := setup(t)
	add := g.Instrs(1)[2] // defines the int result of add
	tests := []struct {
		name   string
		cursor ir.InstrID
		before bool
		ok     bool
	}{
		{"before an earlier instruction", g.Instrs(1)[0], true, false},
		{"before the defining instruction", add, true, false},
		{"after the defining instruction", add, false, true},
		{"before a later instruction", g.Instrs(1)[3], true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testkit.NewApp(t)
			g := testkit.Graph(t, app.Binary, app.Run)
			s := synth.New(g, lib)
			before := testkit.Snapshot(g)
			n := g.NumInstrs()
			_, err := s.InjectMethodCall(tt.cursor, testkit.CodeLibTrace,
				[]synth.Arg{synth.Value(add), synth.Lit(literal.NewBoolean(true))}, "V", tt.before)
			if !tt.ok {
				if !errors.Is(err, synth.ErrUseBeforeDef) {
					t.Fatalf("err = %v, want ErrUseBeforeDef", err)
				}
				if g.NumInstrs() != n {
					t.Error("rejected call created nodes")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if err := testkit.CheckPreserved(g, before); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestInjectCodeLib(t *testing.T) {
	t.Run("entry block end", func(t *testing.T) {
		_, g, s := setup(t)
		before := testkit.Snapshot(g)
		get, err := s.InjectCodeLib(ir.NoInstrID, false)
		if err != nil {
			t.Fatal(err)
		}
		if err := testkit.CheckPreserved(g, before); err != nil {
			t.Fatal(err)
		}
		// entry block ends with goto, so both nodes go before it
		ids := g.Instrs(0)
		if len(ids) != 4 || ids[2] != get || g.Instr(ids[3]).Op != ir.OpGoto {
			t.Fatalf("entry block = %v", ids)
		}
		load := g.Instr(ids[1])
		if load.Op != ir.OpLoadClass || g.Instr(get).Op != ir.OpStaticGet || g.Instr(get).Operands[0] != load.ID {
			t.Errorf("got %s; %s", ir.FormatInstr(g, load.ID), ir.FormatInstr(g, get))
		}
	})
	t.Run("at cursor", func(t *testing.T) {
		_, g, s := setup(t)
		cursor := g.Instrs(1)[3]
		get, err := s.InjectCodeLib(cursor, false)
		if err != nil {
			t.Fatal(err)
		}
		if g.Instr(get).Block != 1 || g.Instr(get).Next() != cursor {
			t.Errorf("handle not inserted right before cursor")
		}
	})
	t.Run("entry block forced", func(t *testing.T) {
		_, g, s := setup(t)
		get, err := s.InjectCodeLib(g.Instrs(1)[3], true)
		if err != nil {
			t.Fatal(err)
		}
		if g.Instr(get).Block != g.Entry() {
			t.Errorf("handle in bb%d, want entry", g.Instr(get).Block)
		}
	})
	t.Run("non-terminator anchor", func(t *testing.T) {
		app := testkit.NewApp(t)
		g := ir.NewGraph(app.Binary, app.Run)
		b := g.AddBlock()
		p, _ := g.Append(b, ir.Instr{Op: ir.OpParameter, Type: ir.TypeRef})
		get, err := synth.New(g, lib).InjectCodeLib(ir.NoInstrID, false)
		if err != nil {
			t.Fatal(err)
		}
		ids := g.Instrs(b)
		if ids[0] != p || ids[2] != get {
			t.Errorf("block = %v, want nodes after the anchor", ids)
		}
	})
	t.Run("unresolved", func(t *testing.T) {
		_, g, _ := setup(t)
		s := synth.New(g, synth.CodeLib{Class: "Lmissing/Lib;", Instance: "INSTANCE"})
		if _, err := s.InjectCodeLib(ir.NoInstrID, false); !errors.Is(err, synth.ErrUnresolved) {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("empty entry", func(t *testing.T) {
		app := testkit.NewApp(t)
		g := ir.NewGraph(app.Binary, app.Run)
		g.AddBlock()
		if _, err := synth.New(g, lib).InjectCodeLib(ir.NoInstrID, false); !errors.Is(err, synth.ErrNoAnchor) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestIsNativeMethod(t *testing.T) {
	_, g, _ := setup(t)
	ids := g.Instrs(1)
	if synth.IsNativeMethod(g, ids[2]) {
		t.Error("add is not native")
	}
	if !synth.IsNativeMethod(g, ids[3]) {
		t.Error("nanoTime is native")
	}
	if synth.IsNativeMethod(g, ids[0]) {
		t.Error("a constant is not an invoke")
	}
}
