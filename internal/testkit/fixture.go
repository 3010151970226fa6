package testkit

import (
	"testing"

	"codeweave/internal/dex"
	"codeweave/internal/ir"
	"codeweave/internal/literal"
)

// Locations and names shared by the fixtures.
const (
	AppLocation     = "/data/app/com.example.app/base.apk!classes.dex"
	CodeLibLocation = "/system/framework/codelib.apk!classes.dex"
	CodeLibClass    = "Lcodeweave/codelib/CodeLib;"
	CodeLibInstance = "INSTANCE"
	MainClass       = "Lcom/example/app/Main;"
)

// Codelib entry points referenced by the app fixture.
const (
	CodeLibFoo      = CodeLibClass + "->foo(IZ)V"
	CodeLibCounter  = CodeLibClass + "->counter(J)J"
	CodeLibEntered  = CodeLibClass + "->methodEntered(I)V"
	CodeLibCallSite = CodeLibClass + "->callSite(II)V"
	CodeLibTrace    = CodeLibClass + "->trace(IZ)V"
)

// App is a small application binary with the codelib class merged into it.
type App struct {
	Binary   *dex.Binary
	Run      dex.MethodIdx // instance ()V: two constants, two calls
	Add      dex.MethodIdx // static (II)I
	Check    dex.MethodIdx // static (Z)V with a branch
	Straight dex.MethodIdx // static (I)V, one block calling add
	Native   dex.MethodIdx // native, no code
	NanoTime dex.MethodIdx // java.lang.System.nanoTime, native
	Entered  dex.MethodIdx // codelib, has code
}

// NewApp builds the application fixture.
func NewApp(tb testing.TB) *App {
	tb.Helper()
	bd := dex.NewBuilder(AppLocation)
	must := func(idx dex.MethodIdx, err error) dex.MethodIdx {
		tb.Helper()
		if err != nil {
			tb.Fatalf("fixture: %v", err)
		}
		return idx
	}

	a := &App{}
	a.Add = must(bd.Method(MainClass + "->add(II)I"))
	a.NanoTime = must(bd.Method("Ljava/lang/System;->nanoTime()J"))
	a.Run = must(bd.Method(MainClass + "->run()V"))
	a.Check = must(bd.Method(MainClass + "->check(Z)V"))
	a.Straight = must(bd.Method(MainClass + "->straight(I)V"))

	runCode := &dex.Code{Blocks: []dex.CodeBlock{
		{
			Insns: []dex.Insn{
				{ID: 0, Op: "parameter", Type: "L", Index: 0},
				{ID: 1, Op: "goto"},
			},
			Succs: []int32{1},
		},
		{
			Insns: []dex.Insn{
				{ID: 2, Op: "const", Type: "I", Const: literal.Bits(literal.NewInteger(1))},
				{ID: 3, Op: "const", Type: "I", Const: literal.Bits(literal.NewInteger(2))},
				{ID: 4, Op: "invoke-static", Type: "I", Index: int64(a.Add), Operands: []int32{2, 3}},
				{ID: 5, Op: "invoke-static", Type: "J", Index: int64(a.NanoTime)},
				{ID: 6, Op: "return-void"},
			},
		},
	}}
	addCode := &dex.Code{Blocks: []dex.CodeBlock{
		{
			Insns: []dex.Insn{
				{ID: 0, Op: "parameter", Type: "I", Index: 0},
				{ID: 1, Op: "parameter", Type: "I", Index: 1},
				{ID: 2, Op: "goto"},
			},
			Succs: []int32{1},
		},
		{
			Insns: []dex.Insn{
				{ID: 3, Op: "add", Type: "I", Operands: []int32{0, 1}},
				{ID: 4, Op: "return", Operands: []int32{3}},
			},
		},
	}}
	checkCode := &dex.Code{Blocks: []dex.CodeBlock{
		{
			Insns: []dex.Insn{
				{ID: 0, Op: "parameter", Type: "Z", Index: 0},
				{ID: 1, Op: "goto"},
			},
			Succs: []int32{1},
		},
		{
			Insns: []dex.Insn{{ID: 2, Op: "if", Operands: []int32{0}}},
			Succs: []int32{2, 3},
		},
		{Insns: []dex.Insn{{ID: 3, Op: "return-void"}}},
		{Insns: []dex.Insn{{ID: 4, Op: "return-void"}}},
	}}
	straightCode := &dex.Code{Blocks: []dex.CodeBlock{
		{
			Insns: []dex.Insn{
				{ID: 0, Op: "parameter", Type: "I", Index: 0},
				{ID: 1, Op: "const", Type: "I", Const: literal.Bits(literal.NewInteger(3))},
				{ID: 2, Op: "const", Type: "I", Const: literal.Bits(literal.NewInteger(4))},
				{ID: 3, Op: "invoke-static", Type: "I", Index: int64(a.Add), Operands: []int32{1, 2}},
				{ID: 4, Op: "return-void"},
			},
		},
	}}

	must(bd.Define(MainClass+"->run()V", dex.AccPublic, runCode))
	must(bd.Define(MainClass+"->add(II)I", dex.AccPublic|dex.AccStatic, addCode))
	must(bd.Define(MainClass+"->check(Z)V", dex.AccPublic|dex.AccStatic, checkCode))
	must(bd.Define(MainClass+"->straight(I)V", dex.AccPublic|dex.AccStatic, straightCode))
	a.Native = must(bd.Define(MainClass+"->nativeHash(I)I", dex.AccPublic|dex.AccStatic|dex.AccNative, nil))
	must(bd.Define("Ljava/lang/System;->nanoTime()J", dex.AccPublic|dex.AccStatic|dex.AccNative, nil))

	defineCodeLib(tb, bd)
	a.Entered = must(bd.Method(CodeLibEntered))
	a.Binary = bd.Binary()
	return a
}

// NewCodeLib builds a binary that is the codelib itself.
func NewCodeLib(tb testing.TB) *dex.Binary {
	tb.Helper()
	bd := dex.NewBuilder(CodeLibLocation)
	defineCodeLib(tb, bd)
	return bd.Binary()
}

func defineCodeLib(tb testing.TB, bd *dex.Builder) {
	tb.Helper()
	bd.Class(CodeLibClass, dex.AccPublic|dex.AccFinal)
	bd.Field(CodeLibClass, CodeLibInstance, CodeLibClass)
	ret := &dex.Code{Blocks: []dex.CodeBlock{
		{
			Insns: []dex.Insn{
				{ID: 0, Op: "parameter", Type: "L", Index: 0},
				{ID: 1, Op: "parameter", Type: "I", Index: 1},
				{ID: 2, Op: "return-void"},
			},
		},
	}}
	defs := []struct {
		sig   string
		flags uint32
		code  *dex.Code
	}{
		{CodeLibFoo, dex.AccPublic | dex.AccStatic, nil},
		{CodeLibCounter, dex.AccPublic | dex.AccStatic, nil},
		{CodeLibTrace, dex.AccPublic | dex.AccStatic, nil},
		{CodeLibEntered, dex.AccPublic, ret},
		{CodeLibCallSite, dex.AccPublic, nil},
	}
	for _, d := range defs {
		if _, err := bd.Define(d.sig, d.flags, d.code); err != nil {
			tb.Fatalf("fixture: %v", err)
		}
	}
}

// Graph builds the graph of method idx and fails the test on error.
func Graph(tb testing.TB, bin *dex.Binary, idx dex.MethodIdx) *ir.Graph {
	tb.Helper()
	g, err := ir.Build(bin, idx)
	if err != nil {
		tb.Fatalf("build graph: %v", err)
	}
	if err := ir.Validate(g); err != nil {
		tb.Fatalf("fixture graph invalid: %v", err)
	}
	return g
}
