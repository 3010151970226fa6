package pass_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"codeweave/internal/blacklist"
	"codeweave/internal/dex"
	"codeweave/internal/inject"
	"codeweave/internal/ir"
	"codeweave/internal/literal"
	"codeweave/internal/pass"
	"codeweave/internal/resolve"
	"codeweave/internal/synth"
	"codeweave/internal/testkit"
	"codeweave/internal/trace"
)

// recorder counts hook invocations and optionally injects a call at entry.
type recorder struct {
	name     string
	setups   atomic.Int32
	runs     atomic.Int32
	setupErr error
	run      func(p *pass.Pass) error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) SetupModule(*pass.Pass) error {
	r.setups.Add(1)
	return r.setupErr
}

func (r *recorder) RunModule(p *pass.Pass) error {
	r.runs.Add(1)
	if r.run != nil {
		return r.run(p)
	}
	return nil
}

func env(t *testing.T, tr trace.Tracer) pass.Env {
	t.Helper()
	reg, err := inject.NewRegistry(inject.Definition{
		Name:   "enter",
		Target: testkit.MainClass + "->*",
		Method: testkit.CodeLibTrace,
		Args:   []inject.Arg{inject.LitArg(literal.NewInteger(1)), inject.LitArg(literal.NewBoolean(true))},
	})
	if err != nil {
		t.Fatal(err)
	}
	return pass.Env{
		Globals:         pass.NewGlobals(),
		Blacklist:       blacklist.Default(),
		CodeLib:         synth.CodeLib{Class: testkit.CodeLibClass, Instance: testkit.CodeLibInstance},
		CodeLibLocation: testkit.CodeLibLocation,
		Registry:        reg,
		Tracer:          tr,
		Version:         "test",
	}
}

func TestRun_Instruments(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Run)
	ring := trace.NewRingTracer(64, trace.LevelDetail)
	e := env(t, ring)
	m := &recorder{name: "rec"}

	p := pass.New(g, e, m)
	out, err := p.Run()
	if err != nil || out != pass.Instrumented {
		t.Fatalf("Run = %v, %v", out, err)
	}
	if p.Ordinal() != 1 || e.Globals.Methods() != 1 {
		t.Errorf("ordinal = %d, methods = %d", p.Ordinal(), e.Globals.Methods())
	}
	if p.Method() == nil || p.Method().Name != testkit.MainClass+"->run()V" {
		t.Errorf("Method = %+v", p.Method())
	}
	begins := ring.Named("rec")
	if len(begins) != 2 || begins[1].Extra["method"] != testkit.MainClass+"->run()V" || begins[1].Extra["location"] != testkit.AppLocation || begins[1].Extra["ordinal"] != "1" {
		t.Errorf("method events = %+v", begins)
	}
	if len(ring.Named("setup")) != 1 || len(ring.Named("setup done")) != 1 {
		t.Error("global setup not traced once")
	}
	if v := ring.Named("version"); len(v) != 1 || v[0].Detail != "test" || v[0].Extra["injections"] != "1" {
		t.Errorf("version events = %+v", v)
	}
	if len(ring.Named("injection")) != 1 {
		t.Error("registry not dumped")
	}
	p.Close()
	if p.Method() != nil || p.Synth() != nil {
		t.Error("Close kept per-method state")
	}
}

func TestRun_SkipsLeaveGraphAndCounterAlone(t *testing.T) {
	app := testkit.NewApp(t)
	codelib := testkit.NewCodeLib(t)

	tests := []struct {
		name  string
		graph func() *ir.Graph
		env   func(pass.Env) pass.Env
		want  pass.Outcome
	}{
		{
			name:  "blacklisted",
			graph: func() *ir.Graph { return testkit.Graph(t, app.Binary, app.Run) },
			env: func(e pass.Env) pass.Env {
				e.Blacklist = blacklist.New(blacklist.Entries{Exact: []string{testkit.MainClass + "->run()V"}})
				return e
			},
			want: pass.SkippedBlacklist,
		},
		{
			name:  "codelib method in app binary",
			graph: func() *ir.Graph { return testkit.Graph(t, app.Binary, app.Entered) },
			env:   func(e pass.Env) pass.Env { return e },
			want:  pass.SkippedBlacklist,
		},
		{
			name: "codelib binary",
			graph: func() *ir.Graph {
				return testkit.Graph(t, codelib, resolve.FindMethodIdx(codelib, testkit.CodeLibEntered))
			},
			env: func(e pass.Env) pass.Env {
				e.Blacklist = nil
				return e
			},
			want: pass.SkippedCodeLib,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.graph()
			before := testkit.Snapshot(g)
			n := g.NumInstrs()
			e := tt.env(env(t, trace.Nop))
			m := &recorder{name: "rec", run: func(p *pass.Pass) error {
				_, err := p.GetCodeLib(ir.NoInstrID)
				return err
			}}
			out, err := pass.New(g, e, m).Run()
			if err != nil || out != tt.want {
				t.Fatalf("Run = %v, %v; want %v", out, err, tt.want)
			}
			if e.Globals.Methods() != 0 || m.runs.Load() != 0 || m.setups.Load() != 0 {
				t.Errorf("skipped method counted or ran: methods=%d runs=%d", e.Globals.Methods(), m.runs.Load())
			}
			if g.NumInstrs() != n {
				t.Errorf("graph changed")
			}
			if err := testkit.CheckPreserved(g, before); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestNew_VersionLoggedOnce(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelPhase)
	e := env(t, ring)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pass.New(nil, e, &recorder{name: "rec"})
		}()
	}
	wg.Wait()
	if got := len(ring.Named("version")); got != 1 {
		t.Errorf("version emitted %d times, want 1", got)
	}
}

func TestRun_ConcurrentCounter(t *testing.T) {
	app := testkit.NewApp(t)
	ring := trace.NewRingTracer(1024, trace.LevelPhase)
	e := env(t, ring)
	m := &recorder{name: "rec"}

	const methods = 50
	graphs := make([]*ir.Graph, methods)
	for i := range graphs {
		graphs[i] = testkit.Graph(t, app.Binary, app.Add)
	}
	ordinals := make([]uint64, methods)
	errs := make([]error, methods)
	var wg sync.WaitGroup
	for i, g := range graphs {
		i, g := i, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := pass.New(g, e, m)
			defer p.Close()
			_, errs[i] = p.Run()
			ordinals[i] = p.Ordinal()
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		t.Fatal(err)
	}
	if got := e.Globals.Methods(); got != methods {
		t.Errorf("counter = %d, want %d", got, methods)
	}
	seen := make(map[uint64]bool, methods)
	for _, o := range ordinals {
		if o < 1 || o > methods || seen[o] {
			t.Errorf("ordinal %d duplicated or out of range", o)
		}
		seen[o] = true
	}
	if m.setups.Load() != 1 || m.runs.Load() != methods {
		t.Errorf("setups = %d, runs = %d", m.setups.Load(), m.runs.Load())
	}
	if len(ring.Named("setup")) != 1 {
		t.Errorf("global setup ran %d times", len(ring.Named("setup")))
	}
}

func TestGetCodeLib_Cached(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Run)
	before := testkit.Snapshot(g)
	var first, second ir.InstrID
	grown := 0
	m := &recorder{name: "rec", run: func(p *pass.Pass) error {
		n := p.Graph().NumInstrs()
		var err error
		if first, err = p.GetCodeLib(ir.NoInstrID); err != nil {
			return err
		}
		if second, err = p.GetCodeLib(ir.NoInstrID); err != nil {
			return err
		}
		grown = p.Graph().NumInstrs() - n
		return nil
	}}
	if _, err := pass.New(g, env(t, trace.Nop), m).Run(); err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("handles differ: %d, %d", first, second)
	}
	if grown != 2 {
		t.Errorf("graph grew by %d nodes, want 2 (one synthesis)", grown)
	}
	if g.Instr(first).Block != g.Entry() {
		t.Errorf("handle not in entry block")
	}
	if err := testkit.CheckPreserved(g, before); err != nil {
		t.Fatal(err)
	}
}

func TestGetCodeLib_PerBlock(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Check)
	before := testkit.Snapshot(g)
	e := env(t, trace.Nop)
	e.Handles = pass.HandlePerBlock
	handles := map[ir.BlockID]ir.InstrID{}
	m := &recorder{name: "rec", run: func(p *pass.Pass) error {
		for _, b := range []ir.BlockID{2, 3, 2} {
			ret := p.Graph().Block(b).Last()
			h, err := p.GetCodeLib(ret)
			if err != nil {
				return err
			}
			if prev, ok := handles[b]; ok && prev != h {
				t.Errorf("bb%d: second handle %d, want %d", b, h, prev)
			}
			handles[b] = h
			if _, err := p.Synth().InjectMethodCall(ret, testkit.CodeLibEntered,
				[]synth.Arg{synth.Value(h), synth.Lit(literal.NewInteger(int32(b)))}, "V", true); err != nil {
				return err
			}
		}
		return nil
	}}
	if _, err := pass.New(g, e, m).Run(); err != nil {
		t.Fatal(err)
	}
	if handles[2] == handles[3] || g.Instr(handles[2]).Block != 2 || g.Instr(handles[3]).Block != 3 {
		t.Errorf("handles = %v", handles)
	}
	if err := testkit.CheckPreserved(g, before); err != nil {
		t.Fatal(err)
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := pass.New(nil, env(t, trace.Nop), &recorder{name: "rec"}).Run(); !errors.Is(err, pass.ErrPrecondition) {
		t.Errorf("nil graph: err = %v", err)
	}

	app := testkit.NewApp(t)
	empty := ir.NewGraph(app.Binary, app.Run)
	if _, err := pass.New(empty, env(t, trace.Nop), &recorder{name: "rec"}).Run(); !errors.Is(err, pass.ErrPrecondition) {
		t.Errorf("no entry block: err = %v", err)
	}

	ring := trace.NewRingTracer(64, trace.LevelError)
	g := testkit.Graph(t, app.Binary, app.Run)
	m := &recorder{name: "bad", run: func(p *pass.Pass) error {
		cursor := p.Graph().Instrs(1)[0]
		_, err := p.Synth().InjectMethodCall(cursor, "foo(IZ)V", []synth.Arg{synth.Lit(literal.NewLong(1))}, "V", true)
		return err
	}}
	_, err := pass.New(g, env(t, ring), m).Run()
	var mm *synth.MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want MismatchError", err)
	}
	if len(ring.Named("bad")) != 1 || ring.Named("bad")[0].Kind != trace.KindError {
		t.Errorf("mismatch not traced at error level: %+v", ring.Snapshot())
	}
}

func TestGetCodeLib_OutsideRun(t *testing.T) {
	app := testkit.NewApp(t)
	p := pass.New(testkit.Graph(t, app.Binary, app.Run), env(t, trace.Nop), &recorder{name: "rec"})
	if _, err := p.GetCodeLib(ir.NoInstrID); !errors.Is(err, pass.ErrPrecondition) {
		t.Errorf("err = %v", err)
	}
}

func TestParseHandlePolicy(t *testing.T) {
	if h, err := pass.ParseHandlePolicy("per-block"); err != nil || h != pass.HandlePerBlock {
		t.Errorf("ParseHandlePolicy = %v, %v", h, err)
	}
	if _, err := pass.ParseHandlePolicy("each"); err == nil {
		t.Error("accepted unknown policy")
	}
}

func TestFlag_TestAndSet(t *testing.T) {
	var f pass.Flag
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.TestAndSet() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if winners.Load() != 1 || !f.IsSet() {
		t.Errorf("winners = %d", winners.Load())
	}
}

func TestRun_ModulesShareOrdinal(t *testing.T) {
	app := testkit.NewApp(t)
	e := env(t, trace.Nop)
	var seen []uint64
	record := func(p *pass.Pass) error {
		seen = append(seen, p.Ordinal())
		return nil
	}
	first, second := &recorder{name: "a", run: record}, &recorder{name: "b", run: record}
	for _, idx := range []dex.MethodIdx{app.Run, app.Straight} {
		if _, err := pass.New(testkit.Graph(t, app.Binary, idx), e, first, second).Run(); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) != 4 || seen[0] != 1 || seen[1] != 1 || seen[2] != 2 || seen[3] != 2 {
		t.Errorf("ordinals = %v, want [1 1 2 2]", seen)
	}
	if got := e.Globals.Methods(); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}

	failing := &recorder{name: "c", run: func(*pass.Pass) error { return errors.New("boom") }}
	if _, err := pass.New(testkit.Graph(t, app.Binary, app.Add), e, first, failing).Run(); err == nil {
		t.Fatal("failing module succeeded")
	}
	if got := e.Globals.Methods(); got != 2 {
		t.Errorf("counter = %d after a failed method, want 2", got)
	}
}

func TestRun_FailedSetupDisablesModule(t *testing.T) {
	app := testkit.NewApp(t)
	e := env(t, trace.Nop)
	m := &recorder{name: "fs", setupErr: errors.New("boom")}
	for i := 0; i < 2; i++ {
		out, err := pass.New(testkit.Graph(t, app.Binary, app.Run), e, m).Run()
		if !errors.Is(err, pass.ErrSetupFailed) || out == pass.Instrumented {
			t.Fatalf("run %d: Run = %v, %v; want ErrSetupFailed", i, out, err)
		}
	}
	if m.setups.Load() != 1 || m.runs.Load() != 0 || e.Globals.Methods() != 0 {
		t.Errorf("setups = %d, runs = %d, counter = %d", m.setups.Load(), m.runs.Load(), e.Globals.Methods())
	}
}

func TestHandleFor_EntryBlockCursor(t *testing.T) {
	for _, policy := range []pass.HandlePolicy{pass.HandleShared, pass.HandlePerBlock} {
		t.Run(policy.String(), func(t *testing.T) {
			app := testkit.NewApp(t)
			g := testkit.Graph(t, app.Binary, app.Straight)
			before := testkit.Snapshot(g)
			invoke := before[0][3]
			e := env(t, trace.Nop)
			e.Handles = policy
			var h ir.InstrID
			m := &recorder{name: "rec", run: func(p *pass.Pass) error {
				var err error
				if h, err = p.HandleFor(invoke); err != nil {
					return err
				}
				_, err = p.Synth().InjectMethodCall(invoke, testkit.CodeLibCallSite,
					[]synth.Arg{synth.Value(h), synth.Lit(literal.NewInteger(1)), synth.Lit(literal.NewInteger(0))}, "V", true)
				return err
			}}
			if _, err := pass.New(g, e, m).Run(); err != nil {
				t.Fatal(err)
			}
			if err := testkit.CheckPreserved(g, before); err != nil {
				t.Fatal(err)
			}
			// load-class and sget go right after the parameter
			if ids := g.Instrs(0); ids[2] != h || !g.Precedes(h, before[0][1]) {
				t.Errorf("handle %%%d not at the top of the block: %v", h, ids)
			}
		})
	}
}

func TestHandleFor_CachedHandleAfterCursor(t *testing.T) {
	app := testkit.NewApp(t)
	g := testkit.Graph(t, app.Binary, app.Straight)
	invoke := g.Instrs(0)[3]
	m := &recorder{name: "rec", run: func(p *pass.Pass) error {
		// anchored before return-void, after the invoke
		if _, err := p.GetCodeLib(ir.NoInstrID); err != nil {
			return err
		}
		_, err := p.HandleFor(invoke)
		return err
	}}
	if _, err := pass.New(g, env(t, trace.Nop), m).Run(); !errors.Is(err, pass.ErrHandleOrder) {
		t.Errorf("err = %v, want ErrHandleOrder", err)
	}
}
