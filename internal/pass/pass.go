// Package pass runs the instrumentation modules over one method compilation.
//
// A Pass is created per method by the host. It decides whether the method
// may be instrumented at all, performs the process-wide one-time setup, and
// hands the method's graph to each module together with the tools it needs:
// the method descriptor, a synthesizer bound to the graph, and a lazily
// injected codelib instance handle.
package pass

import (
	"errors"
	"fmt"
	"strconv"

	"codeweave/internal/blacklist"
	"codeweave/internal/dex"
	"codeweave/internal/inject"
	"codeweave/internal/ir"
	"codeweave/internal/synth"
	"codeweave/internal/trace"
)

var (
	// ErrPrecondition reports a pass invoked without a usable graph.
	ErrPrecondition = errors.New("pass precondition violated")
	// ErrSetupFailed reports a module whose one-time setup failed earlier in
	// the process. The module does not run again.
	ErrSetupFailed = errors.New("module setup failed")
	// ErrHandleOrder reports a codelib handle that is not available at the
	// cursor asking for it.
	ErrHandleOrder = errors.New("codelib handle does not dominate cursor")
)

// Module is the extension point: one kind of instrumentation.
type Module interface {
	// Name identifies the module; SetupModule runs once per name per process.
	Name() string
	// SetupModule runs before the first RunModule of this module.
	SetupModule(p *Pass) error
	// RunModule instruments the method of p.
	RunModule(p *Pass) error
}

// HandlePolicy decides how many codelib instance loads a method gets.
type HandlePolicy uint8

const (
	// HandleShared loads the instance once per method, in the entry block.
	HandleShared HandlePolicy = iota
	// HandlePerBlock loads the instance once per block that asks for it,
	// at the top of that block.
	HandlePerBlock
)

// String returns the string representation of HandlePolicy.
func (h HandlePolicy) String() string {
	if h == HandlePerBlock {
		return "per-block"
	}
	return "shared"
}

// ParseHandlePolicy converts "shared" or "per-block" to a HandlePolicy.
func ParseHandlePolicy(s string) (HandlePolicy, error) {
	switch s {
	case "", "shared":
		return HandleShared, nil
	case "per-block":
		return HandlePerBlock, nil
	}
	return HandleShared, fmt.Errorf("invalid handle policy: %q (expected: shared|per-block)", s)
}

// Env is everything a pass shares with the other passes of the process.
type Env struct {
	Globals         *Globals
	Blacklist       *blacklist.Filter
	CodeLib         synth.CodeLib
	CodeLibLocation string
	Handles         HandlePolicy
	Registry        *inject.Registry
	Tracer          trace.Tracer
	Version         string
}

// Outcome is what Run did with the method.
type Outcome uint8

const (
	// Instrumented means every module ran.
	Instrumented Outcome = iota + 1
	// SkippedBlacklist means the method matched the blacklist.
	SkippedBlacklist
	// SkippedCodeLib means the method belongs to the codelib itself.
	SkippedCodeLib
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case Instrumented:
		return "instrumented"
	case SkippedBlacklist:
		return "skipped:blacklist"
	case SkippedCodeLib:
		return "skipped:codelib"
	default:
		return "none"
	}
}

// Pass is the modules of a run applied to one method. It is not safe for
// concurrent use; the host creates one per method compilation.
type Pass struct {
	env     Env
	modules []Module
	graph   *ir.Graph
	method  *dex.MethodDescriptor
	synth   *synth.Synth
	handles map[ir.BlockID]ir.InstrID
	ordinal uint64
}

// New prepares modules for graph g; they run in order and share the method
// ordinal and the codelib handles. The first construction in the process
// also records the version and the registered injection definitions.
func New(g *ir.Graph, env Env, modules ...Module) *Pass {
	if env.Globals == nil {
		env.Globals = NewGlobals()
	}
	if env.Tracer == nil {
		env.Tracer = trace.Nop
	}
	p := &Pass{env: env, modules: modules, graph: g}
	if env.Globals.versionLog.TestAndSet() {
		p.logVersion()
	}
	return p
}

func (p *Pass) logVersion() {
	t := p.env.Tracer
	trace.Point(t, trace.ScopePass, "version", p.env.Version, map[string]string{
		"injections": strconv.Itoa(p.env.Registry.Len()),
		"handles":    p.env.Handles.String(),
	})
	for _, d := range p.env.Registry.All() {
		trace.Point(t, trace.ScopePass, "injection", d.String(), nil)
	}
}

// Run instruments the method unless it is blacklisted or part of the codelib.
// A skipped method is left untouched and does not count as instrumented.
func (p *Pass) Run() (Outcome, error) {
	if p.graph == nil {
		return 0, fmt.Errorf("%w: nil graph", ErrPrecondition)
	}
	if p.graph.EntryBlock() == nil {
		return 0, fmt.Errorf("%w: %s has no entry block", ErrPrecondition, p.graph.QualifiedName())
	}
	t := p.env.Tracer
	name := p.graph.QualifiedName()
	if p.env.Blacklist.Matches(name) {
		trace.Point(t, trace.ScopeMethod, "skip", name, map[string]string{"reason": "blacklist"})
		return SkippedBlacklist, nil
	}
	if p.env.CodeLibLocation != "" && p.graph.Location() == p.env.CodeLibLocation {
		trace.Point(t, trace.ScopeMethod, "skip", name, map[string]string{"reason": "codelib"})
		return SkippedCodeLib, nil
	}

	desc, err := p.graph.Binary().Describe(p.graph.MethodIdx())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	p.method = desc
	p.synth = synth.New(p.graph, p.env.CodeLib)
	p.ordinal = p.env.Globals.nextOrdinal()

	p.setup()
	for _, m := range p.modules {
		if err := p.runModule(m, name); err != nil {
			return 0, err
		}
	}
	p.env.Globals.instrumented()
	return Instrumented, nil
}

func (p *Pass) runModule(m Module, name string) error {
	t := p.env.Tracer
	span := trace.Begin(t, trace.ScopeMethod, m.Name(), 0).
		WithExtra("ordinal", strconv.FormatUint(p.ordinal, 10)).
		WithExtra("method", name).
		WithExtra("location", p.graph.Location())

	state := p.env.Globals.moduleSetup(m.Name())
	if state.claim() {
		trace.Point(t, trace.ScopePass, "module setup", m.Name(), nil)
		if err := m.SetupModule(p); err != nil {
			state.fail()
			err = fmt.Errorf("setup module %s: %w: %w", m.Name(), ErrSetupFailed, err)
			trace.Error(t, trace.ScopePass, "module setup", err, nil)
			span.End("failed")
			return err
		}
	}
	if state.failed() {
		span.End("failed")
		return fmt.Errorf("%s: %s: %w", m.Name(), name, ErrSetupFailed)
	}
	if err := m.RunModule(p); err != nil {
		err = fmt.Errorf("%s: %s: %w", m.Name(), name, err)
		trace.Error(t, trace.ScopeMethod, m.Name(), err, map[string]string{
			"ordinal": strconv.FormatUint(p.ordinal, 10),
		})
		span.End("failed")
		return err
	}
	span.End(Instrumented.String())
	return nil
}

// setup runs the process-wide one-time setup.
func (p *Pass) setup() {
	if !p.env.Globals.globalSetup.TestAndSet() {
		return
	}
	trace.Point(p.env.Tracer, trace.ScopePass, "setup", "", nil)
	trace.Point(p.env.Tracer, trace.ScopePass, "setup done", fmt.Sprintf("codelib %s (%s)", p.env.CodeLib.Class, p.env.CodeLibLocation), nil)
}

// GetCodeLib returns the codelib instance handle for code at cursor,
// injecting it on first use. Without a cursor (ir.NoInstrID) the handle is
// anchored at the end of the entry block; with one under HandleShared it is
// inserted before the cursor. Under HandlePerBlock each block gets its own
// handle at its top. Later calls return the cached handle.
func (p *Pass) GetCodeLib(cursor ir.InstrID) (ir.InstrID, error) {
	if p.synth == nil {
		return ir.NoInstrID, fmt.Errorf("%w: GetCodeLib outside Run", ErrPrecondition)
	}
	if p.handles == nil {
		p.handles = make(map[ir.BlockID]ir.InstrID)
	}
	key, anchor := ir.NoBlockID, cursor
	if p.env.Handles == HandlePerBlock {
		key = p.graph.Entry()
		if in := p.graph.Instr(cursor); in != nil {
			key = in.Block
		}
		anchor = firstNonParameter(p.graph, key)
		if anchor == ir.NoInstrID {
			return ir.NoInstrID, fmt.Errorf("%w: bb%d has no instruction to anchor at", synth.ErrNoAnchor, key)
		}
	}
	if h, ok := p.handles[key]; ok {
		return h, nil
	}
	h, err := p.synth.InjectCodeLib(anchor, false)
	if err != nil {
		return ir.NoInstrID, err
	}
	trace.Point(p.env.Tracer, trace.ScopeNode, "codelib", ir.FormatInstr(p.graph, h), nil)
	p.handles[key] = h
	return h, nil
}

// HandleFor returns the handle a call inserted at cursor should use: the
// method-wide handle under HandleShared, the cursor block's under
// HandlePerBlock. A shared handle created here goes before the first
// non-parameter instruction of the entry block, so it is defined before
// every cursor of the method. A handle cached by an earlier GetCodeLib that
// comes after cursor in its block is an ErrHandleOrder.
func (p *Pass) HandleFor(cursor ir.InstrID) (ir.InstrID, error) {
	anchor := cursor
	if p.env.Handles == HandleShared {
		anchor = ir.NoInstrID
		if _, ok := p.handles[ir.NoBlockID]; !ok {
			if anchor = firstNonParameter(p.graph, p.graph.Entry()); anchor == ir.NoInstrID {
				return ir.NoInstrID, fmt.Errorf("%w: entry block has no instruction to anchor at", synth.ErrNoAnchor)
			}
		}
	}
	h, err := p.GetCodeLib(anchor)
	if err != nil {
		return ir.NoInstrID, err
	}
	if !p.dominates(h, cursor) {
		return ir.NoInstrID, fmt.Errorf("%w: %%%d at %s", ErrHandleOrder, h, ir.FormatInstr(p.graph, cursor))
	}
	return h, nil
}

// dominates reports whether the value of h is available at cursor: h comes
// earlier in the cursor's block, or sits in the entry block while cursor
// does not.
func (p *Pass) dominates(h, cursor ir.InstrID) bool {
	hi, ci := p.graph.Instr(h), p.graph.Instr(cursor)
	if ci == nil {
		return true
	}
	if hi.Block == ci.Block {
		return p.graph.Precedes(h, cursor)
	}
	return hi.Block == p.graph.Entry()
}

func firstNonParameter(g *ir.Graph, b ir.BlockID) ir.InstrID {
	for _, id := range g.Instrs(b) {
		if g.Instr(id).Op != ir.OpParameter {
			return id
		}
	}
	return ir.NoInstrID
}

// Close releases the method descriptor and the handle cache. Graph nodes
// are left as they are.
func (p *Pass) Close() {
	p.method = nil
	p.synth = nil
	p.handles = nil
}

// Graph returns the graph under instrumentation.
func (p *Pass) Graph() *ir.Graph { return p.graph }

// Method returns the descriptor of the method, resolved by Run.
func (p *Pass) Method() *dex.MethodDescriptor { return p.method }

// Synth returns the synthesizer bound to the graph.
func (p *Pass) Synth() *synth.Synth { return p.synth }

// Ordinal returns the 1-based ordinal of the method compilation, 0 before
// Run. Every module of the pass sees the same ordinal.
func (p *Pass) Ordinal() uint64 { return p.ordinal }

// Registry returns the injection definitions.
func (p *Pass) Registry() *inject.Registry { return p.env.Registry }

// Tracer returns the diagnostic sink.
func (p *Pass) Tracer() trace.Tracer { return p.env.Tracer }

// Binary returns the binary of the method.
func (p *Pass) Binary() *dex.Binary { return p.graph.Binary() }
