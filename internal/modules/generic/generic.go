// Package generic applies the injection definitions of the registry to
// every method they target.
package generic

import (
	"fmt"

	"codeweave/internal/dex"
	"codeweave/internal/inject"
	"codeweave/internal/ir"
	"codeweave/internal/pass"
	"codeweave/internal/resolve"
	"codeweave/internal/synth"
	"codeweave/internal/trace"
)

// Name is the module name used in configuration.
const Name = "generic"

// Module injects registry definitions. It is stateless and may be shared.
type Module struct{}

// New returns the generic module.
func New() Module { return Module{} }

func (Module) Name() string { return Name }

// SetupModule checks there is something to apply.
func (Module) SetupModule(p *pass.Pass) error {
	if p.Registry().Len() == 0 {
		trace.Point(p.Tracer(), trace.ScopePass, "generic", "no injection definitions", nil)
	}
	return nil
}

// RunModule applies every definition that targets the method, in registry
// order.
func (Module) RunModule(p *pass.Pass) error {
	for _, def := range p.Registry().For(p.Method().Name) {
		if err := apply(p, &def); err != nil {
			return fmt.Errorf("injection %s: %w", def.Name, err)
		}
	}
	return nil
}

func apply(p *pass.Pass, def *inject.Definition) error {
	g := p.Graph()
	idx := resolve.FindMethodIdx(g, def.Method)
	if idx == dex.NoMethodIdx {
		return fmt.Errorf("%w: %s", synth.ErrUnresolved, def.Method)
	}
	target, err := g.Binary().Describe(idx)
	if err != nil {
		return err
	}
	for _, cursor := range cursors(g, def.Point) {
		before := g.Instr(cursor).Op.IsTerminator()
		var args []synth.Arg
		if !target.IsStatic() {
			h, err := p.HandleFor(cursor)
			if err != nil {
				return err
			}
			args = append(args, synth.Value(h))
		}
		for _, a := range def.Args {
			if a.Lit != nil {
				args = append(args, synth.Lit(a.Lit))
				continue
			}
			param, err := parameter(g, a.Param)
			if err != nil {
				return err
			}
			args = append(args, synth.Value(param))
		}
		call, err := p.Synth().InjectMethodCall(cursor, target.Name, args, target.Return, before)
		if err != nil {
			return err
		}
		trace.Point(p.Tracer(), trace.ScopeNode, "inject", ir.FormatInstr(g, call), map[string]string{"definition": def.Name})
	}
	return nil
}

// cursors returns the instructions to insert at: the last instruction of the
// entry block, or every return.
func cursors(g *ir.Graph, point inject.Point) []ir.InstrID {
	if point == inject.PointEntry {
		if entry := g.EntryBlock(); !entry.Empty() {
			return []ir.InstrID{entry.Last()}
		}
		return nil
	}
	var out []ir.InstrID
	for b := 0; b < g.NumBlocks(); b++ {
		for _, id := range g.Instrs(ir.BlockID(b)) {
			if op := g.Instr(id).Op; op == ir.OpReturn || op == ir.OpReturnVoid {
				out = append(out, id)
			}
		}
	}
	return out
}

func parameter(g *ir.Graph, n int) (ir.InstrID, error) {
	for _, id := range g.Instrs(g.Entry()) {
		if in := g.Instr(id); in.Op == ir.OpParameter && in.Index == int64(n) {
			return id, nil
		}
	}
	return ir.NoInstrID, fmt.Errorf("method has no parameter %d", n)
}
