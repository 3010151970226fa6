// Package callsite reports every call a method makes: before each invoke of
// a non-native method it calls the codelib with the method's ordinal and the
// position of the call site.
package callsite

import (
	"fmt"

	"fortio.org/safecast"

	"codeweave/internal/ir"
	"codeweave/internal/literal"
	"codeweave/internal/pass"
	"codeweave/internal/resolve"
	"codeweave/internal/synth"
	"codeweave/internal/trace"
)

// Name is the module name used in configuration.
const Name = "callsite"

// DefaultMethod is the codelib entry point, an instance method taking the
// method ordinal and the call site number.
const DefaultMethod = "Lcodeweave/codelib/CodeLib;->callSite(II)V"

// Module instruments call sites. It is stateless and may be shared.
type Module struct {
	method string
}

// New returns a module calling method, or DefaultMethod when empty.
func New(method string) *Module {
	if method == "" {
		method = DefaultMethod
	}
	return &Module{method: method}
}

func (*Module) Name() string { return Name }

func (m *Module) SetupModule(p *pass.Pass) error {
	trace.Point(p.Tracer(), trace.ScopePass, "callsite setup", m.method, nil)
	return nil
}

// RunModule inserts one report before every original invoke whose target is
// not native. Calls added by the module itself are not reported.
func (m *Module) RunModule(p *pass.Pass) error {
	g := p.Graph()
	var sites []ir.InstrID
	for b := 0; b < g.NumBlocks(); b++ {
		for _, id := range g.Instrs(ir.BlockID(b)) {
			if g.Instr(id).Op.IsInvoke() && !synth.IsNativeMethod(g, id) {
				sites = append(sites, id)
			}
		}
	}
	if len(sites) == 0 {
		return nil
	}
	ordinal, err := safecast.Conv[int32](p.Ordinal())
	if err != nil {
		return fmt.Errorf("method ordinal: %w", err)
	}
	for i, site := range sites {
		h, err := p.HandleFor(site)
		if err != nil {
			return err
		}
		n, err := safecast.Conv[int32](i)
		if err != nil {
			return err
		}
		args := []synth.Arg{synth.Value(h), synth.Lit(literal.NewInteger(ordinal)), synth.Lit(literal.NewInteger(n))}
		if _, err := p.Synth().InjectMethodCall(site, m.method, args, "V", true); err != nil {
			return err
		}
		trace.Point(p.Tracer(), trace.ScopeNode, "site", resolve.MethodName(g, site, true), map[string]string{
			"n": fmt.Sprint(i),
		})
	}
	return nil
}
