// Package modules maps configured module names to implementations.
package modules

import (
	"fmt"
	"slices"

	"codeweave/internal/modules/callsite"
	"codeweave/internal/modules/census"
	"codeweave/internal/modules/generic"
	"codeweave/internal/pass"
)

// Names lists the available modules.
func Names() []string {
	return []string{callsite.Name, census.Name, generic.Name}
}

// New returns one module per name, in order. Duplicates are rejected.
func New(names []string) ([]pass.Module, error) {
	out := make([]pass.Module, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("module %q listed twice", name)
		}
		seen[name] = true
		switch name {
		case census.Name:
			out = append(out, census.New())
		case generic.Name:
			out = append(out, generic.New())
		case callsite.Name:
			out = append(out, callsite.New(""))
		default:
			return nil, fmt.Errorf("unknown module %q (available: %v)", name, Names())
		}
	}
	return out, nil
}

// Census returns the census module among ms, or nil.
func Census(ms []pass.Module) *census.Module {
	i := slices.IndexFunc(ms, func(m pass.Module) bool { return m.Name() == census.Name })
	if i < 0 {
		return nil
	}
	c, _ := ms[i].(*census.Module)
	return c
}
