// Package inject holds declarative injection definitions: which codelib
// method to call, with which arguments, at which point of which methods.
package inject

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"codeweave/internal/config"
	"codeweave/internal/literal"
	"codeweave/internal/signature"
)

// Point is where in a method a definition injects its call.
type Point uint8

const (
	// PointEntry calls once, at the end of the entry block.
	PointEntry Point = iota
	// PointReturn calls before every return.
	PointReturn
)

// String returns the string representation of Point.
func (p Point) String() string {
	switch p {
	case PointEntry:
		return "entry"
	case PointReturn:
		return "return"
	default:
		return "unknown"
	}
}

// ParsePoint converts "entry" or "return" to a Point; "" means PointEntry.
func ParsePoint(s string) (Point, error) {
	switch s {
	case "", "entry":
		return PointEntry, nil
	case "return":
		return PointReturn, nil
	}
	return PointEntry, fmt.Errorf("invalid injection point: %q (expected: entry|return)", s)
}

// Arg is one argument of a definition: a literal, or the value of the
// instrumented method's parameter Param (receiver is parameter 0 of an
// instance method).
type Arg struct {
	Lit   literal.Literal
	Param int
}

// LitArg passes a literal.
func LitArg(l literal.Literal) Arg { return Arg{Lit: l, Param: -1} }

// ParamArg passes parameter n of the instrumented method.
func ParamArg(n int) Arg { return Arg{Param: n} }

// String renders the argument in its configuration syntax.
func (a Arg) String() string {
	if a.Lit != nil {
		return a.Lit.Kind().String() + ":" + a.Lit.String()
	}
	return "param:" + strconv.Itoa(a.Param)
}

// ParseArg decodes "kind:value" or "param:N".
func ParseArg(s string) (Arg, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return Arg{}, fmt.Errorf("argument %q: expected kind:value or param:N", s)
	}
	if kind == "param" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return Arg{}, fmt.Errorf("argument %q: invalid parameter number", s)
		}
		return ParamArg(n), nil
	}
	k, err := literal.ParseKind(kind)
	if err != nil {
		return Arg{}, fmt.Errorf("argument %q: %w", s, err)
	}
	l, err := literal.Parse(k, value)
	if err != nil {
		return Arg{}, fmt.Errorf("argument %q: %w", s, err)
	}
	return LitArg(l), nil
}

// Definition is one injection.
type Definition struct {
	Name string
	// Target is a qualified method name, or a prefix when it ends in '*'.
	Target string
	// Method is the qualified signature of the codelib method to call.
	Method string
	Args   []Arg
	Point  Point
}

// Matches reports whether the definition applies to the method named by
// qualified.
func (d *Definition) Matches(qualified string) bool {
	if prefix, ok := strings.CutSuffix(d.Target, "*"); ok {
		return strings.HasPrefix(qualified, prefix)
	}
	return d.Target == qualified
}

// String renders the definition on one line.
func (d *Definition) String() string {
	args := make([]string, len(d.Args))
	for i, a := range d.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s: %s @%s -> %s [%s]", d.Name, d.Target, d.Point, d.Method, strings.Join(args, ", "))
}

// Registry is an immutable, ordered set of definitions, safe for concurrent
// reads.
type Registry struct {
	defs []Definition
}

// NewRegistry validates defs and orders them by name. Unnamed definitions
// are named "injection-N" after their position.
func NewRegistry(defs ...Definition) (*Registry, error) {
	out := make([]Definition, len(defs))
	var errs []error
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.Name == "" {
			d.Name = fmt.Sprintf("injection-%d", i+1)
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate definition", d.Name))
		}
		seen[d.Name] = true
		if d.Target == "" {
			errs = append(errs, fmt.Errorf("%s: missing target", d.Name))
		}
		if _, err := signature.Parse(d.Method); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
		d.Args = slices.Clone(d.Args)
		out[i] = d
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b Definition) int { return strings.Compare(a.Name, b.Name) })
	return &Registry{defs: out}, nil
}

// FromConfig builds a registry from [[injection]] tables.
func FromConfig(injections []config.Injection) (*Registry, error) {
	defs := make([]Definition, 0, len(injections))
	var errs []error
	for i, inj := range injections {
		name := inj.Name
		if name == "" {
			name = fmt.Sprintf("injection-%d", i+1)
		}
		point, err := ParsePoint(inj.Point)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		args := make([]Arg, 0, len(inj.Args))
		for _, s := range inj.Args {
			a, err := ParseArg(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			args = append(args, a)
		}
		defs = append(defs, Definition{
			Name:   name,
			Target: inj.Target,
			Method: inj.Method,
			Args:   args,
			Point:  point,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return NewRegistry(defs...)
}

// Len returns the number of definitions; a nil registry is empty.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}

// All returns every definition in registry order.
func (r *Registry) All() []Definition {
	if r == nil {
		return nil
	}
	return slices.Clone(r.defs)
}

// For returns the definitions matching qualified, in registry order.
func (r *Registry) For(qualified string) []Definition {
	if r == nil {
		return nil
	}
	var out []Definition
	for i := range r.defs {
		if r.defs[i].Matches(qualified) {
			out = append(out, r.defs[i])
		}
	}
	return out
}
