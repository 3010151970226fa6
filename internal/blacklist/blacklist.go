// Package blacklist decides which methods are never instrumented.
package blacklist

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Defaults covers the codelib package and the runtime bootstrap classes,
// which run before the codelib can be loaded.
var Defaults = Entries{
	Prefixes: []string{
		"Lcodeweave/codelib/",
		"Ljava/lang/Object;->",
		"Ljava/lang/Class;->",
		"Ljava/lang/ClassLoader;->",
		"Ljava/lang/Thread;->",
		"Ldalvik/system/",
		"Llibcore/",
	},
}

// Entries is the configured deny list.
type Entries struct {
	Exact    []string `toml:"exact"`
	Prefixes []string `toml:"prefixes"`
}

// Filter is an immutable deny list over qualified method names
// ("Lpkg/Cls;->name(params)ret"). It is safe for concurrent use.
type Filter struct {
	exact    map[string]struct{}
	prefixes []string
}

// New builds a filter from one or more entry lists.
func New(lists ...Entries) *Filter {
	f := &Filter{exact: make(map[string]struct{})}
	for _, l := range lists {
		for _, e := range l.Exact {
			if e = norm.NFC.String(strings.TrimSpace(e)); e != "" {
				f.exact[e] = struct{}{}
			}
		}
		for _, p := range l.Prefixes {
			if p = norm.NFC.String(strings.TrimSpace(p)); p != "" {
				f.prefixes = append(f.prefixes, p)
			}
		}
	}
	slices.Sort(f.prefixes)
	f.prefixes = slices.Compact(f.prefixes)
	return f
}

// Default returns a filter over Defaults only.
func Default() *Filter { return New(Defaults) }

// Matches reports whether the method named by qualified must be skipped.
// A nil filter matches nothing.
func (f *Filter) Matches(qualified string) bool {
	if f == nil || qualified == "" {
		return false
	}
	name := norm.NFC.String(qualified)
	if _, ok := f.exact[name]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Len returns the number of exact entries and prefixes.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.exact) + len(f.prefixes)
}

// Prefixes returns the sorted prefix list.
func (f *Filter) Prefixes() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.prefixes)
}

// Exact returns the sorted exact entries.
func (f *Filter) Exact() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.exact))
	for e := range f.exact {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}
