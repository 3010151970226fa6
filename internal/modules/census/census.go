// Package census is the diagnostic module: it instruments nothing and
// reports the descriptor table sizes of every binary it sees.
package census

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"

	"github.com/mattn/go-runewidth"

	"codeweave/internal/dex"
	"codeweave/internal/pass"
	"codeweave/internal/trace"
)

// Name is the module name used in configuration.
const Name = "census"

// Module records table counts per binary location. One Module is shared by
// all passes of a run.
type Module struct {
	mu      sync.Mutex
	counts  map[string]dex.Counts
	methods map[string]int
}

// New returns an empty census.
func New() *Module {
	return &Module{counts: make(map[string]dex.Counts), methods: make(map[string]int)}
}

func (*Module) Name() string { return Name }

func (*Module) SetupModule(p *pass.Pass) error {
	trace.Point(p.Tracer(), trace.ScopePass, "census setup", "counting C F M P S T per method", nil)
	return nil
}

// RunModule traces the counts of the method's binary. The line carries
// C(lass defs), F(ields), M(ethods), P(rotos), S(trings) and T(ypes).
func (m *Module) RunModule(p *pass.Pass) error {
	c, err := p.Binary().Counts()
	if err != nil {
		return err
	}
	loc := p.Graph().Location()
	m.mu.Lock()
	m.counts[loc] = c
	m.methods[loc]++
	m.mu.Unlock()

	trace.Point(p.Tracer(), trace.ScopeMethod, "counts", p.Method().Name, map[string]string{
		"C": strconv.FormatUint(uint64(c.ClassDefs), 10),
		"F": strconv.FormatUint(uint64(c.Fields), 10),
		"M": strconv.FormatUint(uint64(c.Methods), 10),
		"P": strconv.FormatUint(uint64(c.Protos), 10),
		"S": strconv.FormatUint(uint64(c.Strings), 10),
		"T": strconv.FormatUint(uint64(c.Types), 10),
	})
	return nil
}

// Row is the census of one binary.
type Row struct {
	Location string
	Methods  int
	Counts   dex.Counts
}

// Rows returns the census sorted by location.
func (m *Module) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]Row, 0, len(m.counts))
	for loc, c := range m.counts {
		rows = append(rows, Row{Location: loc, Methods: m.methods[loc], Counts: c})
	}
	slices.SortFunc(rows, func(a, b Row) int {
		if a.Location < b.Location {
			return -1
		}
		if a.Location > b.Location {
			return 1
		}
		return 0
	})
	return rows
}

// WriteTable writes rows as an aligned table.
func WriteTable(w io.Writer, rows []Row) error {
	width := runewidth.StringWidth("binary")
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r.Location))
	}
	if _, err := fmt.Fprintf(w, "%s %8s %8s %8s %8s %8s %8s %8s\n",
		runewidth.FillRight("binary", width), "methods", "C", "F", "M", "P", "S", "T"); err != nil {
		return err
	}
	for _, r := range rows {
		c := r.Counts
		if _, err := fmt.Fprintf(w, "%s %8d %8d %8d %8d %8d %8d %8d\n",
			runewidth.FillRight(r.Location, width), r.Methods,
			c.ClassDefs, c.Fields, c.Methods, c.Protos, c.Strings, c.Types); err != nil {
			return err
		}
	}
	return nil
}
