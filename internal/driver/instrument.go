// Package driver stands in for the host compiler: it loads an image,
// compiles every method that has code on a bounded worker pool, runs the
// configured modules over each method and writes the instrumented image.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"codeweave/internal/dex"
	"codeweave/internal/ir"
	"codeweave/internal/pass"
	"codeweave/internal/trace"
)

// Options configures one run.
type Options struct {
	// Env is shared by every pass of the run. A nil Globals gets fresh state.
	Env pass.Env
	// Modules run over every method, in order.
	Modules []pass.Module
	// Jobs bounds the number of methods compiled at once; 0 means GOMAXPROCS.
	Jobs int
	// Heartbeat, when positive, emits progress heartbeats to Env.Tracer.
	Heartbeat time.Duration
	// Observer receives phase boundaries.
	Observer PhaseObserver
	// Progress, when non-nil, receives one event when a method starts and
	// one when it finishes.
	Progress ProgressSink
}

// Instrument runs the modules over every method of bin that has code and
// returns the instrumented binary. bin itself is not modified. A method that
// fails keeps its original code; its error is collected in the report.
func Instrument(ctx context.Context, bin *dex.Binary, opts Options) (*dex.Binary, *Report, error) {
	if bin == nil {
		return nil, nil, errors.New("instrument: nil binary")
	}
	if opts.Env.Globals == nil {
		opts.Env.Globals = pass.NewGlobals()
	}
	if opts.Env.Tracer == nil {
		opts.Env.Tracer = trace.FromContext(ctx)
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	rep := newReport(bin.Location)
	span := trace.Begin(opts.Env.Tracer, trace.ScopeDriver, "instrument", trace.Parent(ctx)).
		WithExtra("run", rep.RunID).
		WithExtra("location", bin.Location)

	methods := methodsWithCode(bin)
	results := make([]MethodResult, len(methods))
	var done atomic.Int64
	hb := trace.StartHeartbeat(opts.Env.Tracer, opts.Heartbeat, func() string {
		return fmt.Sprintf("%d/%d methods", done.Load(), len(methods))
	})
	defer hb.Stop()

	opts.Observer.emit(PhaseEvent{Name: "instrument", Status: PhaseStart})
	start := time.Now()
	if len(methods) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(methods)))
		for i, idx := range methods {
			i, idx := i, idx
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				class := bin.TypeDescriptor(bin.Methods[idx].Class)
				name := bin.MethodQualifiedName(idx)
				opts.progress(Event{Class: class, Method: name, Status: StatusWorking})
				began := time.Now()
				results[i] = instrumentMethod(bin, idx, &opts)
				done.Add(1)
				opts.progress(Event{
					Class:   class,
					Method:  name,
					Status:  statusOf(&results[i]),
					Err:     results[i].Err,
					Elapsed: time.Since(began),
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.End("cancelled")
			return nil, nil, err
		}
	}
	opts.Observer.emit(PhaseEvent{Name: "instrument", Status: PhaseEnd, Elapsed: time.Since(start)})

	out := rewrite(bin, results)
	rep.add(results)
	span.WithExtra("instrumented", strconv.Itoa(rep.Instrumented)).
		WithExtra("failed", strconv.Itoa(rep.Failed)).
		End("")
	return out, rep, nil
}

func instrumentMethod(bin *dex.Binary, idx dex.MethodIdx, opts *Options) MethodResult {
	res := MethodResult{Idx: idx, Method: bin.MethodQualifiedName(idx)}
	g, err := ir.Build(bin, idx)
	if err != nil {
		res.Err = err
		return res
	}
	if len(opts.Modules) == 0 {
		return res
	}
	n := g.NumInstrs()
	p := pass.New(g, opts.Env, opts.Modules...)
	res.Outcome, res.Err = p.Run()
	p.Close()
	if res.Err != nil {
		res.Outcome = 0
		return res
	}
	res.Added = g.NumInstrs() - n
	if res.Added == 0 {
		return res
	}
	if err := ir.Validate(g); err != nil {
		res.Err = fmt.Errorf("%s: invalid after instrumentation: %w", res.Method, err)
		return res
	}
	code, err := ir.Lower(g)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", res.Method, err)
		return res
	}
	res.Code = code
	return res
}

// methodsWithCode lists the methods bin defines with a body, in index order.
func methodsWithCode(bin *dex.Binary) []dex.MethodIdx {
	var out []dex.MethodIdx
	for i := range bin.ClassDefs {
		for _, em := range bin.ClassDefs[i].Methods {
			if em.Code != nil {
				out = append(out, em.Method)
			}
		}
	}
	slices.Sort(out)
	return out
}

// rewrite returns a copy of bin whose class data points at the new bodies.
// Descriptor tables are shared with bin.
func rewrite(bin *dex.Binary, results []MethodResult) *dex.Binary {
	code := make(map[dex.MethodIdx]*dex.Code, len(results))
	for _, r := range results {
		if r.Err == nil && r.Code != nil {
			code[r.Idx] = r.Code
		}
	}
	out := *bin
	out.ClassDefs = make([]dex.ClassDef, len(bin.ClassDefs))
	for i, cd := range bin.ClassDefs {
		cd.Methods = slices.Clone(cd.Methods)
		for j := range cd.Methods {
			if c, ok := code[cd.Methods[j].Method]; ok {
				cd.Methods[j].Code = c
			}
		}
		out.ClassDefs[i] = cd
	}
	return &out
}

// newRunID returns a fresh run identifier.
func newRunID() string { return uuid.NewString() }
