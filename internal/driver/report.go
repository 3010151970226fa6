package driver

import (
	"errors"
	"fmt"
	"io"

	"codeweave/internal/dex"
	"codeweave/internal/pass"
)

// MethodResult is the outcome of one method.
type MethodResult struct {
	Idx     dex.MethodIdx
	Method  string
	Outcome pass.Outcome // zero without modules or on failure
	Added   int          // nodes inserted
	Code    *dex.Code    // new body, nil when unchanged
	Err     error
}

// Summary is the serialisable part of a Report.
type Summary struct {
	RunID            string `msgpack:"run_id"`
	Location         string `msgpack:"location"`
	Methods          int    `msgpack:"methods"`
	Instrumented     int    `msgpack:"instrumented"`
	SkippedBlacklist int    `msgpack:"skipped_blacklist"`
	SkippedCodeLib   int    `msgpack:"skipped_codelib"`
	Failed           int    `msgpack:"failed"`
	Added            int    `msgpack:"added"`
	Cached           bool   `msgpack:"-"`
}

// Report describes a run.
type Report struct {
	Summary
	Results []MethodResult
}

func newReport(location string) *Report {
	return &Report{Summary: Summary{RunID: newRunID(), Location: location}}
}

func (r *Report) add(results []MethodResult) {
	r.Results = results
	r.Methods = len(results)
	for _, res := range results {
		if res.Err != nil {
			r.Failed++
			continue
		}
		r.Added += res.Added
		switch res.Outcome {
		case pass.Instrumented:
			r.Instrumented++
		case pass.SkippedCodeLib:
			r.SkippedCodeLib++
		case pass.SkippedBlacklist:
			r.SkippedBlacklist++
		}
	}
}

// Err joins the errors of every failed method, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Write prints the summary and one line per failed method.
func (r *Report) Write(w io.Writer) error {
	cached := ""
	if r.Cached {
		cached = " (cached)"
	}
	if _, err := fmt.Fprintf(w, "run %s%s: %s\n  methods %d, instrumented %d, skipped %d blacklist / %d codelib, failed %d, nodes added %d\n",
		r.RunID, cached, r.Location, r.Methods, r.Instrumented, r.SkippedBlacklist, r.SkippedCodeLib, r.Failed, r.Added); err != nil {
		return err
	}
	for _, res := range r.Results {
		if res.Err == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "  failed %s: %v\n", res.Method, res.Err); err != nil {
			return err
		}
	}
	return nil
}
