package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"codeweave/internal/dex"
	"codeweave/internal/observ"
	"codeweave/internal/trace"
)

// RunOptions configures a file to file run.
type RunOptions struct {
	Options
	// Cache, when non-nil, short-circuits runs over an input seen before.
	Cache *DiskCache
	// Fingerprint identifies the configuration for cache keys.
	Fingerprint string
}

// Fingerprint renders the parts of opts that change the output of a run.
// Passing it as RunOptions.Fingerprint keeps cache entries apart across
// configurations.
func Fingerprint(opts Options) string {
	var sb strings.Builder
	sb.WriteString("codelib=" + opts.Env.CodeLib.InstanceField())
	sb.WriteString(";location=" + opts.Env.CodeLibLocation)
	sb.WriteString(";handles=" + opts.Env.Handles.String())
	sb.WriteString(";modules=")
	for i, m := range opts.Modules {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(m.Name())
	}
	sb.WriteString(";blacklist=")
	if opts.Env.Blacklist != nil {
		sb.WriteString(strings.Join(opts.Env.Blacklist.Exact(), ","))
		sb.WriteString("/" + strings.Join(opts.Env.Blacklist.Prefixes(), ","))
	}
	sb.WriteString(";injections=")
	for _, d := range opts.Env.Registry.All() {
		sb.WriteString(d.String() + "|")
	}
	return sb.String()
}

// Run loads the image at in, instruments it and writes the result to out.
// Phase timings are returned in the report.
func Run(ctx context.Context, in, out string, opts RunOptions) (*Report, observ.Report, error) {
	timer := observ.NewTimer()
	ctx, span := trace.BeginContext(ctx, trace.ScopeDriver, "run")
	span.WithExtra("input", in).WithExtra("output", out)
	defer span.End("")

	var data []byte
	var bin *dex.Binary
	err := timer.Measure("load", func() error {
		var err error
		data, err = os.ReadFile(in)
		if err != nil {
			return err
		}
		bin, err = dex.Decode(bytes.NewReader(data), dex.FormatForPath(in))
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		if bin.Location == "" {
			bin.Location = in
		}
		return nil
	})
	if err != nil {
		return nil, timer.Report(), err
	}

	key := CacheKey(data, opts.Env.Version, opts.Fingerprint)
	if opts.Cache != nil {
		var payload DiskPayload
		hit, err := opts.Cache.Get(key, &payload)
		if err == nil && hit {
			trace.Point(opts.Env.Tracer, trace.ScopeDriver, "cache hit", key.String(), nil)
			err = timer.Measure("save", func() error { return dex.Save(out, payload.Output) })
			rep := &Report{Summary: payload.Summary}
			rep.Cached = true
			return rep, timer.Report(), err
		}
	}

	var result *dex.Binary
	var rep *Report
	err = timer.Measure("instrument", func() error {
		var err error
		result, rep, err = Instrument(ctx, bin, opts.Options)
		return err
	})
	if err != nil {
		return nil, timer.Report(), err
	}
	if err := timer.Measure("save", func() error { return dex.Save(out, result) }); err != nil {
		return rep, timer.Report(), err
	}
	// a run with failures is not cached so that the next run reports them again
	if opts.Cache != nil && rep.Failed == 0 {
		if err := opts.Cache.Put(key, &DiskPayload{Summary: rep.Summary, Output: result}); err != nil {
			trace.Error(opts.Env.Tracer, trace.ScopeDriver, "cache", err, nil)
		}
	}
	return rep, timer.Report(), nil
}
