package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codeweave/internal/config"
	"codeweave/internal/trace"
)

// traceHeartbeat is the interval of the progress heartbeat of long commands.
var traceHeartbeat time.Duration

// setupTracing merges the trace flags over the [trace] table of the
// configuration and attaches the resulting tracer to the command context.
// It returns a cleanup function that flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, tc config.Trace) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	override := func(name string, dst *string) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
		return nil
	}
	for name, dst := range map[string]*string{
		"trace":        &tc.Output,
		"trace-level":  &tc.Level,
		"trace-mode":   &tc.Mode,
		"trace-format": &tc.Format,
	} {
		if err := override(name, dst); err != nil {
			return nil, err
		}
	}
	if flags.Changed("trace-ring-size") {
		n, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		tc.RingSize = n
	}
	heartbeat, err := tc.HeartbeatInterval()
	if err != nil {
		return nil, fmt.Errorf("invalid trace heartbeat: %w", err)
	}
	if flags.Changed("trace-heartbeat") {
		if heartbeat, err = flags.GetDuration("trace-heartbeat"); err != nil {
			return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
	}

	level, err := trace.ParseLevel(tc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	mode, err := trace.ParseMode(tc.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(tc.Format)
	if err != nil {
		return nil, err
	}
	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: tc.Output,
		RingSize:   tc.RingSize,
		Heartbeat:  heartbeat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	if !tracer.Enabled() {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	traceHeartbeat = heartbeat

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	return func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// ringOf returns the ring buffer behind t, if any.
func ringOf(t trace.Tracer) *trace.RingTracer {
	switch r := t.(type) {
	case *trace.RingTracer:
		return r
	case *trace.MultiTracer:
		return r.Ring()
	}
	return nil
}

// dumpTrace writes the events held by the ring buffer of t to stderr. Ring
// mode keeps the last events in memory and only shows them on failure.
func dumpTrace(t trace.Tracer) {
	r := ringOf(t)
	if r == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "trace: last events")
	if err := r.Dump(os.Stderr, trace.FormatText); err != nil {
		fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
	}
}

// dumpTraceOnPanic dumps the ring buffer of t and re-panics.
func dumpTraceOnPanic(t trace.Tracer) {
	if r := recover(); r != nil {
		dumpTrace(t)
		panic(r)
	}
}
