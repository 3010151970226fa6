package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"codeweave/internal/driver"
	"codeweave/internal/modules"
	"codeweave/internal/modules/census"
	"codeweave/internal/trace"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument [flags] <image>",
	Short: "Instrument every method of a binary image",
	Long: `Compile every method of the image, run the configured modules over it and
write the instrumented image. Methods that fail keep their original code.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstrument,
}

func init() {
	f := instrumentCmd.Flags()
	f.StringP("output", "o", "", "output image (default: <image>.woven<ext>)")
	f.StringSlice("modules", nil, "modules to run, in order (available: "+strings.Join(modules.Names(), ", ")+")")
	f.Int("jobs", 0, "max methods compiled in parallel (0=auto)")
	f.String("handles", "", "codelib handle placement (shared|per-block)")
	f.String("codelib-location", "", "location of the codelib binary, never instrumented")
	f.Bool("no-default-blacklist", false, "do not skip the built-in runtime method prefixes")
	f.Bool("no-cache", false, "disable the persistent run cache")
	f.String("cache-dir", "", "run cache directory (default: user cache dir)")
	f.String("ui", "auto", "progress view (auto|on|off)")
}

func runInstrument(cmd *cobra.Command, args []string) error {
	in := args[0]
	flags := cmd.Flags()

	out, err := flags.GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if out == "" {
		ext := filepath.Ext(in)
		out = strings.TrimSuffix(in, ext) + ".woven" + ext
	}
	if flags.Changed("modules") {
		if cfg.Driver.Modules, err = flags.GetStringSlice("modules"); err != nil {
			return fmt.Errorf("failed to get modules flag: %w", err)
		}
	}
	if flags.Changed("jobs") {
		if cfg.Driver.Jobs, err = flags.GetInt("jobs"); err != nil {
			return fmt.Errorf("failed to get jobs flag: %w", err)
		}
		if cfg.Driver.Jobs < 0 {
			return fmt.Errorf("--jobs must be >= 0, got %d", cfg.Driver.Jobs)
		}
	}
	if flags.Changed("handles") {
		if cfg.CodeLib.Handles, err = flags.GetString("handles"); err != nil {
			return fmt.Errorf("failed to get handles flag: %w", err)
		}
	}
	if flags.Changed("codelib-location") {
		if cfg.CodeLib.Location, err = flags.GetString("codelib-location"); err != nil {
			return fmt.Errorf("failed to get codelib-location flag: %w", err)
		}
	}
	if flags.Changed("no-default-blacklist") {
		if cfg.Driver.NoDefaultBlacklist, err = flags.GetBool("no-default-blacklist"); err != nil {
			return fmt.Errorf("failed to get no-default-blacklist flag: %w", err)
		}
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	cacheDir, err := flags.GetString("cache-dir")
	if err != nil {
		return fmt.Errorf("failed to get cache-dir flag: %w", err)
	}

	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	tracer := trace.FromContext(ctx)
	defer dumpTraceOnPanic(tracer)

	env, err := newEnv(cfg, tracer)
	if err != nil {
		return err
	}
	ms, err := modules.New(cfg.Driver.Modules)
	if err != nil {
		return err
	}
	opts := driver.RunOptions{
		Options: driver.Options{
			Env:       env,
			Modules:   ms,
			Jobs:      cfg.Driver.Jobs,
			Heartbeat: traceHeartbeat,
		},
	}
	// census output depends on every run, so it is never served from cache
	if !noCache && modules.Census(ms) == nil {
		if cacheDir != "" {
			opts.Cache, err = driver.OpenDiskCacheAt(cacheDir)
		} else {
			opts.Cache, err = driver.OpenDiskCache("codeweave")
		}
		if err != nil {
			return fmt.Errorf("open run cache: %w", err)
		}
		opts.Fingerprint = driver.Fingerprint(opts.Options)
	}

	run := driver.Run
	if !quiet(cmd) && shouldUseTUI(mode) {
		run = runWithUI
	}
	rep, timing, err := run(ctx, in, out, opts)
	if err != nil {
		dumpTrace(tracer)
		return err
	}
	w := cmd.OutOrStdout()
	if !quiet(cmd) {
		if err := rep.Write(w); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", out)
		if c := modules.Census(ms); c != nil {
			if err := census.WriteTable(w, c.Rows()); err != nil {
				return err
			}
		}
	}
	if showTimings, _ := cmd.Root().PersistentFlags().GetBool("timings"); showTimings {
		fmt.Fprint(cmd.ErrOrStderr(), timing.Summary())
	}
	if rep.Failed > 0 {
		dumpTrace(tracer)
		return fmt.Errorf("%s methods kept their original code", color.RedString("%d", rep.Failed))
	}
	return nil
}
