package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeweave/internal/dex"
	"codeweave/internal/driver"
	"codeweave/internal/modules/census"
	"codeweave/internal/pass"
	"codeweave/internal/trace"
)

var censusCmd = &cobra.Command{
	Use:   "census <image>...",
	Short: "Count the descriptor tables of binaries as the instrumenter sees them",
	Long: `Run the census module over every method of each image without writing
anything, then print the table counts per binary`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCensus,
}

func init() {
	censusCmd.Flags().Int("jobs", 0, "max methods compiled in parallel (0=auto)")
}

func runCensus(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	ctx := cmd.Context()
	env, err := newEnv(cfg, trace.FromContext(ctx))
	if err != nil {
		return err
	}
	mod := census.New()
	for _, path := range args {
		bin, err := dex.Load(path)
		if err != nil {
			return err
		}
		_, rep, err := driver.Instrument(ctx, bin, driver.Options{
			Env:     env,
			Modules: []pass.Module{mod},
			Jobs:    jobs,
		})
		if err != nil {
			return err
		}
		if err := rep.Err(); err != nil {
			return err
		}
	}
	return census.WriteTable(cmd.OutOrStdout(), mod.Rows())
}
