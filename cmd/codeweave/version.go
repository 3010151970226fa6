package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"codeweave/internal/config"
	"codeweave/internal/version"
)

// buildInfo is the --json form of the version command.
type buildInfo struct {
	Tool            string `json:"tool"`
	Version         string `json:"version"`
	GitCommit       string `json:"git_commit,omitempty"`
	BuildDate       string `json:"build_date,omitempty"`
	CodeLibClass    string `json:"codelib_class"`
	CodeLibLocation string `json:"codelib_location"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show codeweave build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}
		info := buildInfo{
			Tool:            "codeweave",
			Version:         version.Version,
			GitCommit:       version.GitCommit,
			BuildDate:       version.BuildDate,
			CodeLibClass:    config.DefaultCodeLibClass,
			CodeLibLocation: config.DefaultCodeLibLocation,
		}
		if cfg != nil {
			info.CodeLibClass, info.CodeLibLocation = cfg.CodeLib.Class, cfg.CodeLib.Location
		}
		w := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(w, "codeweave %s\n", version.Pretty())
		if info.GitCommit != "" {
			fmt.Fprintf(w, "commit:  %s\n", info.GitCommit)
		}
		if info.BuildDate != "" {
			fmt.Fprintf(w, "built:   %s\n", info.BuildDate)
		}
		fmt.Fprintf(w, "codelib: %s in %s\n", info.CodeLibClass, info.CodeLibLocation)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "print build information as JSON")
}
