package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		src := cfg.Path
		if src == "" {
			src = "built-in defaults"
		}
		fmt.Fprintf(w, "# loaded from %s\n", src)
		return toml.NewEncoder(w).Encode(cfg)
	},
}
