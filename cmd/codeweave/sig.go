package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codeweave/internal/signature"
)

var sigCmd = &cobra.Command{
	Use:   "sig <signature>...",
	Short: "Decode method signatures",
	Long:  `Split each signature into class, name, parameters and return type`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSig,
}

func runSig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	var errs []error
	for _, s := range args {
		m, err := signature.Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pretty := make([]string, len(m.Params))
		for i, p := range m.Params {
			pretty[i] = signature.Pretty(p)
		}
		fmt.Fprintln(w, m.String())
		if c := m.Class(); c != "" {
			fmt.Fprintf(w, "  class:  %s (%s)\n", c, signature.Pretty(c))
		}
		fmt.Fprintf(w, "  name:   %s\n", m.Name())
		fmt.Fprintf(w, "  params: [%s]\n", strings.Join(pretty, ", "))
		fmt.Fprintf(w, "  return: %s\n", signature.Pretty(m.Return))
		fmt.Fprintf(w, "  shorty: %s\n", signature.Shorty(m.Params, m.Return))
	}
	return errors.Join(errs...)
}
