package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeweave/internal/dex"
	"codeweave/internal/ir"
	"codeweave/internal/resolve"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <image>",
	Short: "Print the tables of a binary image or the graph of one method",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Bool("types", false, "print the type table")
	dumpCmd.Flags().Bool("fields", false, "print the field table")
	dumpCmd.Flags().Bool("methods", false, "print the method table")
	dumpCmd.Flags().String("method", "", "print the graph of the method with this signature")
}

func runDump(cmd *cobra.Command, args []string) error {
	bin, err := dex.Load(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	types, _ := cmd.Flags().GetBool("types")
	fields, _ := cmd.Flags().GetBool("fields")
	methods, _ := cmd.Flags().GetBool("methods")
	method, _ := cmd.Flags().GetString("method")
	if !types && !fields && !methods && method == "" {
		types, fields, methods = true, true, true
	}

	if types {
		if err := resolve.DumpTypes(w, bin); err != nil {
			return err
		}
	}
	if fields {
		if err := resolve.DumpFields(w, bin); err != nil {
			return err
		}
	}
	if methods {
		if _, err := fmt.Fprintf(w, "methods=%d (%s)\n", len(bin.Methods), bin.Location); err != nil {
			return err
		}
		for i := range bin.Methods {
			idx := dex.MethodIdx(i)
			body := ""
			if em, ok := bin.EncodedMethod(idx); ok && em.Code != nil {
				body = fmt.Sprintf("  [%d insns]", em.Code.NumInsns())
			}
			if _, err := fmt.Fprintf(w, "  M%-5d %s%s\n", i, bin.MethodQualifiedName(idx), body); err != nil {
				return err
			}
		}
	}
	if method != "" {
		idx := resolve.FindMethodIdx(bin, method)
		if idx == dex.NoMethodIdx {
			return fmt.Errorf("method %q not found in %s", method, resolve.BinaryFileName(bin))
		}
		g, err := ir.Build(bin, idx)
		if err != nil {
			return err
		}
		return ir.Dump(w, g)
	}
	return nil
}
