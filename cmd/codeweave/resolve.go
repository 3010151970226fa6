package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeweave/internal/dex"
	"codeweave/internal/resolve"
	"codeweave/internal/signature"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <image> <method|type|field|class> <name>",
	Short: "Look up a symbol in a binary image",
	Long: `Resolve a method signature, type, field or class against the tables of
the image and print its index. Names may be descriptors or source names.`,
	Args: cobra.ExactArgs(3),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	bin, err := dex.Load(args[0])
	if err != nil {
		return err
	}
	kind, name := args[1], args[2]
	w := cmd.OutOrStdout()
	switch kind {
	case "method":
		idx := resolve.FindMethodIdx(bin, name)
		if idx == dex.NoMethodIdx {
			return fmt.Errorf("method %q not found in %s", name, resolve.BinaryFileName(bin))
		}
		_, err = fmt.Fprintf(w, "M%d %s\n    %s\n", idx, bin.MethodQualifiedName(idx), bin.PrettyMethod(idx, true))
	case "type":
		idx := resolve.FindTypeIdx(bin, name)
		if idx == dex.NoTypeIdx {
			return fmt.Errorf("type %q not found in %s", name, resolve.BinaryFileName(bin))
		}
		desc := bin.TypeDescriptor(idx)
		_, err = fmt.Fprintf(w, "T%d %s %s\n", idx, desc, signature.Pretty(desc))
	case "field":
		idx := resolve.FindFieldIdx(bin, name)
		if idx == dex.NoFieldIdx {
			return fmt.Errorf("field %q not found in %s", name, resolve.BinaryFileName(bin))
		}
		_, err = fmt.Fprintf(w, "F%d %s\n", idx, bin.FieldQualifiedName(idx))
	case "class":
		idx := resolve.FindClassDefIdx(bin, name)
		if idx == dex.NoClassDefIdx {
			return fmt.Errorf("class %q not defined in %s", name, resolve.BinaryFileName(bin))
		}
		cd := bin.ClassDefs[idx]
		_, err = fmt.Fprintf(w, "C%d %s (%d methods)\n", idx, bin.TypeDescriptor(cd.Class), len(cd.Methods))
	default:
		return fmt.Errorf("unknown symbol kind %q (expected method|type|field|class)", kind)
	}
	return err
}
