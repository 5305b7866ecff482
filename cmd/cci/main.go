// Command cci compiles a preprocessed C translation unit (.i) into Onramp
// textual assembly (.os).
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/onramp-go/cci/internal/cli"
	"github.com/onramp-go/cci/internal/compiler"
	"github.com/onramp-go/cci/internal/diag"
)

func main() {
	d := diag.New(os.Stderr)
	opts := &cli.Options{}

	rootCmd := &cobra.Command{
		Use:   "cci <input.i> -o <output.os>",
		Short: "Compile preprocessed C to Onramp assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Input = args[0]
			}
			if err := opts.Resolve(d); err != nil {
				return err
			}

			in, err := os.Open(opts.Input)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := os.Create(opts.Output)
			if err != nil {
				return err
			}

			cerr := compiler.Compile(d, in, opts.Input, out, compiler.Options{
				Optimize:  opts.Optimize,
				DebugInfo: opts.DebugInfo,
				Parser:    opts.ParserOptions(),
				DumpAST:   opts.DumpAST,
			})
			if cerr != nil {
				out.Close()
				return cerr
			}
			return out.Close()
		},
	}
	opts.Bind(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
