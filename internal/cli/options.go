// Package cli binds the compiler's command-line surface to the option
// structs the rest of the compiler consumes: warning states onto
// diag.Diagnostics, feature flags onto parser.Options, and the codegen/
// emission toggles onto compiler-level switches.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/parser"
)

// Options collects every flag the cci command accepts, before resolution.
type Options struct {
	Input  string
	Output string

	DebugInfo bool
	Optimize  bool

	Warnings []string // -W<name> occurrences, group names included
	Features []string // -f<name> occurrences

	Pedantic       bool
	PedanticErrors bool

	DumpAST string // "", "unicode" or "ascii"
}

// Bind registers every flag onto cmd. The single-letter shorthands keep the
// traditional spellings working: pflag folds `-Wall` into shorthand `W`
// with value `all`, and likewise `-fgnu-extensions`, `-o out.os`.
func (o *Options) Bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&o.Output, "output", "o", "", "output assembly file (required)")
	fl.BoolVarP(&o.DebugInfo, "debug-info", "g", false, "retain source locations and emit #line directives")
	fl.BoolVarP(&o.Optimize, "optimize", "O", false, "enable block-layout optimization")
	fl.StringArrayVarP(&o.Warnings, "warn", "W", nil, "enable a warning by name, or a group (all, extra, pedantic)")
	fl.StringArrayVarP(&o.Features, "feature", "f", nil, "enable a feature group (gnu-extensions, ms-extensions, plan9-extensions)")
	fl.BoolVar(&o.Pedantic, "pedantic", false, "enable the pedantic warning group")
	fl.BoolVar(&o.PedanticErrors, "pedantic-errors", false, "promote pedantic warnings to errors")
	fl.StringVar(&o.DumpAST, "dump-ast", "", "dump the AST after parsing (unicode or ascii)")
}

// knownFeatures is the -f<name> surface: several groups are recognized long
// before the language features they would gate exist, matching the
// original's options table.
var knownFeatures = map[string]bool{
	"gnu-extensions":   true,
	"ms-extensions":    true,
	"plan9-extensions": true,
	"asm":              true,
}

// Resolve validates the parsed flags and applies the warning configuration
// onto d. It returns an error (rather than exiting) so the CLI layer can
// print usage alongside it.
func (o *Options) Resolve(d *diag.Diagnostics) error {
	if o.Input == "" {
		return fmt.Errorf("input filename not specified")
	}
	if o.Output == "" {
		return fmt.Errorf("output filename not specified (use -o)")
	}
	switch o.DumpAST {
	case "", "unicode", "ascii":
	default:
		return fmt.Errorf("invalid -dump-ast mode %q: use unicode or ascii", o.DumpAST)
	}

	for _, name := range o.Warnings {
		if d.EnableGroup(name) {
			continue
		}
		w, ok := diag.ByName(name)
		if !ok {
			return fmt.Errorf("unknown warning -W%s", name)
		}
		d.Enable(w)
	}
	if o.Pedantic || o.PedanticErrors {
		d.EnableGroup("pedantic")
	}
	if o.PedanticErrors {
		for _, w := range pedanticWarnings() {
			d.Promote(w)
		}
	}

	for _, name := range o.Features {
		if !knownFeatures[name] {
			return fmt.Errorf("unknown feature -f%s", name)
		}
	}
	return nil
}

// pedanticWarnings lists the categories -pedantic-errors promotes, the same
// set EnableGroup("pedantic") turns on.
func pedanticWarnings() []diag.Warning {
	return []diag.Warning{
		diag.WarnStatementExpressions, diag.WarnExtraKeywords,
		diag.WarnAnonymousTags, diag.WarnGNUCaseRange,
	}
}

// ParserOptions derives the parser's feature switches from the -f flags.
func (o *Options) ParserOptions() parser.Options {
	var p parser.Options
	for _, name := range o.Features {
		switch name {
		case "gnu-extensions":
			p.GNUExtensions = true
		case "ms-extensions":
			p.MSExtensions = true
		case "plan9-extensions":
			p.Plan9Extensions = true
		}
	}
	return p
}
