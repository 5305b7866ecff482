// Package compiler drives one translation unit end to end (main.c's
// lifecycle): wire up the intern table, scope stack, lexer, parser, code
// generator and emitter, loop over top-level declarations until end of
// input, then flush the tentative definitions the unit never completed.
//
// Functions are compiled and emitted one at a time, as soon as the parser
// completes each definition — the same bounded-peak-memory shape the
// original gets from interleaving parse_global with generate/emit, without
// any of those packages importing each other.
package compiler

import (
	"io"
	"os"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/codegen"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/emit"
	"github.com/onramp-go/cci/internal/parser"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/strtab"
	"github.com/onramp-go/cci/internal/token"
)

// Options are the already-resolved switches a compilation runs under.
type Options struct {
	Optimize  bool
	DebugInfo bool

	Parser parser.Options

	// DumpAST, when non-empty ("unicode" or "ascii"), dumps each completed
	// function definition's tree, and each global initializer's tree, to
	// DumpWriter (stderr when nil) after parsing it.
	DumpAST    string
	DumpWriter io.Writer
}

// unit holds the per-translation-unit state shared between the parse loop
// and the per-global handlers.
type unit struct {
	d    *diag.Diagnostics
	gen  *codegen.Generator
	emit *emit.Emitter
	opts Options

	// emittedStrings guards against writing a string literal's storage
	// twice: a static local's initializer subtree is walked once inside its
	// enclosing function and again when its own synthetic constructor is
	// built.
	emittedStrings map[int]bool
}

// Compile runs one full translation unit from in to out. All errors inside
// the unit are fatal through d; only the final output flush reports an
// error conventionally, since by then the diagnostics machinery has nothing
// to locate it against.
func Compile(d *diag.Diagnostics, in io.Reader, filename string, out io.Writer, opts Options) error {
	strs := strtab.New()
	scopes := scope.NewStack()

	lex := token.New(in, filename, strs, func(file string, line int, format string, args ...any) {
		d.Fatalf(diag.Pos{Filename: file, Line: line}, format, args...)
	})

	p := parser.New(d, lex, scopes, strs, opts.Parser)
	gen := codegen.New(d, strs, p.LabelCounter())
	gen.Debug = opts.DebugInfo

	e := emit.New(out, opts.Optimize)
	e.Preamble()

	u := &unit{d: d, gen: gen, emit: e, opts: opts, emittedStrings: make(map[int]bool)}

	for !p.AtEnd() {
		g := p.ParseGlobal()
		u.handleGlobal(g)
		for _, pending := range p.DrainPendingGlobals() {
			u.handleGlobal(pending)
		}
	}

	scopes.EmitTentativeDefinitions(func(sym *scope.Symbol) {
		e.EmitGlobalVariable(sym)
	})

	return e.Flush()
}

func (u *unit) handleGlobal(g *parser.Global) {
	switch g.Kind {
	case parser.GlobalNone:

	case parser.GlobalFunction:
		u.dumpAST(g.Function)
		u.emitStrings(g.Function)
		fn := u.gen.GenerateFunction(g.Function)
		u.emit.EmitFunction(fn)

	case parser.GlobalVariable:
		if g.Initializer != nil {
			u.dumpAST(g.Initializer)
			u.emitStrings(g.Initializer)
		}
		u.emit.EmitGlobalVariable(g.Symbol)
		if g.Initializer != nil {
			fn := u.gen.GenerateStaticInitializer(g.Symbol, g.Initializer)
			u.emit.EmitFunction(fn)
		}
	}
}

// emitStrings walks a completed subtree and writes out the storage for
// every string literal it references. The original emits these inline
// during parsing; with parsing and emission separated, this walk is the
// single point where a literal's bytes reach the output.
func (u *unit) emitStrings(node *ast.Node) {
	if node == nil {
		return
	}
	if node.Kind == ast.String && !u.emittedStrings[node.StringLabel] {
		u.emittedStrings[node.StringLabel] = true
		u.emit.EmitStringLiteral(node.StringLabel, node.StrValue)
	}
	for c := node.FirstChild; c != nil; c = c.RightSibling {
		u.emitStrings(c)
	}
	for _, c := range node.Initializers {
		u.emitStrings(c)
	}
}

func (u *unit) dumpAST(node *ast.Node) {
	if u.opts.DumpAST == "" {
		return
	}
	w := u.opts.DumpWriter
	if w == nil {
		w = os.Stderr
	}
	style := ast.DumpUnicode
	if u.opts.DumpAST == "ascii" {
		style = ast.DumpASCII
	}
	ast.Dump(w, node, style)
}
