// Package parser implements the recursive-descent parser of spec.md §4.7:
// declarations, expressions, statements and initializers, consuming tokens
// directly off internal/token.Lexer and building internal/ast.Node trees
// while resolving identifiers against internal/scope as it goes.
//
// The original couples parsing tightly to code generation: parse_decl.c's
// parse_function_definition calls generate_function/emit_function inline,
// one function at a time, to bound peak memory on its bootstrap host. This
// package instead reports each completed top-level declaration through
// ParseGlobal's return value and lets internal/compiler drive codegen and
// emission — the same one-function-at-a-time memory profile, but without
// internal/parser importing internal/codegen (parse_global).
package parser

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/strtab"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// Options configures parser behavior that the CLI exposes as flags
// (parse_decl_init/parse_stmt_init's static configuration in the original).
type Options struct {
	GNUExtensions   bool
	MSExtensions    bool
	Plan9Extensions bool
}

// GlobalKind classifies what ParseGlobal produced.
type GlobalKind int

const (
	// GlobalNone means the top-level construct was a declaration with no
	// definition (a prototype, an extern, a typedef, a struct/enum tag) —
	// nothing further needs to happen.
	GlobalNone GlobalKind = iota
	// GlobalFunction means Function holds a completed function definition
	// ready for code generation.
	GlobalFunction
	// GlobalVariable means Symbol is a global (or static local flushed at
	// end of file) variable needing a storage definition emitted, with an
	// optional initializer.
	GlobalVariable
)

// Global is one item produced by ParseGlobal.
type Global struct {
	Kind        GlobalKind
	Function    *ast.Node
	Symbol      *scope.Symbol
	Initializer *ast.Node
}

// Parser holds all mutable state needed to parse one translation unit
// (the original's collection of global statics across lexer.c, scope.c,
// parse_decl.c, parse_expr.c, parse_stmt.c, bundled into one struct instead
// of package-level globals so tests can run translation units in parallel).
type Parser struct {
	D      *diag.Diagnostics
	Lex    *token.Lexer
	Scopes *scope.Stack
	Strs   *strtab.Table
	Opts   Options

	// NextLabel is a shared serial counter for string literals, generated
	// block labels and synthetic initializer-function names; codegen and
	// emit read the string-literal numbering back out of ast.Node.StringLabel.
	NextLabel int

	// containers is the stack of enclosing loop/switch nodes, so a break
	// statement can bind to the innermost one (node->container in
	// the original, threaded here as an explicit stack instead of a
	// parameter on every statement-parsing function).
	containers []*ast.Node

	// switches parallels containers but only for switch statements, since
	// case/default need to find the innermost switch specifically rather
	// than the innermost loop-or-switch.
	switches []*ast.Node

	// continueContainer is the innermost enclosing loop a `continue`
	// statement restarts (continue_container in the original); unlike
	// break, a switch never rebinds this.
	continueContainer *ast.Node

	// switchList is the most recently parsed case/default node of the
	// innermost switch, or that switch itself if none yet (switch_list in
	// the original): new case/default labels chain off of it via
	// ast.Node.NextCase.
	switchList *ast.Node

	// currentFunctionName is the name of the function currently being
	// parsed, used to resolve __func__/__FUNCTION__ (generate_label_name's
	// parse-time counterpart) and to mangle goto labels; empty at file scope.
	currentFunctionName string

	// currentFunctionType is the return type of the function currently
	// being parsed, checked against every `return` statement.
	currentFunctionType *types.Type

	// pendingGlobals accumulates Global entries that a ParseGlobal call
	// produced but did not itself return: `static` locals discovered while
	// parsing a function body, and all but the last definition of a
	// file-scope comma list; the compiler drains these with
	// DrainPendingGlobals after every ParseGlobal call.
	pendingGlobals []*Global
}

// DrainPendingGlobals returns and clears any Global entries queued during
// the most recent ParseGlobal call (static local variable definitions, and
// the earlier definitions of a file-scope comma list).
func (p *Parser) DrainPendingGlobals() []*Global {
	out := p.pendingGlobals
	p.pendingGlobals = nil
	return out
}

// New creates a parser reading from lex, sharing d and scopes with the rest
// of the compilation.
func New(d *diag.Diagnostics, lex *token.Lexer, scopes *scope.Stack, strs *strtab.Table, opts Options) *Parser {
	return &Parser{D: d, Lex: lex, Scopes: scopes, Strs: strs, Opts: opts}
}

func (p *Parser) cur() token.Token { return p.Lex.Current() }

func (p *Parser) loc() diag.Located { return p.cur() }

func (p *Parser) fatalf(format string, args ...any) {
	p.D.Fatalf(p.loc(), format, args...)
}

func (p *Parser) expect(s string) {
	p.Lex.Expect(s, "")
}

func (p *Parser) allocLabel() int {
	n := p.NextLabel
	p.NextLabel++
	return n
}

// LabelCounter exposes the live address of the shared label serial so
// internal/compiler can hand it to the code generator: block labels,
// string-literal labels and synthetic initializer-function names all draw
// from one counter (next_label in the original), whether allocated during
// parsing or during the code generation that follows each completed
// function.
func (p *Parser) LabelCounter() *int { return &p.NextLabel }

func (p *Parser) pushContainer(n *ast.Node) { p.containers = append(p.containers, n) }
func (p *Parser) popContainer()             { p.containers = p.containers[:len(p.containers)-1] }
func (p *Parser) innermostContainer() *ast.Node {
	if len(p.containers) == 0 {
		return nil
	}
	return p.containers[len(p.containers)-1]
}

func (p *Parser) pushSwitch(n *ast.Node) { p.switches = append(p.switches, n) }
func (p *Parser) popSwitch()             { p.switches = p.switches[:len(p.switches)-1] }
func (p *Parser) innermostSwitch() *ast.Node {
	if len(p.switches) == 0 {
		return nil
	}
	return p.switches[len(p.switches)-1]
}

// AtEnd reports whether the lexer has reached end-of-input, the loop
// condition main.c uses around parse_global().
func (p *Parser) AtEnd() bool { return p.cur().Kind == token.End }

// ParseGlobal parses one top-level external declaration (spec.md §4.7's
// "global" production: a declaration, a function definition, or a bare
// `;`), returning what the caller (internal/compiler) needs to do with it.
func (p *Parser) ParseGlobal() *Global {
	for p.Lex.Accept(";") {
		// skip stray top-level semicolons
	}
	if p.AtEnd() {
		return &Global{Kind: GlobalNone}
	}
	return p.parseDeclarationOrDefinition(nil, true)
}

// identText returns the current token's text if it is an identifier that
// isn't shadowed by a typedef or keyword use the caller rejects; callers
// check tok.Kind == token.Alphanumeric themselves first.
func identText(tok token.Token) string { return tok.Text() }
