// Statement parsing (spec.md §4.7's "Statements" subsection), ported from
// parse_stmt.c. Where the original threads break_container/continue_
// container/switch_container/switch_list through file-scope statics, this
// package threads the equivalent stacks through Parser (see containers and
// switches in parser.go) so a translation unit's parser can be reused
// across tests without leftover state from a previous compile.
package parser

import (
	"strconv"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

func wideOf(v int64) bignum.Wide { return bignum.FromI64(v) }

// parsePredicate parses an expression used as a loop/if/switch-controlling
// condition, rejecting struct/union and function-typed operands and
// narrowing it to register width.
func (p *Parser) parsePredicate() *ast.Node {
	return ast.MakePredicate(p.D, p.ParseExpression())
}

func (p *Parser) locOfNode(n *ast.Node) diag.Located {
	if n.Tok != nil {
		return n.Tok
	}
	return p.loc()
}

// parseReturn parses a `return` statement, validating it against the
// enclosing function's declared return type (parse_return).
func (p *Parser) parseReturn() *ast.Node {
	tok := p.cur()
	p.expect("return")
	expected := p.currentFunctionType
	node := ast.NewWithToken(ast.Return, &tok)
	node.Type = types.NewBase(types.Void)

	if p.Lex.Accept(";") {
		if !expected.MatchesBase(types.Void) {
			p.D.Fatalf(tok, "Expected a return value for function with non-`void` return type.")
		}
		return node
	}

	if expected.MatchesBase(types.Void) {
		p.D.Fatalf(tok, "Cannot return a value from a function with `void` return type.")
	}
	expr := p.ParseExpression()
	if !types.Equal(expr.Type, expected) {
		expr = ast.CastTo(p.D, expr, expected, nil)
	}
	ast.Append(node, expr)
	p.Lex.Expect(";", "Expected `;` at end of `return` statement.")
	return node
}

// parseIf parses an `if`/`else` statement (parse_if). Each arm is wrapped
// in its own Sequence node even when it holds a single statement, so
// codegen always has a uniform container to walk.
func (p *Parser) parseIf() *ast.Node {
	tok := p.cur()
	p.expect("if")
	node := ast.NewWithToken(ast.If, &tok)
	node.Type = types.NewBase(types.Void)

	p.expect("(")
	ast.Append(node, p.parsePredicate())
	p.expect(")")

	trueArm := ast.New(ast.Sequence)
	trueArm.Type = types.NewBase(types.Void)
	ast.Append(node, trueArm)
	p.parseStatement(trueArm, true)

	if p.Lex.Accept("else") {
		falseArm := ast.New(ast.Sequence)
		falseArm.Type = types.NewBase(types.Void)
		ast.Append(node, falseArm)
		p.parseStatement(falseArm, true)
	}

	return node
}

// parseLoopBody parses the body of a while/do/for loop, binding break and
// continue to loop for the duration (parse_loop_body). A break or continue
// reached through a nested statement expression inside the loop's own
// clauses (parsed by the caller, outside this function) still binds to
// whatever was innermost before the loop, which is why the container is
// only pushed around the body itself.
func (p *Parser) parseLoopBody(loop *ast.Node) {
	p.pushContainer(loop)
	defer p.popContainer()
	prevContinue := p.continueContainer
	p.continueContainer = loop
	defer func() { p.continueContainer = prevContinue }()

	body := ast.New(ast.Sequence)
	body.Type = types.NewBase(types.Void)
	ast.Append(loop, body)
	p.parseStatement(body, true)
}

func (p *Parser) parseWhile() *ast.Node {
	tok := p.cur()
	p.expect("while")
	node := ast.NewWithToken(ast.While, &tok)
	node.Type = types.NewBase(types.Void)

	p.expect("(")
	ast.Append(node, p.parsePredicate())
	p.expect(")")

	p.parseLoopBody(node)
	return node
}

func (p *Parser) parseDo() *ast.Node {
	tok := p.cur()
	p.expect("do")
	node := ast.NewWithToken(ast.Do, &tok)
	node.Type = types.NewBase(types.Void)

	p.parseLoopBody(node)

	p.Lex.Expect("while", "Expected `while` after statement of `do` loop.")
	p.expect("(")
	ast.Append(node, p.parsePredicate())
	p.expect(")")
	p.Lex.Expect(";", "Expected `;` at end of `do` loop.")
	return node
}

// parseFor parses a `for` statement's three clauses, each of which may be
// absent (parse_for). Clause 1 may be a declaration, in which case its own
// scope spans the whole loop (including the body) so the induction
// variable is visible there.
func (p *Parser) parseFor() *ast.Node {
	tok := p.cur()
	p.expect("for")
	node := ast.NewWithToken(ast.For, &tok)
	node.Type = types.NewBase(types.Void)

	p.expect("(")
	p.Scopes.Push()
	defer p.Scopes.Pop()

	if p.Lex.Accept(";") {
		ast.Append(node, ast.NewNoop())
	} else if p.startsDeclarationSpecifier(p.cur()) {
		p.parseDeclarationOrDefinition(node, false)
	} else {
		ast.Append(node, p.ParseExpression())
		p.Lex.Expect(";", "Expected `;` after first clause of `for` loop.")
	}

	if p.cur().Is(";") {
		ast.Append(node, ast.NewNoop())
	} else {
		ast.Append(node, p.parsePredicate())
	}
	p.Lex.Expect(";", "Expected `;` after second clause of `for` loop.")

	if p.cur().Is(")") {
		ast.Append(node, ast.NewNoop())
	} else {
		ast.Append(node, p.ParseExpression())
	}
	p.expect(")")

	p.parseLoopBody(node)
	return node
}

// parseSwitch parses a `switch` statement (parse_switch). The controlling
// expression must be an integer or enum type; it is promoted before being
// stored as the switch node's first child so codegen and case-label
// folding both see the already-promoted type.
func (p *Parser) parseSwitch() *ast.Node {
	tok := p.cur()
	p.expect("switch")
	node := ast.NewWithToken(ast.Switch, &tok)
	node.Type = types.NewBase(types.Void)

	p.expect("(")
	expr := p.ParseExpression()
	p.expect(")")

	badType := !expr.Type.IsBase() || (!expr.Type.MatchesBase(types.Enum) && !expr.Type.IsInteger())
	if badType {
		p.D.Fatalf(p.locOfNode(expr), "Expected `switch` expression to have integer type.")
	}
	expr = ast.Promote(p.D, expr)
	ast.Append(node, expr)

	p.pushContainer(node)
	defer p.popContainer()
	p.pushSwitch(node)
	defer p.popSwitch()
	prevSwitchList := p.switchList
	p.switchList = node
	defer func() { p.switchList = prevSwitchList }()

	body := ast.New(ast.Sequence)
	body.Type = types.NewBase(types.Void)
	ast.Append(node, body)
	p.parseStatement(body, true)

	return node
}

func (p *Parser) parseBreak() *ast.Node {
	tok := p.cur()
	p.expect("break")
	container := p.innermostContainer()
	if container == nil {
		p.D.Fatalf(tok, "Cannot `break` outside of a loop or switch.")
	}
	node := ast.NewWithToken(ast.Break, &tok)
	node.Type = types.NewBase(types.Void)
	node.Container = container
	p.Lex.Expect(";", "Expected `;` at end of `break` statement.")
	return node
}

func (p *Parser) parseContinue() *ast.Node {
	tok := p.cur()
	p.expect("continue")
	container := p.continueContainer
	if container == nil {
		p.D.Fatalf(tok, "Cannot `continue` outside of a loop.")
	}
	node := ast.NewWithToken(ast.Continue, &tok)
	node.Type = types.NewBase(types.Void)
	node.Container = container
	p.Lex.Expect(";", "Expected `;` at end of `continue` statement.")
	return node
}

// parseCase parses a `case` label, linking it into the enclosing switch's
// next_case chain (parse_case). A GNU range (`case lo ... hi`) requires
// -Wgnu-case-range; a plain case has start == end.
func (p *Parser) parseCase(parent *ast.Node) {
	tok := p.cur()
	p.expect("case")
	node := ast.NewWithToken(ast.Case, &tok)
	node.Type = types.NewBase(types.Void)
	ast.Append(parent, node)

	sw := p.innermostSwitch()
	if sw == nil {
		p.D.Fatalf(tok, "Cannot use `case` outside of a `switch` statement.")
	}
	p.switchList.NextCase = node
	p.switchList = node

	switchType := sw.FirstChild.Type
	startExpr, startVal := p.ParseConstantExpression()
	startExpr = ast.CastTo(p.D, startExpr, switchType, nil)
	node.CaseStart = wideOf(startVal)

	if p.cur().Is("...") {
		p.D.Warn(diag.WarnGNUCaseRange, p.cur(), "Case ranges are a GNU extension.")
		p.Lex.Consume()
		endExpr, endVal := p.ParseConstantExpression()
		endExpr = ast.CastTo(p.D, endExpr, switchType, nil)
		node.CaseEnd = wideOf(endVal)
		ast.Append(node, startExpr)
		ast.Append(node, endExpr)
	} else {
		node.CaseEnd = node.CaseStart
		ast.Append(node, startExpr)
	}

	p.Lex.Expect(":", "Expected `:` after expression for `case`.")
}

func (p *Parser) parseDefault(parent *ast.Node) {
	tok := p.cur()
	p.expect("default")
	node := ast.NewWithToken(ast.Default, &tok)
	node.Type = types.NewBase(types.Void)
	ast.Append(parent, node)

	if p.switchList == nil {
		p.D.Fatalf(tok, "Cannot use `default` outside of a `switch` statement.")
	}
	p.switchList.NextCase = node
	p.switchList = node

	p.Lex.Expect(":", "Expected `:` after `default`.")
}

func (p *Parser) parseLabel(parent *ast.Node, name token.Token) {
	node := ast.NewWithToken(ast.Label, &name)
	node.Type = types.NewBase(types.Void)
	node.StrValue = p.mangleUserLabel(identText(name))
	ast.Append(parent, node)
}

// mangleUserLabel applies spec.md §4.7's `_U_<len>_<funcname>_<label>`
// scheme so that user labels never collide with generated labels or with
// same-named labels in other functions.
func (p *Parser) mangleUserLabel(name string) string {
	fn := p.currentFunctionName
	return "_U_" + strconv.Itoa(len(fn)) + "_" + fn + "_" + name
}

// parseLabels parses zero or more leading case/default/user labels before a
// statement (parse_labels); it reports whether any were found, since a
// label immediately followed by a declaration is rejected.
func (p *Parser) parseLabels(parent *ast.Node) bool {
	found := false
	for {
		if p.cur().Is("case") {
			p.parseCase(parent)
			found = true
			continue
		}
		if p.cur().Is("default") {
			p.parseDefault(parent)
			found = true
			continue
		}
		if p.cur().Kind == token.Alphanumeric && !isStatementKeyword(p.cur().Text()) {
			name := p.Lex.Take()
			if !p.Lex.Accept(":") {
				p.Lex.Push(name)
				break
			}
			p.parseLabel(parent, name)
			found = true
			continue
		}
		break
	}
	return found
}

// isStatementKeyword reports whether text is a reserved statement keyword,
// so parseLabels doesn't mistake e.g. `while` for a label name missing its
// colon and misparse `while (x) ;` one token ahead.
func isStatementKeyword(text string) bool {
	switch text {
	case "if", "while", "do", "for", "switch", "break", "continue",
		"return", "goto", "case", "default":
		return true
	}
	return false
}

func (p *Parser) parseGoto() *ast.Node {
	tok := p.cur()
	p.expect("goto")
	if p.cur().Kind != token.Alphanumeric {
		p.D.Fatalf(p.cur(), "`goto` must be followed by a label name.")
	}
	target := p.Lex.Take()
	node := ast.NewWithToken(ast.Goto, &tok)
	node.Type = types.NewBase(types.Void)
	node.StrValue = p.mangleUserLabel(identText(target))
	p.Lex.Expect(";", "Expected `;` at end of `goto`.")
	return node
}

// parseStatementNoLabels parses one statement, not including any leading
// labels (parse_statement_no_labels). If castToVoid is true, an
// expression-statement's value is discarded by an implicit cast to void.
// Every caller passes true; a GNU statement expression recovers its
// trailing value by stripping that cast afterwards
// (parseStatementExpression).
func (p *Parser) parseStatementNoLabels(parent *ast.Node, castToVoid bool) {
	if p.Lex.Accept(";") {
		return
	}

	if p.cur().Is("{") {
		ast.Append(parent, p.parseCompoundStatement())
		return
	}

	if p.cur().Kind == token.Alphanumeric {
		switch p.cur().Text() {
		case "if":
			ast.Append(parent, p.parseIf())
			return
		case "while":
			ast.Append(parent, p.parseWhile())
			return
		case "do":
			ast.Append(parent, p.parseDo())
			return
		case "for":
			ast.Append(parent, p.parseFor())
			return
		case "switch":
			ast.Append(parent, p.parseSwitch())
			return
		case "break":
			ast.Append(parent, p.parseBreak())
			return
		case "continue":
			ast.Append(parent, p.parseContinue())
			return
		case "return":
			ast.Append(parent, p.parseReturn())
			return
		case "goto":
			ast.Append(parent, p.parseGoto())
			return
		}
	}

	expr := p.ParseExpression()
	if castToVoid {
		expr = ast.CastBase(p.D, expr, types.Void, nil)
	}
	ast.Append(parent, expr)
	p.Lex.Expect(";", "Expected `;` at end of expression statement.")
}

// parseStatement parses one labelled statement (parse_statement): any
// leading case/default/user labels, then the statement itself.
func (p *Parser) parseStatement(parent *ast.Node, castToVoid bool) {
	p.parseLabels(parent)
	p.parseStatementNoLabels(parent, castToVoid)
}

// parseDeclarationOrStatement parses one block-scope item: a declaration,
// or a (possibly labelled) statement (parse_declaration_or_statement). A
// label cannot be immediately followed by a declaration.
func (p *Parser) parseDeclarationOrStatement(parent *ast.Node, castToVoid bool) {
	found := p.parseLabels(parent)

	if p.startsDeclarationSpecifier(p.cur()) {
		global := p.parseDeclarationOrDefinition(parent, false)
		if found {
			p.D.Fatalf(parent.LastChild.Tok, "A label cannot be followed by a declaration. (Add `;` after the label.)")
		}
		if global.Kind == GlobalVariable {
			p.pendingGlobals = append(p.pendingGlobals, global)
		}
		return
	}

	p.parseStatementNoLabels(parent, castToVoid)
}

// parseCompoundStatementInner parses `{` ... `}` into a Sequence node
// (parse_compound_statement), always pushing a fresh scope around the
// body; GNU statement expressions use it too and get the same nested
// scope.
func (p *Parser) parseCompoundStatementInner() *ast.Node {
	tok := p.cur()
	p.expect("{")
	p.Scopes.Push()

	node := ast.NewWithToken(ast.Sequence, &tok)
	node.Type = types.NewBase(types.Void)
	for !p.cur().Is("}") {
		if p.AtEnd() {
			p.D.Fatalf(p.cur(), "Expected `}` before end of input.")
		}
		p.parseDeclarationOrStatement(node, true)
	}
	end := p.Lex.Take()
	node.EndTok = &end

	p.Scopes.Pop()
	return node
}

// parseCompoundStatement is the entry point used both for a function body
// and for a nested `{ ... }` statement.
func (p *Parser) parseCompoundStatement() *ast.Node {
	return p.parseCompoundStatementInner()
}
