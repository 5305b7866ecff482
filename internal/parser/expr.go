package parser

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/consteval"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// ParseExpression parses a full comma expression, the entry point used
// everywhere an expression is expected (parse_comma_expression).
func (p *Parser) ParseExpression() *ast.Node {
	return p.parseCommaExpression()
}

// ParseConstantExpression parses and immediately folds a constant
// expression (used for array bounds, enum values, case labels, static
// initializers), returning the folded value and its node.
func (p *Parser) ParseConstantExpression() (*ast.Node, int64) {
	node := p.parseConditionalExpression()
	w := consteval.Eval(p.D, node)
	return node, w.I64()
}

func (p *Parser) parseCommaExpression() *ast.Node {
	left := p.parseAssignmentExpression()
	if !p.cur().Is(",") {
		return left
	}
	seq := ast.New(ast.Sequence)
	seq.Tok = left.Tok
	ast.Append(seq, left)
	for p.Lex.Accept(",") {
		child := p.parseAssignmentExpression()
		ast.Append(seq, child)
	}
	seq.Type = seq.LastChild.Type
	return seq
}

func (p *Parser) parseAssignmentExpression() *ast.Node {
	left := p.parseConditionalExpression()

	tok := p.cur()
	kind := ast.KindOfAssignmentOperator(tok)
	if kind == ast.Invalid {
		return left
	}
	if !ast.IsLocation(left) {
		p.D.Fatalf(tok, "The left side of an assignment must be an assignable location.")
	}
	if left.Type.IsConst {
		p.D.Fatalf(tok, "Cannot assign to a const-qualified location.")
	}
	p.Lex.Consume()

	right := p.parseAssignmentExpression()

	node := ast.NewWithToken(kind, &tok)
	node.Type = left.Type

	if kind == ast.Assign {
		right = ast.CastTo(p.D, right, left.Type, nil)
		ast.Append(node, left)
		ast.Append(node, right)
		return node
	}

	// Compound assignment reads and writes `left` exactly once: the code
	// generator evaluates its address a single time (generate_assign),
	// loads, applies the operator and stores back, so the parser builds one
	// compound node rather than desugaring into a separate read and write.
	if left.Type.IsIndirection() {
		if kind != ast.AddAssign && kind != ast.SubAssign {
			p.D.Fatalf(tok, "This compound-assignment operator cannot be used on a pointer.")
		}
		if !right.Type.IsInteger() {
			p.D.Fatalf(tok, "Pointer compound assignment requires an integer right-hand side.")
		}
	} else {
		if !left.Type.IsArithmetic() || !right.Type.IsArithmetic() {
			p.D.Fatalf(tok, "Operands of this operator must have arithmetic type.")
		}
		right = ast.CastTo(p.D, right, left.Type, nil)
	}
	ast.Append(node, left)
	ast.Append(node, right)
	return node
}

func (p *Parser) parseConditionalExpression() *ast.Node {
	cond := p.parseBinaryExpression(1)
	if !p.Lex.Accept("?") {
		return cond
	}
	if p.cur().Is(":") {
		// GNU conditional with omitted middle operand (`a ?: b`).
		p.fatalf("The elvis operator `?:` is not yet implemented.")
	}
	tok := p.cur()
	trueExpr := p.ParseExpression()
	p.expect(":")
	falseExpr := p.parseConditionalExpression()

	cond = ast.MakePredicate(p.D, cond)
	trueExpr, falseExpr, resType := p.usualArithmeticConversionsOrPointers(trueExpr, falseExpr, tok)

	node := ast.NewWithToken(ast.If, &tok)
	node.Type = resType
	ast.Append(node, cond)
	ast.Append(node, trueExpr)
	ast.Append(node, falseExpr)
	return node
}

// parseBinaryExpression implements precedence-climbing over
// ast.PrecedenceOfBinaryOperator (parse_binary_expression).
func (p *Parser) parseBinaryExpression(minPrec int) *ast.Node {
	left := p.parseUnaryOrCastThenPostfix()

	for {
		tok := p.cur()
		kind := ast.KindOfBinaryOperator(tok)
		if kind == ast.Invalid {
			return left
		}
		prec := ast.PrecedenceOfBinaryOperator(kind)
		if prec < minPrec {
			return left
		}
		p.Lex.Consume()
		right := p.parseBinaryExpression(prec + 1)
		left = p.makeBinary(kind, left, right, tok)
	}
}

func (p *Parser) makeBinary(kind ast.Kind, left, right *ast.Node, tok token.Token) *ast.Node {
	switch kind {
	case ast.LogicalOr, ast.LogicalAnd:
		left = ast.MakePredicate(p.D, left)
		right = ast.MakePredicate(p.D, right)
		node := ast.NewWithToken(kind, &tok)
		node.Type = types.NewBase(types.SignedInt)
		ast.Append(node, left)
		ast.Append(node, right)
		return node

	case ast.Add, ast.Sub:
		if node, ok := p.makePointerArithmetic(kind, left, right, tok); ok {
			return node
		}

	case ast.Equal, ast.NotEqual, ast.Less, ast.Greater, ast.LessOrEqual, ast.GreaterOrEqual:
		if node, ok := p.makePointerComparison(kind, left, right, tok); ok {
			return node
		}
	}

	l2, r2, resType := p.usualArithmeticConversions(left, right, tok)
	switch kind {
	case ast.Equal, ast.NotEqual, ast.Less, ast.Greater, ast.LessOrEqual, ast.GreaterOrEqual:
		resType = types.NewBase(types.SignedInt)
	}
	node := ast.NewWithToken(kind, &tok)
	node.Type = resType
	ast.Append(node, l2)
	ast.Append(node, r2)
	return node
}

// makePointerArithmetic handles `ptr + int`, `int + ptr`, `ptr - int` and
// `ptr - ptr` (generate_pointer_add_sub's parse-time counterpart); returns
// ok=false when neither operand is a pointer so the caller falls through to
// ordinary arithmetic.
func (p *Parser) makePointerArithmetic(kind ast.Kind, left, right *ast.Node, tok token.Token) (*ast.Node, bool) {
	leftPtr := left.Type.IsIndirection()
	rightPtr := right.Type.IsIndirection()
	if !leftPtr && !rightPtr {
		return nil, false
	}

	if leftPtr && rightPtr {
		if kind != ast.Sub {
			p.D.Fatalf(tok, "Cannot add two pointers.")
		}
		left = ast.Decay(left)
		right = ast.Decay(right)
		if !types.Compatible(left.Type.Ref, right.Type.Ref) {
			p.D.Fatalf(tok, "Cannot subtract pointers of different types.")
		}
		sub := ast.NewWithToken(ast.Sub, &tok)
		sub.Type = types.NewBase(types.SignedLong)
		ast.Append(sub, left)
		ast.Append(sub, right)
		elemSize := types.Size(left.Type.Ref)
		if elemSize <= 1 {
			return sub, true
		}
		divNode := ast.NewWithToken(ast.Div, &tok)
		divNode.Type = sub.Type
		ast.Append(divNode, sub)
		ast.Append(divNode, p.literalLong(int64(elemSize)))
		return divNode, true
	}

	ptrNode, intNode := left, right
	if rightPtr {
		ptrNode, intNode = right, left
	}
	if kind == ast.Sub && rightPtr && !leftPtr {
		p.D.Fatalf(tok, "Cannot subtract a pointer from an integer.")
	}
	if !intNode.Type.IsInteger() {
		p.D.Fatalf(tok, "Pointer arithmetic requires an integer operand.")
	}
	ptrNode = ast.Decay(ptrNode)
	node := ast.NewWithToken(kind, &tok)
	node.Type = ptrNode.Type
	if leftPtr {
		ast.Append(node, ptrNode)
		ast.Append(node, intNode)
	} else {
		ast.Append(node, intNode)
		ast.Append(node, ptrNode)
	}
	return node, true
}

// makePointerComparison handles comparisons where at least one operand is a
// pointer (or an array/function decaying to one): both sides decay, a
// null-pointer constant converts to the other side's type, and the operand
// types must otherwise be compatible. The result is int, like every other
// comparison; returns ok=false when neither operand is a pointer.
func (p *Parser) makePointerComparison(kind ast.Kind, left, right *ast.Node, tok token.Token) (*ast.Node, bool) {
	if !left.Type.IsIndirection() && !right.Type.IsIndirection() {
		return nil, false
	}
	left = ast.Decay(left)
	right = ast.Decay(right)

	switch {
	case ast.IsNull(left):
		left = ast.CastTo(p.D, left, right.Type, nil)
	case ast.IsNull(right):
		right = ast.CastTo(p.D, right, left.Type, nil)
	case !left.Type.IsIndirection() || !right.Type.IsIndirection():
		p.D.Fatalf(tok, "Cannot compare a pointer against a non-pointer value.")
	case !types.CompatibleUnqual(left.Type, right.Type):
		p.D.Fatalf(tok, "Cannot compare pointers of incompatible types.")
	}

	node := ast.NewWithToken(kind, &tok)
	node.Type = types.NewBase(types.SignedInt)
	ast.Append(node, left)
	ast.Append(node, right)
	return node, true
}

func (p *Parser) literalLong(v int64) *ast.Node {
	n := ast.New(ast.Number)
	n.Type = types.NewBase(types.SignedLong)
	n.Value = bignum.FromI64(v)
	return n
}

// usualArithmeticConversions implements C17 6.3.1.8 for two already-typed
// arithmetic operands: promote both, then widen to the common type
// (parse_binary_conversions).
func (p *Parser) usualArithmeticConversions(left, right *ast.Node, tok token.Token) (*ast.Node, *ast.Node, *types.Type) {
	if !left.Type.IsArithmetic() || !right.Type.IsArithmetic() {
		p.D.Fatalf(tok, "Operands of this operator must have arithmetic type.")
	}
	left = ast.Promote(p.D, left)
	right = ast.Promote(p.D, right)

	common := commonArithmeticType(left.Type, right.Type)
	left = ast.CastTo(p.D, left, common, nil)
	right = ast.CastTo(p.D, right, common, nil)
	return left, right, common
}

// usualArithmeticConversionsOrPointers extends the above for the ternary
// operator, which also allows both branches to be compatible pointers or
// one branch to be a null-pointer constant.
func (p *Parser) usualArithmeticConversionsOrPointers(left, right *ast.Node, tok token.Token) (*ast.Node, *ast.Node, *types.Type) {
	if left.Type.IsArithmetic() && right.Type.IsArithmetic() {
		return p.usualArithmeticConversions(left, right, tok)
	}
	if left.Type.IsIndirection() || right.Type.IsIndirection() {
		leftDec := ast.Decay(left)
		rightDec := ast.Decay(right)
		if ast.IsNull(leftDec) {
			return ast.CastTo(p.D, leftDec, rightDec.Type, nil), rightDec, rightDec.Type
		}
		if ast.IsNull(rightDec) {
			return leftDec, ast.CastTo(p.D, rightDec, leftDec.Type, nil), leftDec.Type
		}
		return leftDec, rightDec, leftDec.Type
	}
	if !types.Equal(left.Type, right.Type) {
		p.D.Fatalf(tok, "The two branches of this conditional expression have incompatible types.")
	}
	return left, right, left.Type
}

func commonArithmeticType(a, b *types.Type) *types.Type {
	if types.Equal(a, b) {
		return a
	}
	rankA, rankB := types.IntegerRank(a), types.IntegerRank(b)
	signedA, signedB := a.IsSignedInteger(), b.IsSignedInteger()

	if signedA == signedB {
		if rankA >= rankB {
			return a
		}
		return b
	}
	// one signed, one unsigned
	var signed, unsigned *types.Type
	if signedA {
		signed, unsigned = a, b
	} else {
		signed, unsigned = b, a
	}
	if types.IntegerRank(unsigned) >= types.IntegerRank(signed) {
		return unsigned
	}
	// signed type can represent all values of the unsigned type
	return signed
}

// parseUnaryOrCastThenPostfix parses a cast-or-unary expression, which is
// the operand grammar one level below binary operators.
func (p *Parser) parseUnaryOrCastThenPostfix() *ast.Node {
	if p.cur().Is("(") {
		if typ, ok := p.tryParseParenthesizedTypeName(); ok {
			tok := p.cur()
			operand := p.parseUnaryOrCastThenPostfix()
			checked := ast.CastTo(p.D, operand, typ, &tok)
			return p.parsePostfixExpressionTail(checked)
		}
	}
	return p.parseUnaryExpression()
}

func (p *Parser) parseUnaryExpression() *ast.Node {
	tok := p.cur()

	if tok.Is("sizeof") {
		p.Lex.Consume()
		return p.parseSizeof(tok)
	}

	if kind := ast.KindOfUnaryOperator(tok); kind != ast.Invalid && (tok.Is("+") || tok.Is("-") || tok.Is("!") || tok.Is("~") || tok.Is("*") || tok.Is("&") || tok.Is("++") || tok.Is("--")) {
		p.Lex.Consume()
		operand := p.parseUnaryOrCastThenPostfix()
		return p.makeUnary(kind, operand, tok)
	}

	return p.parsePostfixExpression()
}

func (p *Parser) makeUnary(kind ast.Kind, operand *ast.Node, tok token.Token) *ast.Node {
	switch kind {
	case ast.AddressOf:
		if !ast.IsLocation(operand) {
			p.D.Fatalf(tok, "Cannot take the address of a non-location expression.")
		}
		node := ast.NewWithToken(ast.AddressOf, &tok)
		node.Type = types.NewPointer(operand.Type, false, false, false)
		ast.Append(node, operand)
		return node

	case ast.Dereference:
		operand = ast.Decay(operand)
		if !operand.Type.IsIndirection() {
			p.D.Fatalf(tok, "Cannot dereference a non-pointer value.")
		}
		node := ast.NewWithToken(ast.Dereference, &tok)
		node.Type = operand.Type.Ref
		ast.Append(node, operand)
		return node

	case ast.LogicalNot:
		operand = ast.MakePredicate(p.D, operand)
		node := ast.NewWithToken(ast.LogicalNot, &tok)
		node.Type = types.NewBase(types.SignedInt)
		ast.Append(node, operand)
		return node

	case ast.UnaryPlus, ast.UnaryMinus, ast.BitNot:
		operand = ast.Promote(p.D, operand)
		node := ast.NewWithToken(kind, &tok)
		node.Type = operand.Type
		ast.Append(node, operand)
		return node

	case ast.PreInc, ast.PreDec:
		if !ast.IsLocation(operand) {
			p.D.Fatalf(tok, "The operand of `++`/`--` must be an assignable location.")
		}
		node := ast.NewWithToken(kind, &tok)
		node.Type = operand.Type
		ast.Append(node, operand)
		return node
	}
	panic("parser: unreachable unary kind")
}

func (p *Parser) parseSizeof(tok token.Token) *ast.Node {
	var operandType *types.Type
	if p.cur().Is("(") {
		save := p.Lex.Current()
		p.Lex.Consume()
		if typ, ok := p.tryParseTypeName(); ok {
			p.expect(")")
			operandType = typ
		} else {
			p.Lex.Push(save)
		}
	}
	var operand *ast.Node
	if operandType == nil {
		operand = p.parseUnaryOrCastThenPostfix()
		operandType = operand.Type
	} else {
		operand = ast.New(ast.TypeNode)
		operand.Type = operandType
	}

	node := ast.NewWithToken(ast.Sizeof, &tok)
	node.Type = types.NewBase(types.UnsignedLong)
	ast.Append(node, operand)
	return node
}

func (p *Parser) parsePostfixExpression() *ast.Node {
	primary := p.parsePrimaryExpression()
	return p.parsePostfixExpressionTail(primary)
}

func (p *Parser) parsePostfixExpressionTail(node *ast.Node) *ast.Node {
	for {
		tok := p.cur()
		switch {
		case tok.Is("["):
			p.Lex.Consume()
			index := p.ParseExpression()
			p.expect("]")
			node = p.makeArraySubscript(node, index, tok)

		case tok.Is("("):
			node = p.parseFunctionCall(node, tok)

		case tok.Is("."):
			p.Lex.Consume()
			node = p.parseMemberAccess(node, tok, ast.MemberVal)

		case tok.Is("->"):
			p.Lex.Consume()
			node = p.parseMemberAccess(node, tok, ast.MemberPtr)

		case tok.Is("++"):
			p.Lex.Consume()
			if !ast.IsLocation(node) {
				p.D.Fatalf(tok, "The operand of `++` must be an assignable location.")
			}
			post := ast.NewWithToken(ast.PostInc, &tok)
			post.Type = node.Type
			ast.Append(post, node)
			node = post

		case tok.Is("--"):
			p.Lex.Consume()
			if !ast.IsLocation(node) {
				p.D.Fatalf(tok, "The operand of `--` must be an assignable location.")
			}
			post := ast.NewWithToken(ast.PostDec, &tok)
			post.Type = node.Type
			ast.Append(post, node)
			node = post

		default:
			return node
		}
	}
}

func (p *Parser) makeArraySubscript(array, index *ast.Node, tok token.Token) *ast.Node {
	array = ast.Decay(array)
	if !array.Type.IsIndirection() {
		index = ast.Decay(index)
		array, index = index, array
	}
	if !array.Type.IsIndirection() || !index.Type.IsInteger() {
		p.D.Fatalf(tok, "Invalid operands to array subscript.")
	}
	node := ast.NewWithToken(ast.ArraySubscript, &tok)
	node.Type = array.Type.Ref
	ast.Append(node, array)
	ast.Append(node, index)
	return node
}

func (p *Parser) parseMemberAccess(base *ast.Node, tok token.Token, kind ast.Kind) *ast.Node {
	nameTok := p.cur()
	if nameTok.Kind != token.Alphanumeric {
		p.D.Fatalf(nameTok, "Expected a member name.")
	}
	p.Lex.Consume()

	target := base.Type
	if kind == ast.MemberPtr {
		target = ast.Decay(base).Type
		if !target.IsIndirection() {
			p.D.Fatalf(tok, "The left side of `->` must be a pointer.")
		}
		target = target.Ref
	}
	if !target.MatchesBase(types.Record) {
		p.D.Fatalf(tok, "The left side of `.`/`->` must be a struct or union.")
	}
	member, ok := target.RecordType.Find(identText(nameTok))
	if !ok {
		p.D.Fatalf(nameTok, "No member named `%s` in this struct/union.", identText(nameTok))
	}
	if member.BitWidth >= 0 {
		// The code generator would read and write the whole storage unit,
		// corrupting sibling fields packed into it; the layout exists but
		// the masked load/store does not.
		p.D.Fatalf(nameTok, "Not yet implemented: access to bit-field member `%s`.", identText(nameTok))
	}

	node := ast.NewWithToken(kind, &tok)
	node.Type = member.Type
	node.MemberOffset = member.Offset
	node.Member = &nameTok
	if kind == ast.MemberPtr {
		ast.Append(node, ast.Decay(base))
	} else {
		ast.Append(node, base)
	}
	return node
}

func (p *Parser) parseFunctionCall(callee *ast.Node, tok token.Token) *ast.Node {
	p.Lex.Consume() // '('
	callee = ast.Decay(callee)
	fnType := callee.Type
	if fnType.IsIndirection() {
		fnType = fnType.Ref
	}
	if !fnType.IsFunction() {
		p.D.Fatalf(tok, "Cannot call a non-function value.")
	}

	node := ast.NewWithToken(ast.Call, &tok)
	node.Type = fnType.Ref
	ast.Append(node, callee)

	i := 0
	for !p.cur().Is(")") {
		if i > 0 {
			p.expect(",")
		}
		arg := p.parseAssignmentExpression()
		if i < len(fnType.Args) {
			arg = ast.CastTo(p.D, arg, fnType.Args[i], nil)
		} else {
			arg = ast.Decay(arg)
			if arg.Type.IsArithmetic() {
				arg = ast.Promote(p.D, arg)
			}
		}
		ast.Append(node, arg)
		i++
	}
	p.expect(")")

	// A variadic function still requires all of its named arguments.
	if i < len(fnType.Args) {
		p.D.Fatalf(tok, "Too few arguments in function call.")
	}
	if i > len(fnType.Args) && !fnType.IsVariadic {
		p.D.Fatalf(tok, "Too many arguments in function call.")
	}
	return node
}

func (p *Parser) parsePrimaryExpression() *ast.Node {
	tok := p.cur()

	switch tok.Kind {
	case token.Number:
		p.Lex.Consume()
		return p.parseNumber(tok)

	case token.Character:
		p.Lex.Consume()
		return p.parseCharacter(tok)

	case token.String:
		p.Lex.Consume()
		node := p.parseStringLiteral(tok)
		for p.cur().Kind == token.String {
			next := p.Lex.Take()
			node.StrValue += next.Text()
		}
		node.Type = types.NewArray(types.NewBase(types.Char), uint32(len(node.StrValue)+1))
		return node

	case token.Alphanumeric:
		return p.parseIdentifierExpression(tok)

	case token.Punctuation:
		if tok.Is("(") {
			p.Lex.Consume()
			if p.cur().Is("{") {
				return p.parseStatementExpression(tok)
			}
			inner := p.ParseExpression()
			p.expect(")")
			return inner
		}
	}

	p.D.Fatalf(tok, "Expected an expression, got `%s`.", tok.Text())
	return nil
}

func (p *Parser) parseIdentifierExpression(tok token.Token) *ast.Node {
	name := identText(tok)
	p.Lex.Consume()

	sym := p.Scopes.Current.FindSymbol(name, true)
	if sym == nil {
		p.D.Fatalf(tok, "Use of undeclared identifier `%s`.", name)
	}

	if sym.Kind == scope.KindBuiltin {
		return p.parseBuiltinCall(tok, sym)
	}

	node := ast.NewWithToken(ast.Access, &tok)
	node.Symbol = sym
	if sym.Kind == scope.KindConstant {
		node.Type = sym.Type
	} else {
		node.Type = sym.Type
	}
	return node
}

// parseBuiltinCall parses a call to one of the compiler-magic identifiers
// (__builtin_va_start and friends, __func__) installed by
// scope.InstallBuiltins (parse_primary_expression's BUILTIN handling).
func (p *Parser) parseBuiltinCall(tok token.Token, sym *scope.Symbol) *ast.Node {
	node := ast.NewWithToken(ast.Builtin, &tok)
	node.Builtin = sym.Builtin

	switch sym.Builtin {
	case scope.BuiltinFunc:
		name := p.currentFunctionName
		if name == "" {
			p.D.Fatalf(tok, "`__func__` can only be used inside a function body.")
		}
		str := ast.NewWithToken(ast.String, &tok)
		str.Type = types.NewArray(types.NewBase(types.Char), uint32(len(name)+1))
		str.StrValue = name
		str.StringLabel = p.allocLabel()
		node.Type = str.Type
		ast.Append(node, str)
		return node

	case scope.BuiltinVAStart, scope.BuiltinVAEnd, scope.BuiltinVACopy, scope.BuiltinVAArg:
		p.expect("(")
		node.Type = types.NewBase(types.Void)
		first := p.parseAssignmentExpression()
		ast.Append(node, first)
		if sym.Builtin == scope.BuiltinVAArg {
			p.expect(",")
			if typ, ok := p.tryParseTypeName(); ok {
				node.Type = typ
			} else {
				p.fatalf("Expected a type name as the second argument to __builtin_va_arg.")
			}
		} else if sym.Builtin == scope.BuiltinVAStart {
			// The second argument (the last named parameter) carries no
			// information this ABI needs; it is parsed and discarded.
			if p.Lex.Accept(",") {
				p.parseAssignmentExpression()
			}
		} else if sym.Builtin == scope.BuiltinVACopy {
			p.expect(",")
			second := p.parseAssignmentExpression()
			ast.Append(node, second)
		}
		p.expect(")")
		return node
	}

	p.fatalf("Internal error: unrecognized builtin.")
	return nil
}

// parseStatementExpression parses a GNU statement expression `({ ... })`
// (parse_statement_expression), whose value is that of its last statement,
// which must be an expression statement.
func (p *Parser) parseStatementExpression(tok token.Token) *ast.Node {
	p.D.Warn(diag.WarnStatementExpressions, tok, "statement expressions are a GNU extension")
	body := p.parseCompoundStatementInner()
	p.expect(")")

	seq := ast.NewWithToken(ast.Sequence, &tok)
	last := body.LastChild
	if last == nil {
		seq.Type = types.NewBase(types.Void)
		return seq
	}
	for c := body.FirstChild; c != nil; {
		next := c.RightSibling
		ast.Detach(c)
		ast.Append(seq, c)
		c = next
	}
	// The block parser discarded the final expression statement's value with
	// a cast to void; strip that cast back off so the statement expression
	// evaluates to it.
	if final := seq.LastChild; final.Kind == ast.Cast && final.Type.MatchesBase(types.Void) && final.FirstChild != nil {
		inner := final.FirstChild
		ast.Detach(inner)
		ast.Detach(final)
		ast.Append(seq, inner)
	}
	seq.Type = seq.LastChild.Type
	return seq
}
