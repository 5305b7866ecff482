package parser

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// storageFlag/typeFlag/qualFlag/funcFlag mirror parse_decl.c's bitmask
// specifier tables (STORAGE_SPECIFIER_*/TYPE_SPECIFIER_*/TYPE_QUALIFIER_*/
// FUNCTION_SPECIFIER_*), collected while scanning a declaration's specifier
// sequence before any declarator is parsed.
type storageFlag int

const (
	storageTypedef storageFlag = 1 << iota
	storageExtern
	storageStatic
	storageThreadLocal
	storageAuto
	storageRegister
)

type typeFlag int

const (
	typeVoid typeFlag = 1 << iota
	typeBool
	typeChar
	typeShort
	typeInt
	typeLong
	typeLongLong
	typeSigned
	typeUnsigned
	typeFloat
	typeDouble
	typeRecord
	typeEnum
	typeTypedefName
)

type qualFlag int

const (
	qualConst qualFlag = 1 << iota
	qualVolatile
	qualRestrict
)

type funcFlag int

const (
	funcInline funcFlag = 1 << iota
	funcNoreturn
)

// specifiers accumulates one declaration's specifier sequence
// (try_parse_declaration_specifiers' specifiers_t).
type specifiers struct {
	storage storageFlag
	types   typeFlag
	quals   qualFlag
	fns     funcFlag

	// named is set once a struct/union/enum/typedef specifier resolves to a
	// concrete type, so at most one such specifier can appear.
	named *types.Type
}

func (p *Parser) tryParseTypeQualifier(q *qualFlag) bool {
	switch {
	case p.Lex.Accept("const"):
		*q |= qualConst
		return true
	case p.Lex.Accept("volatile"):
		*q |= qualVolatile
		return true
	case p.Lex.Accept("restrict"):
		*q |= qualRestrict
		return true
	}
	return false
}

func (p *Parser) parseTypeQualifiers() qualFlag {
	var q qualFlag
	for p.tryParseTypeQualifier(&q) {
	}
	return q
}

// isTypedefName reports whether tok is an identifier bound to a typedef in
// the current scope — the one piece of semantic lookahead C's grammar needs
// to stay LL(1) (scope_find_type's TAG_TYPEDEF lookup at declaration-start).
func (p *Parser) isTypedefName(tok token.Token) bool {
	if tok.Kind != token.Alphanumeric {
		return false
	}
	return p.Scopes.Current.FindType(scope.NamespaceTypedef, identText(tok), true) != nil
}

// startsDeclarationSpecifier reports whether tok can begin a declaration's
// specifier sequence: a storage/type/qualifier/function keyword, a
// struct/union/enum keyword, or a typedef name.
func (p *Parser) startsDeclarationSpecifier(tok token.Token) bool {
	if tok.Kind != token.Alphanumeric {
		return false
	}
	switch tok.Text() {
	case "typedef", "extern", "static", "_Thread_local", "auto", "register",
		"void", "_Bool", "char", "short", "int", "long", "signed", "unsigned",
		"float", "double",
		"const", "volatile", "restrict",
		"inline", "_Noreturn",
		"struct", "union", "enum":
		return true
	}
	return p.isTypedefName(tok)
}

// tryParseDeclarationSpecifiers consumes as many specifier keywords/struct-
// union-enum definitions/typedef names as it can, matching
// try_parse_declaration_specifiers; it reports whether anything was
// consumed.
func (p *Parser) tryParseDeclarationSpecifiers(s *specifiers) bool {
	found := false
	for p.cur().Kind == token.Alphanumeric {
		tok := p.cur()
		switch tok.Text() {
		case "typedef":
			p.Lex.Consume()
			s.storage |= storageTypedef
			found = true
			continue
		case "extern":
			p.Lex.Consume()
			s.storage |= storageExtern
			found = true
			continue
		case "static":
			p.Lex.Consume()
			s.storage |= storageStatic
			found = true
			continue
		case "_Thread_local":
			p.Lex.Consume()
			s.storage |= storageThreadLocal
			found = true
			continue
		case "auto":
			p.Lex.Consume()
			s.storage |= storageAuto
			found = true
			continue
		case "register":
			p.Lex.Consume()
			s.storage |= storageRegister
			found = true
			continue

		case "void":
			p.Lex.Consume()
			s.types |= typeVoid
			found = true
			continue
		case "_Bool":
			p.Lex.Consume()
			s.types |= typeBool
			found = true
			continue
		case "char":
			p.Lex.Consume()
			s.types |= typeChar
			found = true
			continue
		case "short":
			p.Lex.Consume()
			s.types |= typeShort
			found = true
			continue
		case "int":
			p.Lex.Consume()
			s.types |= typeInt
			found = true
			continue
		case "long":
			p.Lex.Consume()
			if s.types&typeLongLong != 0 {
				p.fatalf("`long long long` is invalid.")
			}
			if s.types&typeLong != 0 {
				s.types &^= typeLong
				s.types |= typeLongLong
			} else {
				s.types |= typeLong
			}
			found = true
			continue
		case "signed":
			p.Lex.Consume()
			s.types |= typeSigned
			found = true
			continue
		case "unsigned":
			p.Lex.Consume()
			s.types |= typeUnsigned
			found = true
			continue
		case "float":
			p.Lex.Consume()
			s.types |= typeFloat
			found = true
			continue
		case "double":
			p.Lex.Consume()
			s.types |= typeDouble
			found = true
			continue

		case "const", "volatile", "restrict":
			p.tryParseTypeQualifier(&s.quals)
			found = true
			continue

		case "inline":
			p.Lex.Consume()
			s.fns |= funcInline
			found = true
			continue
		case "_Noreturn":
			p.Lex.Consume()
			s.fns |= funcNoreturn
			found = true
			continue

		case "__attribute__":
			// GNU attribute lists are consumed without effect: a bootstrap
			// compiler fed real C headers fares better ignoring them than
			// refusing them.
			p.Lex.Consume()
			p.skipAttributeList()
			found = true
			continue

		case "struct", "union":
			if s.types != 0 {
				p.fatalf("Redundant type specifier before `%s`.", tok.Text())
			}
			found = true
			s.types |= typeRecord
			s.named = p.parseRecordSpecifier(s)
			continue

		case "enum":
			if s.types != 0 {
				p.fatalf("Redundant type specifier before `enum`.")
			}
			found = true
			s.types |= typeEnum
			s.named = p.parseEnumSpecifier(s)
			continue
		}

		if s.types == 0 {
			if typ := p.Scopes.Current.FindType(scope.NamespaceTypedef, identText(tok), true); typ != nil {
				if s.named != nil {
					p.fatalf("Redundant type name specifier.")
				}
				p.Lex.Consume()
				s.types |= typeTypedefName
				s.named = typ
				found = true
				continue
			}
		}

		break
	}
	return found
}

// specifiersConvertBase maps a type-specifier bitmask to its base type
// (specifiers_convert), warning (not failing) on the C99 implicit-int case.
func (p *Parser) specifiersConvertBase(s *specifiers, where diag.Located) types.Base {
	ts := s.types

	if ts == 0 {
		p.D.Warn(diag.WarnImplicitInt, where, "No type specifiers for this declaration. (Implicit int was removed in C99.)")
		return types.SignedInt
	}

	if ts&typeInt != 0 && (ts&(typeShort|typeLong|typeLongLong) != 0) {
		ts &^= typeInt
	}
	if ts&typeLong != 0 {
		ts &^= typeLong
		ts |= typeInt
	}

	switch {
	case ts == typeVoid:
		return types.Void
	case ts == typeBool:
		return types.Bool
	case ts == (typeUnsigned | typeChar):
		return types.UnsignedChar
	case ts == (typeUnsigned | typeShort):
		return types.UnsignedShort
	case ts == (typeUnsigned|typeInt) || ts == typeUnsigned:
		return types.UnsignedInt
	case ts == (typeUnsigned | typeLongLong):
		return types.UnsignedLongLong
	case ts == typeChar:
		return types.Char
	case ts == (typeSigned | typeChar):
		return types.SignedChar
	case ts == typeShort || ts == (typeSigned|typeShort):
		return types.SignedShort
	case ts == typeInt || ts == typeSigned || ts == (typeSigned|typeInt):
		return types.SignedInt
	case ts == typeLongLong || ts == (typeSigned|typeLongLong):
		return types.SignedLongLong
	case ts == typeFloat:
		return types.Float
	case ts == typeDouble:
		return types.Double
	case ts == (typeLong | typeDouble):
		return types.LongDouble
	}

	p.fatalf("Unsupported combination of type specifiers.")
	panic("unreachable")
}

// specifiersMakeType resolves a specifier sequence into the base type its
// declarators will build on (specifiers_make_type).
func (p *Parser) specifiersMakeType(s *specifiers, where diag.Located) *types.Type {
	if s.named != nil {
		switch s.types {
		case typeTypedefName, typeEnum, typeRecord:
			return s.named
		}
		p.fatalf("Unsupported combination of type specifiers.")
	}
	base := p.specifiersConvertBase(s, where)
	return types.NewBase(base)
}

// parseRecordSpecifier parses a struct/union specifier, which may be a
// forward declaration, a reference to an already-declared tag, or a full
// definition with a member list (parse_record).
//
// A definition, or a true forward declaration (the tag is the whole
// declaration: `struct foo;` with no qualifiers or storage specifiers),
// declares a tag in the current scope if none exists there, so the lookup
// checks only the current scope; any other reference searches outward.
func (p *Parser) parseRecordSpecifier(s *specifiers) *types.Type {
	isStruct := p.cur().Is("struct")
	p.Lex.Consume()

	var nameTok *token.Token
	if p.cur().Kind == token.Alphanumeric {
		t := p.Lex.Take()
		nameTok = &t
	} else if !p.cur().Is("{") {
		kw := "union"
		if isStruct {
			kw = "struct"
		}
		p.fatalf("Expected a name or `{` after `%s`.", kw)
	}

	isDefinition := p.cur().Is("{")
	isForwardDeclaration := p.cur().Is(";") && s.quals == 0 && s.storage == 0
	findRecursive := !isDefinition && !isForwardDeclaration

	var name string
	if nameTok != nil {
		name = identText(*nameTok)
	}

	var typ *types.Type
	if name != "" {
		typ = p.Scopes.Current.FindType(scope.NamespaceTag, name, findRecursive)
	}
	if typ == nil {
		rec := types.NewRecordType(name, isStruct)
		typ = types.TypeFromRecord(rec)
		if name != "" {
			p.Scopes.Current.AddType(scope.NamespaceTag, name, typ, func(previous *types.Type) {
				p.fatalf("`%s` was already declared as a different kind of tag.", name)
			})
		} else {
			p.D.Warn(diag.WarnAnonymousTags, p.cur(), "This struct/union has no tag.")
		}
	}

	if isDefinition {
		rec := typ.RecordType
		if rec.IsDefined {
			p.fatalf("Duplicate definition of struct/union `%s`.", name)
		}
		p.Lex.Consume() // '{'
		for !p.Lex.Accept("}") {
			p.parseRecordMember(rec)
		}
		if len(rec.Members) == 0 {
			p.D.Warn(diag.WarnAnonymousTags, p.cur(), "An empty struct/union is a GNU extension.")
		}
		rec.Define()
	}

	return typ
}

// parseRecordMember parses one `;`-terminated member declaration of a
// struct/union body, appending each comma-separated declarator
// (parse_record_member).
func (p *Parser) parseRecordMember(rec *types.RecordType) {
	var s specifiers
	if !p.tryParseDeclarationSpecifiers(&s) {
		p.fatalf("Expected a declaration.")
	}
	if s.storage != 0 {
		p.fatalf("Storage specifiers are not allowed in a `struct` or `union` definition.")
	}
	if s.fns != 0 {
		p.fatalf("Function specifiers are not allowed in a `struct` or `union` definition.")
	}
	base := p.specifiersMakeType(&s, p.cur())
	base = types.Qualify(base, s.quals&qualConst != 0, s.quals&qualVolatile != 0)

	for {
		if p.Lex.Accept(":") {
			_, width := p.ParseConstantExpression()
			rec.AppendBitField(nil, "", base, int(width))
			if p.Lex.Accept(",") {
				continue
			}
			p.expect(";")
			return
		}

		n := p.parseDeclaratorNode(true)
		if n == nil {
			p.fatalf("Expected a declarator for this `struct` or `union` member declaration.")
		}
		typ, nameTok := evalDeclNode(n, base)

		if p.Lex.Accept(":") {
			_, width := p.ParseConstantExpression()
			var name string
			if nameTok != nil {
				name = identText(*nameTok)
			}
			rec.AppendBitField(nameTok, name, typ, int(width))
		} else {
			if nameTok == nil {
				p.fatalf("Expected a member name in this `struct` or `union` member declaration.")
			}
			rec.AppendMember(nameTok, identText(*nameTok), typ)
		}

		if p.Lex.Accept(",") {
			continue
		}
		p.expect(";")
		return
	}
}

// parseEnumSpecifier parses an enum specifier, forward declaration or full
// definition with a value list, with the same current-scope-only lookup rule
// for definitions and forward declarations as parseRecordSpecifier.
func (p *Parser) parseEnumSpecifier(s *specifiers) *types.Type {
	p.Lex.Consume() // 'enum'

	var nameTok *token.Token
	if p.cur().Kind == token.Alphanumeric {
		t := p.Lex.Take()
		nameTok = &t
	} else if !p.cur().Is("{") {
		p.fatalf("Expected a name or `{` after `enum`.")
	}

	isDefinition := p.cur().Is("{")
	isForwardDeclaration := p.cur().Is(";") && s.quals == 0 && s.storage == 0
	findRecursive := !isDefinition && !isForwardDeclaration

	var name string
	if nameTok != nil {
		name = identText(*nameTok)
	}

	var typ *types.Type
	if name != "" {
		typ = p.Scopes.Current.FindType(scope.NamespaceTag, name, findRecursive)
	}
	if typ == nil {
		e := types.NewEnumType(name)
		typ = types.TypeFromEnum(e)
		if name != "" {
			p.Scopes.Current.AddType(scope.NamespaceTag, name, typ, func(previous *types.Type) {
				p.fatalf("`%s` was already declared as a different kind of tag.", name)
			})
		} else {
			p.D.Warn(diag.WarnAnonymousTags, p.cur(), "This enum has no tag.")
		}
	}

	if isDefinition {
		e := typ.EnumType
		if e.IsDefined {
			p.fatalf("Duplicate definition of enum `%s`.", name)
		}
		p.Lex.Consume() // '{'
		for {
			if p.cur().Kind != token.Alphanumeric {
				p.fatalf("Expected an enumeration constant name.")
			}
			memberTok := p.Lex.Take()
			value := e.NextValue()
			if p.Lex.Accept("=") {
				_, v := p.ParseConstantExpression()
				value = v
			}
			constName := identText(memberTok)
			c := e.Append(&memberTok, constName, value)
			sym := scope.NewSymbol(scope.KindConstant, typ, &memberTok, constName, constName)
			sym.ConstValue = c.Value
			p.Scopes.Current.AddSymbol(sym)

			if p.Lex.Accept(",") {
				if p.cur().Is("}") {
					break
				}
				continue
			}
			break
		}
		p.expect("}")
		e.Define()
	}

	return typ
}

// declNode is a parsed-but-not-yet-resolved declarator: a chain of pointer
// qualifiers and trailing array/function suffixes around either a name or a
// parenthesized inner declarator. Resolving it against a base type (via
// evalDeclNode) after the whole declarator has been parsed is what lets a
// parenthesized group reorder precedence correctly (e.g. `int (*p)[5]` is a
// pointer to an array, while `int *a[5]` is an array of pointers) without
// needing to backtrack over already-consumed tokens.
type declNode struct {
	pointers []qualFlag
	isGroup  bool
	inner    *declNode
	name     *token.Token
	suffixes []declSuffix
}

type suffixKind int

const (
	suffixArray suffixKind = iota
	suffixFunction
)

type declSuffix struct {
	kind     suffixKind
	hasCount bool
	count    uint32
	args     []*types.Type
	names    []*token.Token
	variadic bool
	proto    types.ProtoScope
}

// parseDeclaratorNode parses one declarator's syntax (pointers, an optional
// name or parenthesized group, and trailing array/function suffixes),
// returning nil if nameRequired is true and no declarator is present at all
// (try_parse_declarator/try_parse_direct_declarator).
func (p *Parser) parseDeclaratorNode(nameRequired bool) *declNode {
	n := &declNode{}
	for p.Lex.Accept("*") {
		n.pointers = append(n.pointers, p.parseTypeQualifiers())
	}

	if p.cur().Is("(") && p.looksLikeGroupedDeclarator() {
		p.Lex.Consume()
		n.isGroup = true
		n.inner = p.parseDeclaratorNode(nameRequired)
		p.expect(")")
	} else if p.cur().Kind == token.Alphanumeric {
		t := p.Lex.Take()
		n.name = &t
	} else if nameRequired && len(n.pointers) == 0 {
		return nil
	} else if nameRequired {
		p.fatalf("Expected a declarator name.")
	}

	for {
		if p.Lex.Accept("[") {
			var s declSuffix
			s.kind = suffixArray
			if !p.cur().Is("]") {
				s.hasCount = true
				_, v := p.ParseConstantExpression()
				s.count = uint32(v)
			}
			p.expect("]")
			n.suffixes = append(n.suffixes, s)
			continue
		}
		if p.cur().Is("(") {
			p.Lex.Consume()
			args, names, variadic, proto := p.parseParameterList()
			n.suffixes = append(n.suffixes, declSuffix{kind: suffixFunction, args: args, names: names, variadic: variadic, proto: proto})
			continue
		}
		break
	}

	return n
}

// looksLikeGroupedDeclarator decides, from a single token of lookahead past
// an already-seen `(`, whether it opens a parenthesized declarator (grouping
// parens around `*`/an identifier/another `(`) rather than a function's
// parameter list (a declaration-specifier keyword, a typedef name, or an
// immediate `)` for an empty/K&R parameter list).
func (p *Parser) looksLikeGroupedDeclarator() bool {
	opening := p.cur()
	p.Lex.Consume()
	next := p.cur()
	isGroup := next.Is("*") || next.Is("(") ||
		(next.Kind == token.Alphanumeric && !p.startsDeclarationSpecifier(next))
	p.Lex.Push(opening)
	return isGroup
}

// parseParameterList parses a function declarator's parenthesized parameter
// list, the opening `(` already consumed (parse_function_arguments).
func (p *Parser) parseParameterList() ([]*types.Type, []*token.Token, bool, types.ProtoScope) {
	var args []*types.Type
	var names []*token.Token
	variadic := false

	p.Scopes.Push()
	proto := p.Scopes.Take()
	p.Scopes.Apply(proto)

	for !p.cur().Is(")") {
		if len(args) > 0 {
			p.expect(",")
		}
		if p.Lex.Accept("...") {
			if len(args) == 0 {
				p.fatalf("At least one non-variadic argument is required before `...`.")
			}
			variadic = true
			break
		}

		var s specifiers
		if !p.tryParseDeclarationSpecifiers(&s) {
			p.fatalf("Expected a declaration specifier (a type) for this function parameter.")
		}
		if s.storage != 0 || s.fns != 0 {
			p.fatalf("Storage and function specifiers are not allowed on function parameters.")
		}
		base := p.specifiersMakeType(&s, p.cur())
		base = types.Qualify(base, s.quals&qualConst != 0, s.quals&qualVolatile != 0)

		n := p.parseDeclaratorNode(false)
		var typ *types.Type
		var nameTok *token.Token
		if n == nil {
			typ = base
		} else {
			typ, nameTok = evalDeclNode(n, base)
		}

		if len(args) == 0 && typ.MatchesBase(types.Void) && nameTok == nil && p.cur().Is(")") {
			break
		}

		if typ.IsArray() {
			typ = types.NewPointer(typ.Ref, typ.IsConst, typ.IsVolatile, false)
		}
		args = append(args, typ)
		names = append(names, nameTok)
	}
	p.expect(")")
	p.Scopes.Pop()

	return args, names, variadic, proto
}

// evalDeclNode resolves a parsed declarator chain against base, applying
// pointers then suffixes at each level before recursing into a
// parenthesized group, which is what gives a parenthesized declarator its
// higher binding precedence.
func evalDeclNode(n *declNode, base *types.Type) (*types.Type, *token.Token) {
	typ := base
	for _, q := range n.pointers {
		typ = types.NewPointer(typ, q&qualConst != 0, q&qualVolatile != 0, q&qualRestrict != 0)
	}
	for _, s := range n.suffixes {
		switch s.kind {
		case suffixArray:
			if s.hasCount {
				typ = types.NewArray(typ, s.count)
			} else {
				typ = types.NewIndeterminateArray(typ)
			}
		case suffixFunction:
			typ = types.NewFunction(typ, s.args, s.names, s.variadic, s.proto)
		}
	}
	if n.isGroup {
		return evalDeclNode(n.inner, typ)
	}
	return typ, n.name
}

// tryParseType parses an unnamed type-name (a specifier sequence plus an
// abstract declarator), used by casts, sizeof and __builtin_va_arg
// (try_parse_type).
func (p *Parser) tryParseType() (*types.Type, bool) {
	var s specifiers
	if !p.tryParseDeclarationSpecifiers(&s) {
		return nil, false
	}
	if s.storage != 0 {
		p.fatalf("Storage specifiers are not allowed on this type declaration.")
	}
	if s.fns != 0 {
		p.fatalf("Function specifiers are not allowed on this type declaration.")
	}
	base := p.specifiersMakeType(&s, p.cur())
	base = types.Qualify(base, s.quals&qualConst != 0, s.quals&qualVolatile != 0)

	n := p.parseDeclaratorNode(false)
	if n == nil {
		return base, true
	}
	typ, name := evalDeclNode(n, base)
	if name != nil {
		p.fatalf("Expected an unnamed type declarator.")
	}
	return typ, true
}

func (p *Parser) tryParseTypeName() (*types.Type, bool) { return p.tryParseType() }

// tryParseParenthesizedTypeName parses `( type-name )`, the opening `(` not
// yet consumed; used by cast and sizeof parsing which must distinguish a
// cast from a parenthesized expression with a single token of lookahead.
func (p *Parser) tryParseParenthesizedTypeName() (*types.Type, bool) {
	opening := p.cur()
	p.Lex.Consume()
	typ, ok := p.tryParseType()
	if !ok {
		p.Lex.Push(opening)
		return nil, false
	}
	p.expect(")")
	return typ, true
}

// skipAttributeList consumes the `(( ... ))` that follows `__attribute__`,
// balancing parentheses without acting on any of it.
func (p *Parser) skipAttributeList() {
	p.expect("(")
	depth := 1
	for depth > 0 {
		tok := p.cur()
		if tok.Kind == token.End {
			p.fatalf("Unterminated `__attribute__` list.")
		}
		if tok.Is("(") {
			depth++
		} else if tok.Is(")") {
			depth--
		}
		p.Lex.Consume()
	}
}

// parseAsmName parses an optional `asm("name")`/`__asm__("name")` suffix on
// a declarator, returning the declared name itself when no asm name is
// given (parse_asm_name). Attribute lists in the same position are skipped.
func (p *Parser) parseAsmName(inFunctionBody bool, isExtern bool, name string) string {
	for p.cur().Is("__attribute__") {
		p.Lex.Consume()
		p.skipAttributeList()
	}
	if !p.cur().Is("asm") && !p.cur().Is("__asm__") {
		return name
	}
	if p.cur().Is("asm") {
		p.D.Warn(diag.WarnExtraKeywords, p.cur(), "`asm` is a GNU extension. (Use `__asm__` or pass `-fasm` or `-fgnu-extensions`.)")
	}
	if inFunctionBody && !isExtern {
		p.fatalf("Cannot provide an asm name for a local symbol.")
	}
	p.Lex.Consume()
	p.expect("(")
	if p.cur().Kind != token.String {
		p.fatalf("Expected a string in this asm name declaration.")
	}
	asmName := p.cur().Text()
	p.Lex.Consume()
	for p.cur().Kind == token.String {
		asmName += p.Lex.Take().Text()
	}
	p.expect(")")
	return asmName
}

// parseFunctionDefinition parses a function body and returns the completed
// definition (parse_function_definition); the caller has already added sym
// to the enclosing scope and positioned the lexer at `{`.
func (p *Parser) parseFunctionDefinition(typ *types.Type, nameTok token.Token, sym *scope.Symbol) *ast.Node {
	root := ast.NewWithToken(ast.FunctionDef, &nameTok)
	root.Type = typ.Ref
	root.Symbol = sym

	prevFunc := p.currentFunctionName
	p.currentFunctionName = identText(nameTok)
	defer func() { p.currentFunctionName = prevFunc }()

	prevFuncType := p.currentFunctionType
	p.currentFunctionType = typ.Ref
	defer func() { p.currentFunctionType = prevFuncType }()

	if proto, ok := typ.Proto.(*scope.Scope); ok && proto != nil {
		p.Scopes.Apply(proto)
	} else {
		p.Scopes.Push()
	}

	for i, argType := range typ.Args {
		var paramTok *token.Token
		if i < len(typ.Names) {
			paramTok = typ.Names[i]
		}
		param := ast.New(ast.Parameter)
		param.Tok = paramTok
		param.Type = argType
		ast.Append(root, param)

		if paramTok != nil {
			psym := scope.NewSymbol(scope.KindVariable, argType, paramTok, identText(*paramTok), "")
			param.Symbol = psym
			p.Scopes.Current.AddSymbol(psym)
		}
	}

	body := p.parseCompoundStatement()
	ast.Append(root, body)
	p.Scopes.Pop()

	return root
}

// parseFunctionDeclaration handles a declarator whose type is a function: it
// always registers the function symbol, and if a body follows, parses the
// definition too (parse_function_declaration).
func (p *Parser) parseFunctionDeclaration(s *specifiers, typ *types.Type, nameTok token.Token, asmName string) *Global {
	name := identText(nameTok)
	sym := scope.NewSymbol(scope.KindFunction, typ, &nameTok, name, asmName)
	sym.Linkage = scope.LinkageExternal
	if s.storage&storageStatic != 0 {
		sym.Linkage = scope.LinkageInternal
	}
	sym.IsDefined = p.cur().Is("{")
	p.Scopes.Current.AddSymbol(sym)

	if !p.cur().Is("{") {
		p.expect(";")
		return &Global{Kind: GlobalNone}
	}
	if p.Scopes.Current != p.Scopes.Global {
		p.fatalf("Function definitions can only appear at file scope.")
	}
	fn := p.parseFunctionDefinition(typ, nameTok, sym)
	return &Global{Kind: GlobalFunction, Function: fn}
}

// parseInitializer parses the `=` right-hand side of a variable declaration
// (parse_initializer's entry point; the braced-list and string/array cases
// live in init.go).
func (p *Parser) parseInitializer(typ *types.Type) *ast.Node {
	if p.cur().Is("{") {
		return p.parseInitializerList(typ)
	}
	node := p.parseAssignmentExpression()
	// A char array initialized by a string literal and a record initialized
	// by a value of its own type are matches, not conversions; everything
	// else must pass the ordinary implicit-cast rules.
	if typ.IsArray() && node.Kind == ast.String {
		if !types.EqualUnqual(typ.Ref, node.Type.Ref) {
			p.D.Fatalf(node.Tok, "Cannot initialize this array from a string literal.")
		}
		return node
	}
	if typ.MatchesBase(types.Record) && types.Equal(node.Type, typ) {
		return node
	}
	return ast.CastTo(p.D, node, typ, nil)
}

// parseVariableDeclaration handles a declarator whose type is not a
// function: it registers (or merges with a previous) symbol, parses an
// optional initializer, and for a local variable appends a Variable node to
// parent (parse_variable_declaration). parent is nil at file scope.
func (p *Parser) parseVariableDeclaration(parent *ast.Node, s *specifiers, typ *types.Type, nameTok token.Token, asmName string) *Global {
	isExtern := s.storage == storageExtern
	isStatic := s.storage == storageStatic
	if !isExtern && !isStatic && s.storage != 0 {
		p.fatalf("Invalid or unsupported storage specifiers for declaration.")
	}
	if parent != nil && isExtern {
		p.fatalf("Cannot declare a local variable with `extern` storage.")
	}

	var initializer *ast.Node
	if p.Lex.Accept("=") {
		if isExtern {
			p.fatalf("Cannot initialize a variable with `extern` storage.")
		}
		initializer = p.parseInitializer(typ)
		typ = resolveIndeterminateArray(typ, initializer)
	}

	isTentative := parent == nil && initializer == nil && s.storage == 0

	name := identText(nameTok)
	previous := p.Scopes.Current.FindSymbol(name, false)
	if previous != nil {
		if !types.Equal(previous.Type, typ) {
			p.fatalf("Variable `%s` re-declared with a different type.", name)
		}
		// The new declaration replaces the previous one if the previous one
		// is extern and this one is not, or the previous one is tentative and
		// this one is neither tentative nor extern. Anything else (including
		// a duplicate definition) leaves the previous declaration in place.
		replaces := (previous.IsExtern && !isExtern) ||
			(previous.IsTentative && !isTentative && !isExtern)
		if !replaces {
			return &Global{Kind: GlobalNone}
		}
		p.Scopes.Current.RemoveSymbol(name)
	}

	sym := scope.NewSymbol(scope.KindVariable, typ, &nameTok, name, asmName)
	sym.IsTentative = isTentative
	sym.IsExtern = isExtern
	if isExtern {
		sym.Linkage = scope.LinkageExternal
	} else if isStatic {
		sym.Linkage = scope.LinkageInternal
	} else if parent == nil {
		sym.Linkage = scope.LinkageExternal
	}
	sym.IsDefined = initializer != nil || (parent == nil && !isExtern && !isTentative)
	p.Scopes.Current.AddSymbol(sym)

	if parent != nil {
		if s.storage == storageStatic {
			sym.Linkage = scope.LinkageInternal
			sym.AsmName = p.mangleStaticLocalName(name)
		} else if s.storage != 0 {
			p.fatalf("Storage specifiers are not allowed on this local variable.")
		}

		node := ast.NewWithToken(ast.Variable, &nameTok)
		node.Type = types.NewBase(types.Void)
		node.Symbol = sym
		ast.Append(parent, node)
		if initializer != nil {
			ast.Append(node, initializer)
		}
		if s.storage == storageStatic {
			return &Global{Kind: GlobalVariable, Symbol: sym, Initializer: initializer}
		}
		return &Global{Kind: GlobalNone}
	}

	if !isExtern && !isTentative {
		return &Global{Kind: GlobalVariable, Symbol: sym, Initializer: initializer}
	}
	return &Global{Kind: GlobalNone}
}

func (p *Parser) mangleStaticLocalName(name string) string {
	return "_S_" + p.currentFunctionName + "_" + name
}

// parseDeclarationOrDefinition parses one `;`-terminated declaration (or a
// single function definition) at file scope or inside a block
// (try_parse_declaration, generalized to return a *Global for file-scope
// callers; block-scope callers get GlobalNone back and read parent's
// appended children instead).
func (p *Parser) parseDeclarationOrDefinition(parent *ast.Node, atFileScope bool) *Global {
	var s specifiers
	if !p.tryParseDeclarationSpecifiers(&s) {
		if atFileScope {
			p.fatalf("Expected a declaration at file scope.")
		}
		return &Global{Kind: GlobalNone}
	}
	base := p.specifiersMakeType(&s, p.cur())
	base = types.Qualify(base, s.quals&qualConst != 0, s.quals&qualVolatile != 0)

	for {
		n := p.parseDeclaratorNode(true)
		var typ *types.Type
		var nameTok *token.Token
		if n != nil {
			typ, nameTok = evalDeclNode(n, base)
		}

		if n == nil || nameTok == nil {
			if s.types == typeRecord || s.types == typeEnum {
				p.expect(";")
				return &Global{Kind: GlobalNone}
			}
			p.fatalf("Expected a declarator for this declaration.")
		}

		if s.storage&storageTypedef != 0 {
			if s.storage != storageTypedef {
				p.fatalf("`typedef` cannot be combined with other storage specifiers.")
			}
			p.Scopes.Current.AddType(scope.NamespaceTypedef, identText(*nameTok), typ, func(previous *types.Type) {
				p.fatalf("`%s` redeclared as a different type.", identText(*nameTok))
			})
			if p.cur().Is("=") || p.cur().Is("{") {
				p.fatalf("A definition cannot be provided for a `typedef` declaration.")
			}
			goto declaratorDone
		}

		{
			asmName := p.parseAsmName(parent != nil, s.storage&storageExtern != 0, identText(*nameTok))
			if typ.IsFunction() {
				global := p.parseFunctionDeclaration(&s, typ, *nameTok, asmName)
				return global
			}
			global := p.parseVariableDeclaration(parent, &s, typ, *nameTok, asmName)
			if p.Lex.Accept(",") {
				// Only the final declarator's result can be returned; storage
				// definitions produced by the ones before it are queued for
				// the caller to drain (`int a = 1, b = 2;` emits both).
				if global.Kind != GlobalNone {
					p.pendingGlobals = append(p.pendingGlobals, global)
				}
				continue
			}
			p.expect(";")
			return global
		}

	declaratorDone:
		if p.Lex.Accept(",") {
			continue
		}
		p.expect(";")
		return &Global{Kind: GlobalNone}
	}
}
