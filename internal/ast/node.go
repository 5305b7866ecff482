// Package ast implements the abstract syntax tree of spec.md §4.6: a single
// tagged node kind with intrusive parent/sibling/child links, the
// binary/unary/assignment operator-to-kind tables the parser consults, and
// the small set of tree-rewriting helpers (decay, cast, promote) that keep
// every expression's type correct as it is built.
package ast

import (
	"fmt"

	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// Kind classifies a Node, matching spec.md §4.6's ~90-member enumeration.
type Kind int

const (
	Invalid Kind = iota
	Noop

	// definitions
	FunctionDef
	Parameter
	Variable
	InitializerList
	TypeNode

	// statements
	While
	Do
	For
	Switch
	Break
	Continue
	Return
	Goto

	// labels
	Label
	Case
	Default

	// assignment expressions: two children, location then expression
	Assign
	AddAssign
	SubAssign
	MulAssign
	DivAssign
	ModAssign
	AndAssign
	OrAssign
	XorAssign
	ShlAssign
	ShrAssign

	// other binary expressions: two children, left then right
	LogicalOr
	LogicalAnd
	BitOr
	BitXor
	BitAnd
	Equal
	NotEqual
	Less
	Greater
	LessOrEqual
	GreaterOrEqual
	Shl
	Shr
	Add
	Sub
	Mul
	Div
	Mod

	// unary expressions: one child
	Cast
	Sizeof
	Typeof
	TypeofUnqual
	UnaryPlus
	UnaryMinus
	BitNot
	LogicalNot
	Dereference
	AddressOf
	PreInc
	PreDec

	// postfix operators
	PostInc
	PostDec
	ArraySubscript
	MemberVal
	MemberPtr

	// other expressions
	If
	Sequence
	Character
	String
	Number
	Access
	Call
	Builtin
)

var kindNames = map[Kind]string{
	Invalid: "invalid", Noop: "noop", FunctionDef: "function", Parameter: "parameter",
	Variable: "variable", InitializerList: "initializer-list", TypeNode: "type",
	While: "while", Do: "do", For: "for", Switch: "switch", Break: "break",
	Continue: "continue", Return: "return", Goto: "goto", Label: "label",
	Case: "case", Default: "default", Assign: "assign", AddAssign: "add-assign",
	SubAssign: "sub-assign", MulAssign: "mul-assign", DivAssign: "div-assign",
	ModAssign: "mod-assign", AndAssign: "and-assign", OrAssign: "or-assign",
	XorAssign: "xor-assign", ShlAssign: "shl-assign", ShrAssign: "shr-assign",
	LogicalOr: "logical-or", LogicalAnd: "logical-and", BitOr: "bit-or",
	BitXor: "bit-xor", BitAnd: "bit-and", Equal: "equal", NotEqual: "not-equal",
	Less: "less", Greater: "greater", LessOrEqual: "less-or-equal",
	GreaterOrEqual: "greater-or-equal", Shl: "shl", Shr: "shr", Add: "add",
	Sub: "sub", Mul: "mul", Div: "div", Mod: "mod", Cast: "cast",
	Sizeof: "sizeof", Typeof: "typeof", TypeofUnqual: "typeof-unqual",
	UnaryPlus: "unary-plus", UnaryMinus: "unary-minus", BitNot: "bit-not",
	LogicalNot: "logical-not", Dereference: "dereference", AddressOf: "address-of",
	PreInc: "pre-inc", PreDec: "pre-dec", PostInc: "post-inc", PostDec: "post-dec",
	ArraySubscript: "array-subscript", MemberVal: "member-val", MemberPtr: "member-ptr",
	If: "if", Sequence: "sequence", Character: "character", String: "string",
	Number: "number", Access: "access", Call: "call", Builtin: "builtin",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is a node in the abstract syntax tree (spec.md §4.6). Children are
// kept in an intrusive doubly-linked sibling list, in parse order, except
// for NODE_INITIALIZER_LIST whose children are a sparse slice indexed by
// designator position, for O(1) indexing during initializer-list folding.
type Node struct {
	Parent                    *Node
	LeftSibling, RightSibling *Node
	FirstChild, LastChild     *Node

	Kind   Kind
	Tok    *token.Token // nullable
	EndTok *token.Token // nullable; e.g. a block's closing brace
	Type   *types.Type  // this expression's type, or void for statements

	Offset       int    // storage offset, assigned during code generation
	MemberOffset uint32 // resolved member offset for NODE_MEMBER_*

	StrValue    string        // label name, member/record name text, etc.
	Member      *token.Token  // member token for MemberVal/MemberPtr
	Symbol      *scope.Symbol // resolved symbol for Access
	Container   *Node         // enclosing loop/switch for Break/Continue
	Value       bignum.Wide   // numeric/character literal value
	StringLabel int           // generated assembly label index for String
	Builtin     scope.Builtin

	Initializers []*Node // sparse: index i may be nil meaning "not set"

	// Case-label chaining and range, used by Switch lowering.
	NextCase  *Node
	CaseStart bignum.Wide
	CaseEnd   bignum.Wide

	JumpLabel     int
	BreakLabel    int
	ContinueLabel int
}

// New creates a node without an associated token.
func New(kind Kind) *Node { return &Node{Kind: kind} }

// NewNoop creates a no-op node (spec.md: "always void, no children").
func NewNoop() *Node { return &Node{Kind: Noop, Type: types.NewBase(types.Void)} }

// NewWithToken creates a node carrying the given token as its source
// location.
func NewWithToken(kind Kind, tok *token.Token) *Node {
	return &Node{Kind: kind, Tok: tok}
}

// Append adds child as the last child of parent, wiring up the intrusive
// sibling/parent links (node_append).
func Append(parent, child *Node) {
	child.Parent = parent
	child.LeftSibling = parent.LastChild
	child.RightSibling = nil
	if parent.LastChild != nil {
		parent.LastChild.RightSibling = child
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child
}

// Detach removes node from its parent's child list (node_detach). node's
// own children are left untouched.
func Detach(node *Node) {
	if node.Parent == nil {
		return
	}
	if node.LeftSibling != nil {
		node.LeftSibling.RightSibling = node.RightSibling
	} else {
		node.Parent.FirstChild = node.RightSibling
	}
	if node.RightSibling != nil {
		node.RightSibling.LeftSibling = node.LeftSibling
	} else {
		node.Parent.LastChild = node.LeftSibling
	}
	node.Parent, node.LeftSibling, node.RightSibling = nil, nil, nil
}

// ChildCount returns the number of direct children of node.
func ChildCount(node *Node) int {
	n := 0
	for c := node.FirstChild; c != nil; c = c.RightSibling {
		n++
	}
	return n
}

// Children returns node's direct children in parse order, as a slice, for
// callers that want random access or to range without manual pointer
// walking.
func Children(node *Node) []*Node {
	out := make([]*Node, 0, ChildCount(node))
	for c := node.FirstChild; c != nil; c = c.RightSibling {
		out = append(out, c)
	}
	return out
}

// KindOfBinaryOperator maps a punctuation token to its binary-expression
// node kind, or Invalid if tok is not a binary operator (node_kind_of_binary_operator).
func KindOfBinaryOperator(tok token.Token) Kind {
	if tok.Kind != token.Punctuation {
		return Invalid
	}
	switch tok.Text() {
	case "||":
		return LogicalOr
	case "|":
		return BitOr
	case "&&":
		return LogicalAnd
	case "&":
		return BitAnd
	case "^":
		return BitXor
	case "==":
		return Equal
	case "!=":
		return NotEqual
	case "<":
		return Less
	case "<=":
		return LessOrEqual
	case "<<":
		return Shl
	case ">":
		return Greater
	case ">=":
		return GreaterOrEqual
	case ">>":
		return Shr
	case "+":
		return Add
	case "-":
		return Sub
	case "*":
		return Mul
	case "/":
		return Div
	case "%":
		return Mod
	}
	return Invalid
}

// KindOfAssignmentOperator maps a punctuation token to its assignment node
// kind, or Invalid if tok is not an assignment operator.
func KindOfAssignmentOperator(tok token.Token) Kind {
	if tok.Kind != token.Punctuation {
		return Invalid
	}
	switch tok.Text() {
	case "=":
		return Assign
	case "+=":
		return AddAssign
	case "-=":
		return SubAssign
	case "*=":
		return MulAssign
	case "/=":
		return DivAssign
	case "%=":
		return ModAssign
	case "&=":
		return AndAssign
	case "|=":
		return OrAssign
	case "^=":
		return XorAssign
	case "<<=":
		return ShlAssign
	case ">>=":
		return ShrAssign
	}
	return Invalid
}

// KindOfUnaryOperator maps a punctuation token to its prefix-unary node
// kind, or Invalid if tok is not a unary operator.
func KindOfUnaryOperator(tok token.Token) Kind {
	if tok.Kind != token.Punctuation {
		return Invalid
	}
	switch tok.Text() {
	case "+":
		return UnaryPlus
	case "++":
		return PreInc
	case "-":
		return UnaryMinus
	case "--":
		return PreDec
	case "!":
		return LogicalNot
	case "~":
		return BitNot
	case "*":
		return Dereference
	case "&":
		return AddressOf
	}
	return Invalid
}

// PrecedenceOfBinaryOperator returns kind's binding precedence (higher
// binds tighter), or -1 if kind is not a binary expression kind.
func PrecedenceOfBinaryOperator(kind Kind) int {
	switch kind {
	case LogicalOr:
		return 1
	case LogicalAnd:
		return 2
	case BitOr:
		return 3
	case BitXor:
		return 4
	case BitAnd:
		return 5
	case Equal, NotEqual:
		return 6
	case Less, Greater, LessOrEqual, GreaterOrEqual:
		return 7
	case Shl, Shr:
		return 8
	case Add, Sub:
		return 9
	case Mul, Div, Mod:
		return 10
	}
	return -1
}

// IsLocation reports whether node can appear on the left of an assignment
// (node_is_location).
func IsLocation(node *Node) bool {
	switch node.Kind {
	case Dereference, ArraySubscript, MemberVal, MemberPtr, Access:
		return true
	}
	return false
}

// Decay converts an array or function-typed node into an AddressOf node of
// pointer type, matching the array-to-pointer and function-to-pointer
// conversions; any other node is returned unchanged (node_decay).
func Decay(node *Node) *Node {
	t := node.Type
	if !t.IsDeclarator {
		return node
	}
	var newType *types.Type
	switch t.Declarator {
	case types.Pointer:
		return node
	case types.Function:
		newType = types.NewPointer(t, false, false, false)
	case types.Array, types.VLA, types.Indeterminate:
		newType = types.NewPointer(t.Ref, false, false, false)
	default:
		return node
	}
	parent := New(AddressOf)
	parent.Type = newType
	Append(parent, node)
	return parent
}

// locOf adapts a nullable *token.Token to diag.Located, returning a true
// nil interface (rather than a non-nil interface wrapping a nil pointer)
// when tok is nil — diag.Diagnostics.Fatalf treats a nil Located as "no
// location available".
func locOf(tok *token.Token) diag.Located {
	if tok == nil {
		return nil
	}
	return tok
}

// checkCastType reports a fatal diagnostic if typ can never appear on
// either side of a cast (node_check_cast_type).
func checkCastType(d *diag.Diagnostics, typ *types.Type, where diag.Located) {
	if typ.MatchesBase(types.Record) {
		d.Fatalf(where, "Cannot cast to or from a struct or union type.")
	}
	if typ.IsDeclarator && typ.Declarator == types.Function {
		d.Fatalf(where, "Cannot cast to or from a function type.")
	}
}

// checkCast validates an implicit or explicit cast between two types
// (node_check_cast), issuing a fatal diagnostic through d if the cast is
// never allowed by C's conversion rules.
func checkCast(d *diag.Diagnostics, to, from *types.Type, explicit bool, where diag.Located) {
	if to.MatchesBase(types.Void) {
		return
	}
	checkCastType(d, to, where)
	checkCastType(d, from, where)

	if to.IsDeclarator {
		if to.Declarator != types.Pointer {
			d.Fatalf(where, "Cannot cast to an array.")
		}
		if explicit {
			return
		}
	}
	if explicit {
		return
	}
	if from.IsDeclarator && to.MatchesBase(types.Bool) {
		return
	}
	if to.IsDeclarator != from.IsDeclarator {
		if to.MatchesBase(types.SignedInt) || to.MatchesBase(types.UnsignedInt) ||
			from.MatchesBase(types.SignedInt) || from.MatchesBase(types.UnsignedInt) {
			return
		}
		d.Fatalf(where, "Cannot implicitly cast between pointers and base types.")
	}
	if !to.IsDeclarator {
		return
	}
	if to.IsConst && !from.IsConst {
		d.Fatalf(where, "Cannot implicitly cast from a const pointer to a non-const pointer.")
	}
	if from.Ref.MatchesBase(types.Void) || to.Ref.MatchesBase(types.Void) {
		return
	}
	if !types.EqualUnqual(to.Ref, from.Ref) {
		d.Fatalf(where, "Cannot implicitly cast between pointers of different types.")
	}
}

// CastTo wraps node in a Cast node converting it to typ, or returns node
// unchanged if it is already exactly typ and the conversion is implicit
// (tok == nil). tok being non-nil marks the cast explicit, both relaxing
// the legality rules and keeping the cast visible in the tree for clarity
// (node_cast).
func CastTo(d *diag.Diagnostics, node *Node, typ *types.Type, tok *token.Token) *Node {
	if types.Equal(node.Type, typ) && tok == nil {
		return node
	}
	var where diag.Located
	if tok != nil {
		where = tok
	} else if node.Tok != nil {
		where = node.Tok
	}
	checkCast(d, typ, node.Type, tok != nil, where)

	cast := NewWithToken(Cast, tok)
	cast.Type = typ
	Append(cast, node)
	return cast
}

// CastBase is Cast to a freshly created base type (node_cast_base).
func CastBase(d *diag.Diagnostics, node *Node, base types.Base, tok *token.Token) *Node {
	return CastTo(d, node, types.NewBase(base), tok)
}

// Promote inserts a cast to int if node's type has lower rank than int,
// implementing C's integer promotions ahead of an arithmetic operator
// (node_promote). On this 32-bit-int/32-bit-long target it also folds long
// onto int and unsigned long onto unsigned int. node.Type must already be
// arithmetic or an enum.
func Promote(d *diag.Diagnostics, node *Node) *Node {
	t := node.Type
	if t.IsDeclarator {
		panic("ast: Promote called on a non-arithmetic type")
	}
	switch t.Base {
	case types.Bool, types.Char, types.SignedChar, types.SignedShort, types.SignedLong,
		types.UnsignedChar, types.UnsignedShort, types.Enum:
		return CastBase(d, node, types.SignedInt, nil)
	case types.UnsignedLong:
		return CastBase(d, node, types.UnsignedInt, nil)
	}
	return node
}

// MakePredicate ensures node can be used as the condition of an if/while/
// ternary/logical operator: it must not be a record or function value, and
// is down-cast to plain int so the code generator always branches on a
// register-width value (node_make_predicate).
func MakePredicate(d *diag.Diagnostics, node *Node) *Node {
	t := node.Type
	if !t.IsDeclarator && t.Base == types.Record {
		d.Fatalf(locOf(node.Tok), "Cannot use a struct or union value as a conditional expression.")
	}
	if t.IsDeclarator && t.Declarator == types.Function {
		d.Fatalf(locOf(node.Tok), "Cannot use a value of function type as a conditional expression.")
	}
	return CastTo(d, node, types.NewBase(types.SignedInt), nil)
}

// IsNull reports whether node is a literal zero, optionally wrapped in
// pointer casts (node_is_null) — used to recognize a null-pointer constant.
func IsNull(node *Node) bool {
	for node.Kind == Cast && node.Type.IsIndirection() {
		node = node.FirstChild
	}
	if node.Kind != Number {
		return false
	}
	return node.Value.U64() == 0
}
