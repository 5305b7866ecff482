package ast

import (
	"os"
	"testing"

	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/strtab"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

func punct(text string) token.Token {
	tab := strtab.New()
	return token.Token{Kind: token.Punctuation, Value: tab.Intern(text)}
}

func TestAppendAndDetach(t *testing.T) {
	parent := New(Sequence)
	a := New(Number)
	b := New(Number)
	Append(parent, a)
	Append(parent, b)

	if ChildCount(parent) != 2 {
		t.Fatalf("expected 2 children, got %d", ChildCount(parent))
	}
	kids := Children(parent)
	if kids[0] != a || kids[1] != b {
		t.Fatal("children must be in append order")
	}

	Detach(a)
	if ChildCount(parent) != 1 {
		t.Fatalf("expected 1 child after detach, got %d", ChildCount(parent))
	}
	if parent.FirstChild != b {
		t.Fatal("expected b to become the first child after a is detached")
	}
}

func TestKindOfBinaryOperator(t *testing.T) {
	cases := map[string]Kind{
		"+": Add, "-": Sub, "*": Mul, "/": Div, "%": Mod,
		"&&": LogicalAnd, "||": LogicalOr, "==": Equal, "!=": NotEqual,
		"<": Less, "<=": LessOrEqual, ">": Greater, ">=": GreaterOrEqual,
		"<<": Shl, ">>": Shr,
	}
	for text, want := range cases {
		if got := KindOfBinaryOperator(punct(text)); got != want {
			t.Errorf("KindOfBinaryOperator(%q) = %v, want %v", text, got, want)
		}
	}
	if KindOfBinaryOperator(punct("=")) != Invalid {
		t.Error("= must not be a binary operator")
	}
}

func TestKindOfAssignmentOperator(t *testing.T) {
	if got := KindOfAssignmentOperator(punct("+=")); got != AddAssign {
		t.Errorf("+= = %v, want AddAssign", got)
	}
	if got := KindOfAssignmentOperator(punct("<<=")); got != ShlAssign {
		t.Errorf("<<= = %v, want ShlAssign", got)
	}
	if KindOfAssignmentOperator(punct("==")) != Invalid {
		t.Error("== must not be an assignment operator")
	}
}

func TestKindOfUnaryOperator(t *testing.T) {
	if got := KindOfUnaryOperator(punct("++")); got != PreInc {
		t.Errorf("++ = %v, want PreInc", got)
	}
	if got := KindOfUnaryOperator(punct("-")); got != UnaryMinus {
		t.Errorf("- = %v, want UnaryMinus", got)
	}
}

func TestPrecedenceOrdering(t *testing.T) {
	if PrecedenceOfBinaryOperator(LogicalOr) >= PrecedenceOfBinaryOperator(LogicalAnd) {
		t.Error("|| must bind looser than &&")
	}
	if PrecedenceOfBinaryOperator(Mul) <= PrecedenceOfBinaryOperator(Add) {
		t.Error("* must bind tighter than +")
	}
	if PrecedenceOfBinaryOperator(Assign) != -1 {
		t.Error("assignment is not a binary-expression precedence level")
	}
}

func TestIsLocation(t *testing.T) {
	for _, k := range []Kind{Dereference, ArraySubscript, MemberVal, MemberPtr, Access} {
		n := New(k)
		if !IsLocation(n) {
			t.Errorf("%v must be a location", k)
		}
	}
	if IsLocation(New(Number)) {
		t.Error("a number literal must not be a location")
	}
}

func TestDecayArray(t *testing.T) {
	n := New(Access)
	n.Type = types.NewArray(types.NewBase(types.SignedInt), 5)
	decayed := Decay(n)
	if decayed.Kind != AddressOf {
		t.Fatalf("expected array to decay into an AddressOf node, got %v", decayed.Kind)
	}
	if decayed.Type.Declarator != types.Pointer || !types.Equal(decayed.Type.Ref, types.NewBase(types.SignedInt)) {
		t.Error("decayed array type must be pointer-to-element")
	}
}

func TestDecayNonIndirectionUnchanged(t *testing.T) {
	n := New(Number)
	n.Type = types.NewBase(types.SignedInt)
	if Decay(n) != n {
		t.Error("a plain int must not decay")
	}
}

func newTestDiag(t *testing.T) *diag.Diagnostics {
	t.Helper()
	_, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	d := diag.New(w)
	d.Exit = func(code int) { panic(fatalExit{code}) }
	return d
}

type fatalExit struct{ code int }

func TestCastSkipsIdenticalImplicitCast(t *testing.T) {
	d := newTestDiag(t)
	n := New(Number)
	n.Type = types.NewBase(types.SignedInt)
	got := CastTo(d, n, types.NewBase(types.SignedInt), nil)
	if got != n {
		t.Error("casting to an identical type implicitly must be a no-op")
	}
}

func TestCastWrapsDifferentType(t *testing.T) {
	d := newTestDiag(t)
	n := New(Number)
	n.Type = types.NewBase(types.SignedInt)
	got := CastTo(d, n, types.NewBase(types.SignedChar), nil)
	if got.Kind != Cast {
		t.Fatalf("expected a Cast node, got %v", got.Kind)
	}
	if got.FirstChild != n {
		t.Error("expected the original node to become the cast's child")
	}
}

func TestCastRejectsStructToStruct(t *testing.T) {
	d := newTestDiag(t)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected casting a struct to be fatal")
		}
	}()
	r1 := types.NewRecordType("a", true)
	r1.Define()
	n := New(Number)
	n.Type = types.TypeFromRecord(r1)
	CastTo(d, n, types.NewBase(types.SignedInt), nil)
}

func TestPromoteCharToInt(t *testing.T) {
	d := newTestDiag(t)
	n := New(Number)
	n.Type = types.NewBase(types.Char)
	got := Promote(d, n)
	if got.Kind != Cast || !types.Equal(got.Type, types.NewBase(types.SignedInt)) {
		t.Fatal("expected char to promote to int")
	}
}

func TestPromoteLeavesIntUnchanged(t *testing.T) {
	d := newTestDiag(t)
	n := New(Number)
	n.Type = types.NewBase(types.SignedInt)
	if Promote(d, n) != n {
		t.Error("promoting an int must be a no-op")
	}
}

func TestIsNullLiteralZero(t *testing.T) {
	n := New(Number)
	n.Type = types.NewBase(types.SignedInt)
	n.Value = bignum.FromI64(0)
	if !IsNull(n) {
		t.Error("expected a literal 0 to be null")
	}
	n.Value = bignum.FromI64(1)
	if IsNull(n) {
		t.Error("expected a literal 1 to not be null")
	}
}

func TestIsNullThroughPointerCast(t *testing.T) {
	zero := New(Number)
	zero.Type = types.NewBase(types.SignedInt)
	zero.Value = bignum.FromI64(0)

	cast := New(Cast)
	cast.Type = types.NewPointer(types.NewBase(types.Void), false, false, false)
	Append(cast, zero)

	if !IsNull(cast) {
		t.Error("expected (void*)0 to be recognized as a null pointer constant")
	}
}
