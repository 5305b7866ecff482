package consteval

import (
	"os"
	"testing"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/types"
)

func newTestDiag(t *testing.T) *diag.Diagnostics {
	t.Helper()
	_, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	d := diag.New(w)
	d.Exit = func(code int) { panic(code) }
	return d
}

func number(typ *types.Type, v int64) *ast.Node {
	n := ast.New(ast.Number)
	n.Type = typ
	n.Value = bignum.FromI64(v)
	return n
}

func binary(kind ast.Kind, typ *types.Type, left, right *ast.Node) *ast.Node {
	n := ast.New(kind)
	n.Type = typ
	ast.Append(n, left)
	ast.Append(n, right)
	return n
}

func TestEvalArithmetic(t *testing.T) {
	d := newTestDiag(t)
	intT := types.NewBase(types.SignedInt)
	expr := binary(ast.Add, intT, number(intT, 3), number(intT, 4))
	if got := Eval(d, expr); got.I64() != 7 {
		t.Fatalf("3 + 4 = %d, want 7", got.I64())
	}
}

func TestEvalSignedDivision(t *testing.T) {
	d := newTestDiag(t)
	intT := types.NewBase(types.SignedInt)
	expr := binary(ast.Div, intT, number(intT, -7), number(intT, 2))
	if got := Eval(d, expr); got.I64() != -3 {
		t.Fatalf("-7 / 2 = %d, want -3 (truncating toward zero)", got.I64())
	}
}

func TestEvalUnsignedComparisonOfNegative(t *testing.T) {
	d := newTestDiag(t)
	uintT := types.NewBase(types.UnsignedInt)
	expr := binary(ast.Less, uintT, number(uintT, -1), number(uintT, 1))
	got := Eval(d, expr)
	if got.IsTruthy() {
		t.Fatal("(unsigned)-1 < 1 must be false: -1 reinterprets to a huge unsigned value")
	}
}

func TestEvalLogicalOrEvaluatesBothSides(t *testing.T) {
	d := newTestDiag(t)
	intT := types.NewBase(types.SignedInt)
	expr := ast.New(ast.LogicalOr)
	expr.Type = intT
	ast.Append(expr, number(intT, 1))
	ast.Append(expr, number(intT, 0))
	if got := Eval(d, expr); got.I64() != 1 {
		t.Fatalf("1 || 0 = %d, want 1", got.I64())
	}
}

func TestEvalShiftLeft(t *testing.T) {
	d := newTestDiag(t)
	intT := types.NewBase(types.SignedInt)
	expr := binary(ast.Shl, intT, number(intT, 1), number(intT, 4))
	if got := Eval(d, expr); got.I64() != 16 {
		t.Fatalf("1 << 4 = %d, want 16", got.I64())
	}
}

func TestEvalSizeof(t *testing.T) {
	d := newTestDiag(t)
	sizeT := types.NewBase(types.UnsignedInt)
	inner := ast.New(ast.TypeNode)
	inner.Type = types.NewBase(types.SignedLongLong)
	expr := ast.New(ast.Sizeof)
	expr.Type = sizeT
	ast.Append(expr, inner)
	if got := Eval(d, expr); got.U64() != 8 {
		t.Fatalf("sizeof(long long) = %d, want 8", got.U64())
	}
}

func TestEvalUnknownExpressionIsFatal(t *testing.T) {
	d := newTestDiag(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected evaluating a non-constant node to be fatal")
		}
	}()
	n := ast.New(ast.Access)
	n.Type = types.NewBase(types.SignedInt)
	Eval(d, n)
}

func TestEvalNegativeSignedResultSignExtends(t *testing.T) {
	d := newTestDiag(t)
	intT := types.NewBase(types.SignedInt)
	expr := binary(ast.Sub, intT, number(intT, 0), number(intT, 1))
	if got := Eval(d, expr); got.I64() != -1 {
		t.Fatalf("0 - 1 = %d, want -1 (not the zero-extended 32-bit pattern)", got.I64())
	}
}

func TestEval64BitArithmetic(t *testing.T) {
	d := newTestDiag(t)
	llT := types.NewBase(types.SignedLongLong)
	expr := binary(ast.Mul, llT, number(llT, 1<<40), number(llT, 3))
	if got := Eval(d, expr); got.I64() != (1<<40)*3 {
		t.Fatalf("got %d, want %d", got.I64(), (1<<40)*3)
	}
}
