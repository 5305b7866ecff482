// Package consteval implements constant-expression folding (spec.md
// §4.7): the evaluation of an already-typed, already-checked AST
// expression into the compile-time value needed for array bounds, enum
// constants, case labels, and static-initializer lowering.
//
// The original implementation splits this into node_eval_32 and
// node_eval_64 because 64-bit arithmetic is relatively expensive on its
// 32-bit-bootstrap host (see DESIGN.md's Open Question resolutions). Since
// internal/bignum already collapses that split into one native-uint64
// Wide type, this package collapses the two eval functions into one Eval
// that always produces a Wide and truncates to 32 bits only where the
// node's own type says the result is 32 bits wide.
package consteval

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/types"
)

func locOf(node *ast.Node) diag.Located {
	if node == nil || node.Tok == nil {
		return nil
	}
	return node.Tok
}

func boolWide(b bool) bignum.Wide {
	if b {
		return bignum.FromU32(1)
	}
	return bignum.FromU32(0)
}

// Eval folds node into its constant value (node_eval_32/node_eval_64
// merged). node.Type must be an integer or enum type; the caller (the
// parser, evaluating e.g. an array bound or a case label) is responsible
// for having already checked that the expression is in fact constant in
// the C sense — an expression this package cannot fold is a fatal
// diagnostic, matching the original's "Expected a constant expression."
func Eval(d *diag.Diagnostics, node *ast.Node) bignum.Wide {
	w := eval(d, node)
	if types.Size(node.Type) == 4 {
		// Truncate to the expression's own 32-bit width, sign-extending when
		// the type is signed so callers reading the value back as 64 bits
		// (enum values, case labels) see e.g. -1 rather than 0xFFFFFFFF.
		if node.Type.IsSignedInteger() {
			return bignum.FromI64(int64(int32(w.Low())))
		}
		return bignum.FromU32(w.Low())
	}
	return w
}

func evalLogical(d *diag.Diagnostics, node *ast.Node) bool {
	if !node.Type.IsArithmetic() {
		d.Fatalf(locOf(node), "internal error: a non-arithmetic type cannot be an operand to a logical operator")
	}
	if !node.Type.IsInteger() {
		d.Fatalf(locOf(node), "logical operators on floating-point constants are not yet supported")
	}
	return eval(d, node).IsTruthy()
}

func eval(d *diag.Diagnostics, node *ast.Node) bignum.Wide {
	switch node.Kind {
	case ast.LogicalOr:
		// Both sides are evaluated even if the left is true: every operand
		// of a constant expression must itself be constant.
		left := evalLogical(d, node.FirstChild)
		right := evalLogical(d, node.LastChild)
		return boolWide(left || right)
	case ast.LogicalAnd:
		left := evalLogical(d, node.FirstChild)
		right := evalLogical(d, node.LastChild)
		return boolWide(left && right)
	case ast.LogicalNot:
		return boolWide(!evalLogical(d, node.FirstChild))

	case ast.BitOr, ast.BitXor, ast.BitAnd, ast.Equal, ast.NotEqual,
		ast.Less, ast.Greater, ast.LessOrEqual, ast.GreaterOrEqual,
		ast.Shl, ast.Shr, ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		return evalBinary(d, node)

	case ast.UnaryPlus:
		return eval(d, node.FirstChild)
	case ast.UnaryMinus:
		return eval(d, node.FirstChild).Neg()
	case ast.BitNot:
		return eval(d, node.FirstChild).Not()

	case ast.Character, ast.Number:
		return node.Value

	case ast.Sizeof:
		return bignum.FromU32(types.Size(node.FirstChild.Type))

	case ast.Access:
		if node.Symbol == nil || node.Symbol.Kind != scope.KindConstant {
			break
		}
		return bignum.FromI64(node.Symbol.ConstValue)

	case ast.Cast:
		return evalCast(d, node)

	case ast.ArraySubscript, ast.MemberVal, ast.MemberPtr, ast.Dereference, ast.AddressOf:
		d.Fatalf(locOf(node), "this operator is not yet supported in a constant expression")
	}

	d.Fatalf(locOf(node), "expected a constant expression")
	return bignum.Zero()
}

func evalBinary(d *diag.Diagnostics, node *ast.Node) bignum.Wide {
	left := eval(d, node.FirstChild)
	right := eval(d, node.LastChild)
	signed := node.Type.IsSignedInteger()
	switch node.Kind {
	case ast.Less, ast.Greater, ast.LessOrEqual, ast.GreaterOrEqual:
		// A comparison's own type is always int; its signedness is that of
		// its (already converted) operands.
		signed = node.FirstChild.Type.IsSignedInteger()
	}

	switch node.Kind {
	case ast.BitOr:
		return left.Or(right)
	case ast.BitXor:
		return left.Xor(right)
	case ast.BitAnd:
		return left.And(right)
	case ast.Equal:
		return boolWide(left.EqU(right))
	case ast.NotEqual:
		return boolWide(!left.EqU(right))
	case ast.Less:
		if signed {
			return boolWide(left.LtS(right))
		}
		return boolWide(left.LtU(right))
	case ast.Greater:
		if signed {
			return boolWide(left.GtS(right))
		}
		return boolWide(left.GtU(right))
	case ast.LessOrEqual:
		if signed {
			return boolWide(left.LeS(right))
		}
		return boolWide(left.LeU(right))
	case ast.GreaterOrEqual:
		if signed {
			return boolWide(left.GeS(right))
		}
		return boolWide(left.GeU(right))
	case ast.Shl:
		return left.Shl(uint(right.Low()))
	case ast.Shr:
		if signed {
			return left.ShrS(uint(right.Low()))
		}
		return left.ShrU(uint(right.Low()))
	case ast.Add:
		return left.Add(right)
	case ast.Sub:
		return left.Sub(right)
	case ast.Mul:
		return left.Mul(right)
	case ast.Div:
		if !right.IsTruthy() {
			d.Fatalf(locOf(node), "division by zero in a constant expression")
		}
		if signed {
			return left.DivS(right)
		}
		return left.DivU(right)
	case ast.Mod:
		if !right.IsTruthy() {
			d.Fatalf(locOf(node), "division by zero in a constant expression")
		}
		if signed {
			return left.ModS(right)
		}
		return left.ModU(right)
	}
	panic("consteval: unreachable binary node kind")
}

func evalCast(d *diag.Diagnostics, node *ast.Node) bignum.Wide {
	child := node.FirstChild
	if child.Type.IsInteger() {
		w := eval(d, child)
		if node.Type.MatchesBase(types.Bool) {
			return boolWide(w.IsTruthy())
		}
		if !node.Type.IsInteger() {
			return w
		}
		// Narrow to the target's width, then re-widen by its signedness.
		shift := uint(64 - 8*types.Size(node.Type))
		if node.Type.IsSignedInteger() {
			return w.Shl(shift).ShrS(shift)
		}
		return w.Shl(shift).ShrU(shift)
	}
	if child.Type.IsArithmetic() {
		d.Fatalf(locOf(node), "casting a floating-point constant is not yet supported")
	}
	d.Fatalf(locOf(node), "casting this type in a constant expression is not yet supported")
	return bignum.Zero()
}
