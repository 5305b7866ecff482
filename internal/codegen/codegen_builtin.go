package codegen

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/types"
)

// generateBuiltin dispatches the compiler-magic identifiers
// (generate_builtin): the va_* family manipulates the word-sized cursor a
// va_list holds, and __func__ is just a string literal the parser already
// materialized as this node's child.
func (g *Generator) generateBuiltin(node *ast.Node) ir.Register {
	switch node.Builtin {
	case scope.BuiltinVAArg:
		return g.generateBuiltinVAArg(node)
	case scope.BuiltinVAStart:
		return g.generateBuiltinVAStart(node)
	case scope.BuiltinVAEnd:
		// va_end has no effect in this ABI; the register exists only so the
		// caller's uniform free discipline holds.
		return g.allocReg()
	case scope.BuiltinVACopy:
		return g.generateBuiltinVACopy(node)
	case scope.BuiltinFunc:
		return g.generateNode(node.FirstChild)
	}
	g.D.Fatalf(locOf(node), "Internal error: cannot generate unrecognized builtin.")
	return 0
}

// generateBuiltinVAArg lowers va_arg(ap, T) (generate_builtin_va_arg): load
// the cursor out of the va_list, advance the stored cursor by sizeof(T)
// rounded to a word (arguments always occupy whole stack words), then load
// the value the pre-advance cursor pointed at.
func (g *Generator) generateBuiltinVAArg(node *ast.Node) ir.Register {
	loc := g.generateLocation(node.FirstChild)
	cur := g.allocReg()
	g.block.Append(ir.Reg(ir.OpLdw, int8(cur), int8(loc), 0))

	step := int32(roundUp(types.Size(node.Type), 4))
	advanced := g.allocReg()
	g.block.AppendOpImm(ir.OpAdd, advanced, cur, step)
	g.block.Append(ir.Reg(ir.OpStw, int8(loc), 0, int8(advanced)))
	g.freeReg(advanced)

	// The result reuses loc's register slot so it is the sole surviving
	// allocation: loc's own value (the va_list's address) is dead now that
	// the cursor has been stored back.
	if types.IsPassedIndirectly(node.Type) {
		g.block.Append(ir.Reg(ir.OpMov, int8(loc), int8(cur), 0))
		g.freeReg(cur)
		return g.copyIndirect(loc, node.Type)
	}
	g.block.Append(ir.Reg(loadOpcodeForSize(types.Size(node.Type)), int8(loc), int8(cur), 0))
	g.freeReg(cur)
	return loc
}

// generateBuiltinVAStart lowers va_start(ap, last) (generate_builtin_va_start):
// the first variadic argument lives at rfp+variadic_offset, computed when
// the enclosing function's parameter offsets were laid out.
func (g *Generator) generateBuiltinVAStart(node *ast.Node) ir.Register {
	loc := g.generateLocation(node.FirstChild)
	val := g.allocReg()
	g.loadImm(val, g.variadicOffset)
	g.block.Append(ir.Reg(ir.OpAdd, int8(val), int8(ir.RFP), int8(val)))
	g.block.Append(ir.Reg(ir.OpStw, int8(loc), 0, int8(val)))
	g.freeReg(val)
	return loc
}

// generateBuiltinVACopy lowers va_copy(dst, src): a va_list is one word, so
// the copy is a single load/store pair (generate_builtin_va_copy).
func (g *Generator) generateBuiltinVACopy(node *ast.Node) ir.Register {
	loc := g.generateLocation(node.FirstChild)
	val := g.generateNode(node.LastChild)
	g.block.Append(ir.Reg(ir.OpStw, int8(loc), 0, int8(val)))
	g.freeReg(val)
	return loc
}
