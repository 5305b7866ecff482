package codegen

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/types"
)

// isCalleeDirect reports whether a call's function operand names a function
// symbol directly, rather than going through a pointer (generate_call's own
// `function->kind == NODE_ACCESS && type_is_function(function->type)`
// check): a direct callee is called by its mangled name, everything else
// through whatever value the operand computes to.
func isCalleeDirect(fnNode *ast.Node) bool {
	return fnNode.Kind == ast.Access && fnNode.Type.IsFunction()
}

// generateCallTarget computes the address to call through for an indirect
// call (generate_call's own indirect branch): a bare function-typed operand
// (one that hasn't already decayed to a pointer, e.g. a parenthesized
// function designator) needs its location, anything else is already a
// function-pointer value.
func (g *Generator) generateCallTarget(fnNode *ast.Node) ir.Register {
	if fnNode.Type.IsFunction() {
		return g.generateLocation(fnNode)
	}
	return g.generateNode(fnNode)
}

// generateCall lowers a function call (generate_call). No explicit
// destination register is threaded in the way the original threads reg_out:
// an indirectly-returned result gets its own freshly allocated stack
// temporary here, exactly like every other indirectly-represented rvalue
// elsewhere in this generator, rather than borrowing storage a caller
// supplied.
//
// Arguments are placed following the same convention generate_parameter_offsets
// assigns on the callee side: the first four arguments that both fall within
// the callee's declared (non-variadic) parameter count and aren't themselves
// passed indirectly go in r0-r3; everything else — every indirectly-passed
// argument, any argument beyond the fourth register slot, and every variadic
// extra — is pushed onto the stack, right to left, ahead of the register
// arguments.
func (g *Generator) generateCall(node *ast.Node) ir.Register {
	fnNode := node.FirstChild

	fnType := fnNode.Type
	if fnType.IsIndirection() {
		fnType = fnType.Ref
	}

	var args []*ast.Node
	for a := fnNode.RightSibling; a != nil; a = a.RightSibling {
		args = append(args, a)
	}

	registerArgs := 0
	var lastRegisterArg *ast.Node
	for i, a := range args {
		if i >= len(fnType.Args) {
			break
		}
		if types.IsPassedIndirectly(a.Type) {
			continue
		}
		lastRegisterArg = a
		registerArgs++
		if registerArgs == 4 {
			break
		}
	}

	returnIndirect := types.IsPassedIndirectly(node.Type)

	// The indirect-return destination is allocated through the ordinary
	// register allocator, so it occupies a depth-tracked slot of its own for
	// as long as it stays live — but that slot could be literal r0..r(k-1),
	// the exact window placeCallArgs is about to overwrite with argument
	// values below. It is pushed and popped around that window accordingly.
	// Its stack temporary is reserved before saveClobbered pushes anything,
	// so the restore at the end pops the saved words and not the temporary.
	var out ir.Register
	if returnIndirect {
		out = g.allocTemp(types.Size(node.Type))
	}

	// saveClobbered must run before this call's own operands are allocated:
	// it protects whatever an enclosing expression already has live in the
	// r0-r(registerArgs-1) window, not the operands, which are placed into
	// that very window on purpose a few lines down.
	restore := g.saveClobbered(registerArgs)

	// Stack arguments, right to left. Unlike allocTemp, the reserved stack
	// space here is released in one block_add_rsp after the call returns,
	// not register by register as each argument's own register is freed, so
	// the space stays live exactly as long as the callee needs it to.
	var stackSpace int32
	lastFound := false
	for i := len(args) - 1; i >= 0; i-- {
		a := args[i]
		if a == lastRegisterArg {
			lastFound = true
		}
		switch {
		case types.IsPassedIndirectly(a.Type):
			size := types.Size(a.Type)
			n := int32(roundUp(size, 4))
			src := g.generateNode(a)
			g.subRsp(n)
			dst := g.allocReg()
			g.block.Append(ir.Reg(ir.OpMov, int8(dst), int8(ir.RSP), 0))
			g.generateCopy(dst, src, size)
			g.freeReg(dst)
			g.freeReg(src)
			stackSpace += n
		case !lastFound:
			v := g.generateNode(a)
			g.block.Append(ir.Reg(ir.OpPush, int8(v), 0, 0))
			g.freeReg(v)
			stackSpace += 4
		}
	}

	// The indirect-return pointer is pushed last, so it sits at [rfp+8]
	// from the callee's frame — directly above the return address, below
	// every stack argument, exactly where generateParameterOffsets starts
	// stack parameters when the return is indirect. The same push doubles
	// as out's save slot across the call: it is popped back rather than
	// released with the argument space.
	if returnIndirect {
		g.block.Append(ir.Reg(ir.OpPush, int8(out), 0, 0))
	}

	// Register arguments, left to right, into r0-r3. These are generated and
	// placed before reg_func (when the call is indirect) is generated below,
	// following the allocator's own cursor rather than an explicit reset.
	var regArgs []ir.Register
	for i, a := range args {
		if i >= len(fnType.Args) || types.IsPassedIndirectly(a.Type) {
			continue
		}
		regArgs = append(regArgs, g.generateNode(a))
		if a == lastRegisterArg {
			break
		}
	}
	g.placeCallArgs(regArgs...)

	if isCalleeDirect(fnNode) {
		g.block.Append(ir.CallName(ir.OpCall, fnNode.Symbol.AsmName))
	} else {
		funcReg := g.generateCallTarget(fnNode)
		g.block.Append(ir.Reg(ir.OpCall, int8(funcReg), 0, 0))
		g.freeReg(funcReg)
	}

	for i := len(regArgs) - 1; i >= 0; i-- {
		g.freeReg(regArgs[i])
	}

	if returnIndirect {
		g.block.Append(ir.Reg(ir.OpPop, int8(out), 0, 0))
	}
	g.addRsp(stackSpace)

	if returnIndirect {
		restore()
		return out
	}

	result := g.allocReg()
	g.block.Append(ir.Reg(ir.OpMov, int8(result), int8(ir.R0), 0))
	restore()
	return result
}
