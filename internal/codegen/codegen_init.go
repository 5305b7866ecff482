package codegen

import (
	"fmt"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/types"
)

// symbolAddress computes the address of a variable's storage into a fresh
// register: a global's mangled name, a local's frame offset
// (generate_access_location, reused by initializer lowering which starts
// from a symbol rather than an Access node).
func (g *Generator) symbolAddress(sym *scope.Symbol) ir.Register {
	if sym.IsGlobal() {
		reg := g.allocReg()
		g.block.Append(ir.ImmName(reg, sym.AsmName))
		return reg
	}
	return g.frameAddress(int32(sym.Offset))
}

// generateLocalInitializer lowers a declaration's `= ...` initializer
// (generate_initializer): the variable's address is computed once and
// threaded down through the (possibly nested) initializer structure as a
// base register plus accumulated byte offsets.
func (g *Generator) generateLocalInitializer(sym *scope.Symbol, init *ast.Node) {
	loc := g.symbolAddress(sym)
	if init.Kind == ast.InitializerList {
		g.generateInitializerList(init, sym.Type, loc, 0)
	} else {
		g.generateInitializerScalar(init, sym.Type, loc, 0)
	}
	g.freeReg(loc)
}

// generateInitializerScalar stores one non-list initializer entry into the
// subobject at regBase+offset (generate_initializer_scalar). The special
// case is a char array initialized from a string literal: min(array,
// string) bytes are copied and any remainder of the array is zeroed.
func (g *Generator) generateInitializerScalar(expr *ast.Node, target *types.Type, regBase ir.Register, offset uint32) {
	val := g.generateNode(expr)

	if target.IsArray() && expr.Kind == ast.String {
		arrayCount := target.Count
		stringCount := expr.Type.Count
		copyCount := arrayCount
		if stringCount < copyCount {
			copyCount = stringCount
		}
		loc := g.allocReg()
		g.loadImm(loc, int32(offset))
		g.block.Append(ir.Reg(ir.OpAdd, int8(loc), int8(loc), int8(regBase)))
		g.generateCopy(loc, val, copyCount)
		if arrayCount > stringCount {
			g.appendOpImm(ir.OpAdd, loc, loc, int32(stringCount))
			g.generateZero(loc, arrayCount-stringCount)
		}
		g.freeReg(loc)
		g.freeReg(val)
		return
	}

	size := types.Size(target)
	switch {
	case types.IsPassedIndirectly(target):
		loc := g.allocReg()
		g.loadImm(loc, int32(offset))
		g.block.Append(ir.Reg(ir.OpAdd, int8(loc), int8(loc), int8(regBase)))
		g.generateCopy(loc, val, size)
		g.freeReg(loc)
	case ir.FitsMixByte(int(offset)):
		g.block.Append(ir.Reg(storeOpcodeForSize(size), int8(regBase), int8(offset), int8(val)))
	default:
		loc := g.allocReg()
		g.loadImm(loc, int32(offset))
		g.block.Append(ir.Reg(ir.OpAdd, int8(loc), int8(loc), int8(regBase)))
		g.block.Append(ir.Reg(storeOpcodeForSize(size), int8(loc), 0, int8(val)))
		g.freeReg(loc)
	}
	g.freeReg(val)
}

// generateInitializerList recurses through a braced initializer's sparse
// entry vector (generate_initializer_list): each present entry's subobject
// offset is the member offset within a record or index*elemsize within an
// array, accumulated on top of baseOffset. Absent entries are left alone —
// the storage is already zero (globals) or deliberately indeterminate
// (locals), matching the original.
func (g *Generator) generateInitializerList(list *ast.Node, typ *types.Type, regLoc ir.Register, baseOffset uint32) {
	for i, child := range list.Initializers {
		if child == nil {
			continue
		}
		// The parser admits excess array elements; they initialize nothing.
		if typ.IsDeclarator && typ.Declarator == types.Array && uint32(i) >= typ.Count {
			break
		}

		var childType *types.Type
		var offset uint32
		switch {
		case typ.MatchesBase(types.Record):
			member := typ.RecordType.Members[i]
			childType = member.Type
			offset = baseOffset + member.Offset
		case typ.IsArray():
			childType = typ.Ref
			offset = baseOffset + uint32(i)*types.Size(typ.Ref)
		default:
			// The GNU scalar-in-braces form: the single entry targets the
			// scalar itself.
			childType = typ
			offset = baseOffset
		}

		if child.Kind == ast.InitializerList {
			g.generateInitializerList(child, childType, regLoc, offset)
		} else {
			g.generateInitializerScalar(child, childType, regLoc, offset)
		}
	}
}

// GenerateStaticInitializer synthesizes and lowers the constructor function
// that initializes one static-storage variable before main() runs
// (generate_static_initializer): an internal-linkage function named
// _Ix<serial>_<varname> with constructor priority 50 — below the GNU
// minimum user constructor priority of 101, so every static variable is
// initialized before any user constructor.
//
// init is detached from any tree it may still hang in (a static local's
// Variable node keeps it as a child until now); ownership moves to the
// synthetic function.
func (g *Generator) GenerateStaticInitializer(varSym *scope.Symbol, init *ast.Node) *ir.Function {
	name := fmt.Sprintf("%s%x_%s", initializerLabelPrefix, g.allocLabel(), varSym.Name)

	fnType := types.NewFunction(types.NewBase(types.Void), nil, nil, false, nil)
	sym := scope.NewSymbol(scope.KindFunction, fnType, varSym.Tok, name, name)
	sym.Linkage = scope.LinkageInternal
	sym.IsConstructor = true
	sym.ConstructorPrio = staticInitializerPriority

	def := ast.NewWithToken(ast.FunctionDef, varSym.Tok)
	def.Type = types.NewBase(types.Void)
	def.Symbol = sym

	variable := ast.NewWithToken(ast.Variable, varSym.Tok)
	variable.Type = types.NewBase(types.Void)
	variable.Symbol = varSym
	ast.Detach(init)
	ast.Append(variable, init)

	body := ast.NewWithToken(ast.Sequence, varSym.Tok)
	body.Type = types.NewBase(types.Void)
	ast.Append(body, variable)
	ast.Append(def, body)

	// generateVariable normally skips symbols with linkage (a static
	// local's initializer must not run on block entry); inside this one
	// synthetic function that very symbol is the whole point, so it is
	// whitelisted for the duration of the generation.
	g.staticInitTarget = varSym
	fn := g.GenerateFunction(def)
	g.staticInitTarget = nil
	return fn
}
