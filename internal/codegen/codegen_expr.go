package codegen

import (
	"fmt"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/types"
)

// loadOpcodeForSize picks the narrow-or-wide load matching a value's size
// (generate_access's LDB/LDS/LDW dispatch).
func loadOpcodeForSize(size uint32) ir.Opcode {
	switch size {
	case 1:
		return ir.OpLdb
	case 2:
		return ir.OpLds
	default:
		return ir.OpLdw
	}
}

// storeOpcodeForSize is loadOpcodeForSize for STB/STS/STW.
func storeOpcodeForSize(size uint32) ir.Opcode {
	switch size {
	case 1:
		return ir.OpStb
	case 2:
		return ir.OpSts
	default:
		return ir.OpStw
	}
}

// loadImm puts the word value v into reg, using a plain MOV when it fits a
// mix byte and falling back to IMW otherwise.
func (g *Generator) loadImm(reg ir.Register, v int32) {
	if ir.FitsMixByte(int(v)) {
		g.block.Append(ir.Reg(ir.OpMov, int8(reg), int8(v), 0))
		return
	}
	g.block.Append(ir.Imm(reg, v))
}

// generateWordConstant loads a single-word constant into a fresh register
// (generate_number's non-long-long path, also used for sizeof and
// character literals).
func (g *Generator) generateWordConstant(v uint32) ir.Register {
	reg := g.allocReg()
	g.loadImm(reg, int32(v))
	return reg
}

// storeWideImmediate writes a 64-bit constant's two words through the
// address held in reg (generate_number's long-long path).
func (g *Generator) storeWideImmediate(reg ir.Register, v bignum.Wide) {
	tmp := g.allocReg()
	g.loadImm(tmp, int32(v.Low()))
	g.block.Append(ir.Reg(ir.OpStw, int8(reg), 0, int8(tmp)))
	g.loadImm(tmp, int32(v.High()))
	g.block.Append(ir.Reg(ir.OpStw, int8(reg), 4, int8(tmp)))
	g.freeReg(tmp)
}

// generateNumber lowers an integer or floating constant (generate_number).
// A value wider than one word (long long, double) has no single register
// to live in, so it is materialized into a fresh stack temporary and the
// register returned holds that temporary's address, exactly like any other
// indirectly-represented rvalue (types.IsPassedIndirectly).
func (g *Generator) generateNumber(node *ast.Node) ir.Register {
	if types.Size(node.Type) > 4 {
		reg := g.allocTemp(types.Size(node.Type))
		g.storeWideImmediate(reg, node.Value)
		return reg
	}
	return g.generateWordConstant(node.Value.Low())
}

// generateCharacter lowers a character literal (generate_character); always
// single-word, but not necessarily mix-byte range (e.g. 0xA5 doesn't fit an
// int8 slot), so this still goes through loadImm rather than a bare MOV.
func (g *Generator) generateCharacter(node *ast.Node) ir.Register {
	return g.generateWordConstant(node.Value.Low())
}

// generateString loads the address of a string literal's storage in the
// read-only pool (generate_string): the generated label is relative to
// RPP, the pool base register, so the IMW's value needs one ADD to become
// an absolute address.
func (g *Generator) generateString(node *ast.Node) ir.Register {
	reg := g.allocReg()
	g.block.Append(ir.ImmGenerated(reg, stringLabelPrefix, node.StringLabel))
	g.block.Append(ir.Reg(ir.OpAdd, int8(reg), int8(reg), int8(ir.RPP)))
	return reg
}

// generateConstant loads a plain compile-time-known word value (sizeof's
// result, among others) — typ is unused beyond documenting the caller's
// intent, since every constant value handled this way already fits a word.
func (g *Generator) generateConstant(value uint32, typ *types.Type) ir.Register {
	_ = typ
	return g.generateWordConstant(value)
}

// copyIndirect copies an indirectly-represented value (a long long,
// double, or struct/union larger than a word) out of the location held in
// reg into a fresh temporary, so reading it as an rvalue never aliases the
// original storage (generate_access_impl's indirect-type path), and leaves
// the new address in reg itself rather than a newly allocated register.
// Reusing reg's own slot — instead of allocating a fresh one above it — is
// what keeps this legal no matter where reg sits in the allocator's stack:
// allocReg/freeReg require exact reverse-order nesting, and reg was always
// handed to us as the most recently allocated register in scope.
func (g *Generator) copyIndirect(reg ir.Register, typ *types.Type) ir.Register {
	size := types.Size(typ)
	n := int32(roundUp(size, 4))
	g.subRsp(n)
	tmp := g.allocReg()
	g.block.Append(ir.Reg(ir.OpMov, int8(tmp), int8(ir.RSP), 0))
	g.generateCopy(tmp, reg, size)
	g.block.Append(ir.Reg(ir.OpMov, int8(reg), int8(tmp), 0))
	g.freeReg(tmp)
	g.regExtra[len(g.regExtra)-1] = n
	return reg
}

// generateCopy copies size bytes from the address in src to the address in
// dst, word-at-a-time with a half-word/byte tail (generate_copy). Like the
// rest of this generator's addressing, offsets are assumed to fit a mix
// byte; a struct larger than 127 bytes is outside what this backend's
// fixed-width instruction encoding can address in one instruction.
func (g *Generator) generateCopy(dst, src ir.Register, size uint32) {
	tmp := g.allocReg()
	var offset uint32
	for size-offset >= 4 {
		g.block.Append(ir.Reg(ir.OpLdw, int8(tmp), int8(src), int8(offset)))
		g.block.Append(ir.Reg(ir.OpStw, int8(dst), int8(offset), int8(tmp)))
		offset += 4
	}
	if size-offset >= 2 {
		g.block.Append(ir.Reg(ir.OpLds, int8(tmp), int8(src), int8(offset)))
		g.block.Append(ir.Reg(ir.OpSts, int8(dst), int8(offset), int8(tmp)))
		offset += 2
	}
	if size-offset >= 1 {
		g.block.Append(ir.Reg(ir.OpLdb, int8(tmp), int8(src), int8(offset)))
		g.block.Append(ir.Reg(ir.OpStb, int8(dst), int8(offset), int8(tmp)))
	}
	g.freeReg(tmp)
}

// generateZero zeroes size bytes at the address in dst, word-at-a-time with
// a tail (generate_zero; used for tentatively-defined locals with no
// initializer and for padding a partial aggregate initializer).
func (g *Generator) generateZero(dst ir.Register, size uint32) {
	var offset uint32
	for size-offset >= 4 {
		g.block.Append(ir.Reg(ir.OpStw, int8(dst), int8(offset), 0))
		offset += 4
	}
	if size-offset >= 2 {
		g.block.Append(ir.Reg(ir.OpStb, int8(dst), int8(offset), 0))
		g.block.Append(ir.Reg(ir.OpStb, int8(dst), int8(offset+1), 0))
		offset += 2
	}
	if size-offset >= 1 {
		g.block.Append(ir.Reg(ir.OpStb, int8(dst), int8(offset), 0))
	}
}

// addressWithOffset computes base+offset in place, folding the addition
// into the base register rather than allocating a new one.
func (g *Generator) addressWithOffset(base ir.Register, offset int32) {
	if offset == 0 {
		return
	}
	g.appendOpImm(ir.OpAdd, base, base, offset)
}

// frameAddress computes the address of a stack-frame-relative offset into a
// fresh register (used whenever a local's address is needed rather than its
// value loaded directly in one instruction).
func (g *Generator) frameAddress(offset int32) ir.Register {
	reg := g.allocReg()
	if ir.FitsMixByte(int(offset)) {
		g.block.Append(ir.Reg(ir.OpAdd, int8(reg), int8(ir.RFP), int8(offset)))
		return reg
	}
	g.block.Append(ir.Imm(reg, offset))
	g.block.Append(ir.Reg(ir.OpAdd, int8(reg), int8(reg), int8(ir.RFP)))
	return reg
}

// generateAccessLocation computes the address of an identifier reference
// (generate_access_location): a global's address is its mangled name, a
// local's is frame-pointer-relative, and an enumeration constant has no
// address at all.
func (g *Generator) generateAccessLocation(node *ast.Node) ir.Register {
	sym := node.Symbol
	if sym.Kind == scope.KindConstant {
		g.D.Fatalf(locOf(node), "Cannot take the address of an enumeration constant.")
	}
	if sym.IsGlobal() {
		reg := g.allocReg()
		g.block.Append(ir.ImmName(reg, sym.AsmName))
		return reg
	}
	return g.frameAddress(int32(sym.Offset))
}

// generateAccess lowers a plain identifier reference as an rvalue
// (generate_access): arrays and functions decay to their address, large
// aggregates and 64-bit scalars are copied out of their storage, everything
// else is loaded directly in one instruction without ever materializing an
// intermediate address register.
func (g *Generator) generateAccess(node *ast.Node) ir.Register {
	sym := node.Symbol
	if sym.Kind == scope.KindConstant {
		return g.generateWordConstant(uint32(sym.ConstValue))
	}
	if node.Type.IsArray() || node.Type.IsFunction() {
		return g.generateAccessLocation(node)
	}
	if types.IsPassedIndirectly(node.Type) {
		return g.copyIndirect(g.generateAccessLocation(node), node.Type)
	}

	op := loadOpcodeForSize(types.Size(node.Type))
	if sym.IsGlobal() {
		reg := g.allocReg()
		g.block.Append(ir.ImmName(reg, sym.AsmName))
		g.block.Append(ir.Reg(op, int8(reg), int8(reg), 0))
		return reg
	}

	offset := int32(sym.Offset)
	if ir.FitsMixByte(int(offset)) {
		reg := g.allocReg()
		g.block.Append(ir.Reg(op, int8(reg), int8(ir.RFP), int8(offset)))
		return reg
	}
	reg := g.frameAddress(offset)
	g.block.Append(ir.Reg(op, int8(reg), int8(reg), 0))
	return reg
}

// loadLocation turns an already-computed address (locReg) into node's
// value, matching generate_dereference_impl's shared tail used by
// dereference, array subscript and member access alike: arrays decay (their
// "value" is their address), large aggregates/64-bit scalars are copied out
// so the caller never aliases the original storage, everything else is
// loaded in place.
func (g *Generator) loadLocation(node *ast.Node, locReg ir.Register) ir.Register {
	if node.Type.IsArray() || node.Type.IsFunction() {
		return locReg
	}
	if types.IsPassedIndirectly(node.Type) {
		return g.copyIndirect(locReg, node.Type)
	}
	op := loadOpcodeForSize(types.Size(node.Type))
	g.block.Append(ir.Reg(op, int8(locReg), int8(locReg), 0))
	return locReg
}

// generateLocation computes the address of any location-kind node
// (generate_location's dispatch), used by address-of, assignment, compound
// assignment and increment/decrement.
func (g *Generator) generateLocation(node *ast.Node) ir.Register {
	switch node.Kind {
	case ast.Access:
		return g.generateAccessLocation(node)
	case ast.Dereference:
		return g.generateNode(node.FirstChild)
	case ast.ArraySubscript:
		return g.generatePointerAddSub(node.FirstChild, node.LastChild, false)
	case ast.MemberVal:
		return g.generateLocationMemberVal(node)
	case ast.MemberPtr:
		return g.generateLocationMemberPtr(node)
	}
	panic(fmt.Sprintf("codegen: %v is not a location", node.Kind))
}

// generateAddressOf lowers `&expr` by delegating straight to
// generateLocation (generate_address_of): the address-of operator never
// needs to load through the computed address, only to hand it back.
func (g *Generator) generateAddressOf(node *ast.Node) ir.Register {
	return g.generateLocation(node.FirstChild)
}

// generateDereference lowers `*ptr` (generate_dereference): the pointer's
// own value already is the location, so no address arithmetic is needed
// before loading through it.
func (g *Generator) generateDereference(node *ast.Node) ir.Register {
	ptrReg := g.generateNode(node.FirstChild)
	return g.loadLocation(node, ptrReg)
}

// generatePointerAddSub lowers pointer+integer / integer+pointer /
// array[index] addressing math shared by plain pointer arithmetic and
// array subscripting: the integer operand is scaled by the pointed-to
// element's size before the add (or subtract), since — unlike pointer minus
// pointer — the parser leaves this scaling to code generation entirely
// (parser.makePointerArithmetic only special-cases ptr-ptr).
func (g *Generator) generatePointerAddSub(ptrNode, idxNode *ast.Node, sub bool) ir.Register {
	elemType := ptrNode.Type.Ref
	ptrReg := g.generateNode(ptrNode)
	idxReg := g.generateNode(idxNode)

	elemSize := types.Size(elemType)
	if elemSize > 1 {
		g.appendOpImm(ir.OpMul, idxReg, idxReg, int32(elemSize))
	}
	op := ir.OpAdd
	if sub {
		op = ir.OpSub
	}
	g.block.Append(ir.Reg(op, int8(ptrReg), int8(ptrReg), int8(idxReg)))
	g.freeReg(idxReg)
	return ptrReg
}

// generateArraySubscript lowers `array[index]` (generate_array_subscript):
// the parser has already decayed the array operand to a pointer and
// ordered the two children as [array, index] regardless of source order.
func (g *Generator) generateArraySubscript(node *ast.Node) ir.Register {
	loc := g.generatePointerAddSub(node.FirstChild, node.LastChild, false)
	return g.loadLocation(node, loc)
}

// generateMemberBase computes the address of a `.`/`->` member access's
// base object. When the base is itself a location (the common case, a
// struct variable or a chain of member/subscript accesses), its address is
// computed directly; a base that is an rvalue (e.g. a function call
// returning a struct by value) is already represented by an address if it
// is passed indirectly, or is spilled into a scratch slot first if it is
// small enough to live in a single register.
func (g *Generator) generateMemberBase(base *ast.Node) ir.Register {
	if ast.IsLocation(base) {
		return g.generateLocation(base)
	}
	reg := g.generateNode(base)
	if types.IsPassedIndirectly(base.Type) {
		return reg
	}
	size := types.Size(base.Type)
	tmp := g.allocTemp(size)
	g.block.Append(ir.Reg(storeOpcodeForSize(size), int8(tmp), 0, int8(reg)))
	g.freeReg(reg)
	return tmp
}

// generateLocationMemberVal computes the address of a `.`-accessed member
// (generate_location's MemberVal case).
func (g *Generator) generateLocationMemberVal(node *ast.Node) ir.Register {
	reg := g.generateMemberBase(node.FirstChild)
	g.addressWithOffset(reg, int32(node.MemberOffset))
	return reg
}

// generateMemberVal lowers `base.member` (generate_member_val).
func (g *Generator) generateMemberVal(node *ast.Node) ir.Register {
	loc := g.generateLocationMemberVal(node)
	return g.loadLocation(node, loc)
}

// generateLocationMemberPtr computes the address of a `->`-accessed member
// (generate_location's MemberPtr case): the base is already a plain pointer
// expression (the parser decays it), so no location computation is needed
// for it, only the member offset addition.
func (g *Generator) generateLocationMemberPtr(node *ast.Node) ir.Register {
	reg := g.generateNode(node.FirstChild)
	g.addressWithOffset(reg, int32(node.MemberOffset))
	return reg
}

// generateMemberPtr lowers `base->member` (generate_member_ptr).
func (g *Generator) generateMemberPtr(node *ast.Node) ir.Register {
	loc := g.generateLocationMemberPtr(node)
	return g.loadLocation(node, loc)
}

// generateUnaryMinus lowers unary `-expr` (generate_unary_minus): negation
// is synthesized as a subtraction from zero rather than a dedicated opcode,
// since the ISA has no NEG instruction.
func (g *Generator) generateUnaryMinus(node *ast.Node) ir.Register {
	if types.Size(node.Type) > 4 {
		return g.generateWideUnary(node, "__llong_neg", "__double_neg")
	}
	reg := g.generateNode(node.FirstChild)
	g.block.Append(ir.Reg(ir.OpSub, int8(reg), 0, int8(reg)))
	return reg
}

// generateBitNot lowers `~expr` (generate_bit_not).
func (g *Generator) generateBitNot(node *ast.Node) ir.Register {
	if types.Size(node.Type) > 4 {
		return g.generateWideUnary(node, "__llong_bit_not", "")
	}
	reg := g.generateNode(node.FirstChild)
	g.block.Append(ir.Reg(ir.OpNot, int8(reg), int8(reg), 0))
	return reg
}

// generateLogNot lowers `!expr` (generate_logical_not): the ISA's BOOL
// instruction already produces 0/1 from a nonzero/zero operand, so this
// needs one extra XOR with 1 to flip it, rather than a branch.
func (g *Generator) generateLogNot(node *ast.Node) ir.Register {
	reg := g.generateNode(node.FirstChild)
	g.block.Append(ir.Reg(ir.OpBool, int8(reg), int8(reg), 0))
	g.block.AppendOpImm(ir.OpXor, reg, reg, 1)
	return reg
}

// generateWideUnary lowers a unary operator over a 64-bit operand through a
// runtime helper, following the same address-in/address-out convention as
// generateBinaryHelperCall but with a single operand.
func (g *Generator) generateWideUnary(node *ast.Node, llongHelper, doubleHelper string) ir.Register {
	helper := llongHelper
	if node.Type.MatchesBase(types.Double) || node.Type.MatchesBase(types.LongDouble) {
		helper = doubleHelper
	}
	if helper == "" {
		g.D.Fatalf(locOf(node), "This operator is not yet implemented for this operand type.")
	}
	return g.generateUnaryHelperCall(node, helper)
}
