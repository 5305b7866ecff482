// Package codegen implements the code generator of spec.md §4.9: it walks
// the already-typed internal/ast tree produced by internal/parser and
// internal/consteval and lowers it into internal/ir basic blocks.
//
// The original (generate.c/generate_ops.c/generate_stmt.c) interleaves this
// walk with textual emission one function at a time, to bound peak memory
// on its bootstrap host. This package keeps the one-function-at-a-time
// shape (internal/compiler calls GenerateFunction once per completed
// definition, right after parsing it) but separates lowering from text
// rendering: GenerateFunction returns an *ir.Function for internal/emit to
// print, rather than writing assembly text directly.
package codegen

import (
	"fmt"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/strtab"
	"github.com/onramp-go/cci/internal/types"
)

// labelPrefixes mirror common.h's generated-label prefixes: every one of
// them draws from the single serial counter internal/parser already
// maintains for string-literal labels (JUMP_LABEL_PREFIX/
// STRING_LABEL_PREFIX/INITIALIZER_LABEL_PREFIX).
const (
	jumpLabelPrefix        = "_Lx"
	stringLabelPrefix      = "_Sx"
	initializerLabelPrefix = "_Ix"
)

// staticInitializerPriority is the constructor priority synthetic
// static/global initializer functions run at (generate_static_initializer);
// it is always lower than the GNU minimum user constructor priority (101)
// so user constructors never race a global's own initialization.
const staticInitializerPriority = 50

// Generator holds the state needed to lower one function body (and, in
// between function bodies, global/static variable initializers) into IR.
// Like internal/parser.Parser, this is a struct rather than package
// globals so independent compilations never share state.
type Generator struct {
	D    *diag.Diagnostics
	Strs *strtab.Table

	// Debug makes every emitted instruction carry the source location of
	// the AST node it came from, for the emitter's #line output; off by
	// default because retaining locations costs memory on every
	// instruction (instruction_vset's option_debug_info check).
	Debug bool

	// LabelSerial is the shared label counter (internal/parser.Parser's
	// NextLabel, via Parser.LabelCounter): block labels, string labels and
	// initializer-function names are all one numbering space.
	LabelSerial *int

	fn    *ir.Function
	block *ir.Block

	// regCursor/regDepth/regSpilled implement register_alloc/register_free's
	// fixed-order cursor over R0-R9 (register_next in the original): each
	// call to allocReg hands out the next register in the R0..R9 cycle and
	// advances the cursor; freeReg must be called in exactly the reverse
	// order of the matching allocReg calls (codegen's recursive structure
	// guarantees this, the same way a native call stack would). Once more
	// than 10 registers are simultaneously live, the cursor wraps and the
	// register being reused is spilled around with PUSH/POP instead
	// (register_loop_count in the original counts how many times this
	// happens, for diagnostics).
	regCursor    int
	regDepth     int
	regSpilled   []bool
	regLoopCount int

	// regExtra parallels regSpilled: the number of extra stack bytes (beyond
	// the register itself) a slot reserved when it was allocated through
	// allocTemp rather than plain allocReg. freeReg releases this stack space
	// before restoring a spilled register, so every caller can keep calling
	// the ordinary allocReg/freeReg pair without knowing whether a given
	// value is a plain word or the address of a larger temporary.
	regExtra []int32

	frameSize      int32
	variadicOffset int32

	// returnIndirect and returnOffset describe the current function's own
	// indirect-return convention: when the declared return type is larger
	// than a word, the caller passes a pointer to caller-owned storage at
	// the fixed frame offset returnOffset (generate_parameter_offsets'
	// leading indirect slot), and generate_return loads it back out from
	// there instead of computing a value into r0.
	returnIndirect bool
	returnOffset   int32

	// staticInitTarget is the one linked symbol whose initializer the
	// current (synthetic) function is allowed to lower; nil during
	// ordinary function generation. See GenerateStaticInitializer.
	staticInitTarget *scope.Symbol

	// caseBlocks maps each Case/Default node reached so far to the block
	// generateSwitch pre-allocated for it, so generateCaseOrDefault (called
	// from the ordinary body walk, long after the dispatch cascade that
	// created the block) can find it again. Keyed by node pointer, so
	// nested switches never collide even though the map isn't scoped per
	// switch.
	caseBlocks map[*ast.Node]*ir.Block
}

// New creates a Generator sharing d, strs and the label serial counter with
// the rest of the compilation.
func New(d *diag.Diagnostics, strs *strtab.Table, labelSerial *int) *Generator {
	return &Generator{D: d, Strs: strs, LabelSerial: labelSerial}
}

func (g *Generator) allocLabel() int {
	n := *g.LabelSerial
	*g.LabelSerial++
	return n
}

// allocReg hands out the next general-purpose register in the fixed R0-R9
// cycle, spilling it to the stack first if doing so would overwrite a
// still-live value (register_alloc).
func (g *Generator) allocReg() ir.Register {
	reg := ir.R0 + ir.Register(g.regCursor)
	spill := g.regDepth >= 10
	if spill {
		g.block.Append(ir.Reg(ir.OpPush, int8(reg), 0, 0))
		g.regLoopCount++
	}
	g.regCursor = (g.regCursor + 1) % 10
	g.regDepth++
	g.regSpilled = append(g.regSpilled, spill)
	g.regExtra = append(g.regExtra, 0)
	return reg
}

// allocTemp is allocReg for a value whose size doesn't fit in a single
// register: it reserves size bytes (rounded up to a word) on the stack and
// returns a register holding that storage's address. This is how every
// indirectly-represented rvalue with no location of its own (a long long or
// struct literal, an arithmetic result) gets somewhere to live — matching
// the calling convention's own treatment of such values as addresses rather
// than raw bits (types.IsPassedIndirectly).
func (g *Generator) allocTemp(size uint32) ir.Register {
	reg := g.allocReg()
	n := int32(roundUp(size, 4))
	g.regExtra[len(g.regExtra)-1] = n
	g.subRsp(n)
	g.block.Append(ir.Reg(ir.OpMov, int8(reg), int8(ir.RSP), 0))
	return reg
}

// freeReg releases the most recently allocated register, restoring it from
// the stack if allocReg had to spill it (register_free), and first
// releasing any stack temporary allocTemp reserved for it. Callers must
// free registers in the reverse order they were allocated.
func (g *Generator) freeReg(reg ir.Register) {
	g.regDepth--
	g.regCursor = (g.regCursor - 1 + 10) % 10
	spill := g.regSpilled[len(g.regSpilled)-1]
	g.regSpilled = g.regSpilled[:len(g.regSpilled)-1]
	extra := g.regExtra[len(g.regExtra)-1]
	g.regExtra = g.regExtra[:len(g.regExtra)-1]
	if extra != 0 {
		g.addRsp(extra)
	}
	if spill {
		g.block.Append(ir.Reg(ir.OpPop, int8(reg), 0, 0))
	}
}

// appendOpImm emits a three-register ALU instruction with an immediate third
// operand, routing the IMW fallback for an out-of-mix-range immediate through
// a freshly allocated scratch register (block_append_op_imm): unlike
// ir.Block.AppendOpImm, this is safe when dst and src are the same register,
// because the scratch never aliases either.
func (g *Generator) appendOpImm(opcode ir.Opcode, dst, src ir.Register, imm int32) {
	if ir.FitsMixByte(int(imm)) {
		g.block.Append(ir.Reg(opcode, int8(dst), int8(src), int8(imm)))
		return
	}
	scratch := g.allocReg()
	g.block.Append(ir.Imm(scratch, imm))
	g.block.Append(ir.Reg(opcode, int8(dst), int8(src), int8(scratch)))
	g.freeReg(scratch)
}

// subRsp and addRsp adjust the stack pointer by n bytes (block_sub_rsp/
// block_add_rsp), going through appendOpImm so a frame or temporary larger
// than the mix-byte range still encodes.
func (g *Generator) subRsp(n int32) {
	if n != 0 {
		g.appendOpImm(ir.OpSub, ir.RSP, ir.RSP, n)
	}
}

func (g *Generator) addRsp(n int32) {
	if n != 0 {
		g.appendOpImm(ir.OpAdd, ir.RSP, ir.RSP, n)
	}
}

// newBlock allocates and installs a fresh anonymous block as the current
// one, returning it so callers can keep a reference to jump back to it.
func (g *Generator) newBlock() *ir.Block {
	b := ir.NewBlock(g.allocLabel())
	g.inheritDebugLoc(b)
	g.fn.AddBlock(b)
	g.block = b
	return b
}

// newUserBlock is newBlock for a block named after a user label rather than
// a generated serial (generate_label).
func (g *Generator) newUserBlock(name string) *ir.Block {
	b := ir.NewUserBlock(name)
	g.inheritDebugLoc(b)
	g.fn.AddBlock(b)
	g.block = b
	return b
}

// inheritDebugLoc carries the current debug location over to a newly
// current block, so instructions emitted there before the next located AST
// node still point somewhere sensible.
func (g *Generator) inheritDebugLoc(b *ir.Block) {
	if g.Debug && g.block != nil {
		b.DebugLoc = g.block.DebugLoc
	}
}

func blockTarget(opcode ir.Opcode, b *ir.Block) ir.Instruction {
	if b.UserLabel != "" {
		return ir.CallName(opcode, b.UserLabel)
	}
	return ir.CallGenerated(opcode, jumpLabelPrefix, b.Label)
}

func condBlockTarget(opcode ir.Opcode, reg ir.Register, b *ir.Block) ir.Instruction {
	if b.UserLabel != "" {
		inst := ir.CallName(opcode, b.UserLabel)
		inst.Arg1 = int8(reg)
		return inst
	}
	return ir.CondJumpGenerated(opcode, reg, jumpLabelPrefix, b.Label)
}

func (g *Generator) jumpTo(b *ir.Block) {
	g.block.Append(blockTarget(ir.OpJmp, b))
}

func (g *Generator) condJump(opcode ir.Opcode, reg ir.Register, b *ir.Block) {
	g.block.Append(condBlockTarget(opcode, reg, b))
}

// locOf adapts a nullable AST node to diag.Located for an error report,
// returning a true nil interface (not a non-nil interface wrapping a nil
// pointer) when the node carries no token.
func locOf(node *ast.Node) diag.Located {
	if node == nil || node.Tok == nil {
		return nil
	}
	return node.Tok
}

// fnLinkage maps scope.Linkage to ir.FunctionLinkage (internal/ir sits
// below internal/scope in the import order and can't reference it
// directly).
func fnLinkage(l scope.Linkage) ir.FunctionLinkage {
	switch l {
	case scope.LinkageInternal:
		return ir.LinkageInternal
	case scope.LinkageExternal:
		return ir.LinkageExternal
	}
	return ir.LinkageNone
}

// GenerateFunction lowers a completed NODE_FUNCTION definition into an
// *ir.Function (generate_function). def.Symbol is the function's own
// symbol, already registered in the global scope by the parser.
func (g *Generator) GenerateFunction(def *ast.Node) *ir.Function {
	sym := def.Symbol
	fn := ir.NewFunction(sym.Type, sym.Name, sym.AsmName)
	fn.Linkage = fnLinkage(sym.Linkage)
	fn.IsWeak = sym.IsWeak
	fn.IsConstructor = sym.IsConstructor
	fn.IsDestructor = sym.IsDestructor
	fn.Priority = sym.ConstructorPrio

	g.fn = fn
	g.regCursor, g.regDepth, g.regSpilled, g.regExtra, g.regLoopCount = 0, 0, nil, nil, 0
	g.caseBlocks = nil

	entry := g.newBlock()
	entry.Append(ir.Reg(ir.OpEnter, 0, 0, 0))

	params := ast.Children(def)
	body := params[len(params)-1]
	params = params[:len(params)-1]

	g.returnIndirect = types.IsPassedIndirectly(sym.Type.Ref)
	g.returnOffset = 8

	offsets, registerFrameSize, variadicOffset := g.generateParameterOffsets(params)
	g.variadicOffset = variadicOffset
	fn.VariadicOffset = variadicOffset
	g.generateVariableOffsets(body, -registerFrameSize)

	frameSize := g.frameSizeOf(body, registerFrameSize)
	g.frameSize = frameSize
	if frameSize != 0 {
		scratch := g.allocReg()
		entry.AppendOpImmScratch(ir.OpSub, ir.RSP, ir.RSP, frameSize, scratch)
		g.freeReg(scratch)
	}

	// Copy register-passed arguments down into their frame slots so the
	// rest of the body can always address a parameter through [rfp+offset]
	// uniformly, whether it arrived in a register or on the stack
	// (generate_function's register-argument spill). Indirectly-passed
	// parameters never occupy a register slot, mirroring the slot
	// assignment in generateParameterOffsets.
	slot := 0
	for i, p := range params {
		if slot >= 4 {
			break
		}
		if types.IsPassedIndirectly(p.Type) {
			continue
		}
		argReg := ir.R0 + ir.Register(slot)
		storeToFrame(entry, offsets[i], argReg, types.Size(p.Type))
		slot++
	}

	g.generateNode(body)

	if !g.block.IsTerminated() {
		if sym.Name == "main" {
			g.block.Append(ir.Reg(ir.OpZero, int8(ir.R0), 0, 0))
		}
		g.block.Append(ir.Reg(ir.OpLeave, 0, 0, 0))
		g.block.Append(ir.Reg(ir.OpRet, 0, 0, 0))
	}

	return fn
}

func storeToFrame(b *ir.Block, offset int32, reg ir.Register, size uint32) {
	op := ir.OpStw
	switch size {
	case 1:
		op = ir.OpStb
	case 2:
		op = ir.OpSts
	}
	if ir.FitsMixByte(int(offset)) {
		b.Append(ir.Reg(op, int8(ir.RFP), int8(offset), int8(reg)))
		return
	}
	b.Append(ir.Imm(ir.R9, offset))
	b.Append(ir.Reg(ir.OpAdd, int8(ir.R9), int8(ir.RFP), int8(ir.R9)))
	b.Append(ir.Reg(op, int8(ir.R9), 0, int8(reg)))
}

// generateParameterOffsets assigns each parameter its frame offset above
// the frame pointer (generate_parameter_offsets): the first four
// non-indirectly-passed parameters live in r0-r3 (and are spilled to the
// stack below the frame so they still have an addressable location), the
// rest are pushed by the caller right-to-left and so sit above [rfp+8] in
// left-to-right order. The returned registerFrameSize is the total bytes
// reserved below the frame pointer for spilled register arguments
// (generate_parameter_offsets' own return value in the original): callers
// must start local-variable offsets below it, not at 0, or a local would
// alias a parameter's spill slot.
func (g *Generator) generateParameterOffsets(params []*ast.Node) ([]int32, int32, int32) {
	offsets := make([]int32, len(params))

	registerSlot := 0
	stackOffset := int32(8) // [rfp+0] is the saved rfp, [rfp+4] the return address
	if g.returnIndirect {
		// The caller's indirect-return pointer occupies the stack slot right
		// above the two saved words, ahead of any ordinary stack parameter
		// (generate_parameter_offsets' indirect_offset bump).
		stackOffset += 4
	}
	belowFrame := int32(0)

	for i, p := range params {
		indirect := types.IsPassedIndirectly(p.Type)
		if !indirect && registerSlot < 4 {
			// One word per spill slot, word-aligned regardless of the
			// parameter's own size.
			belowFrame -= 4
			offsets[i] = belowFrame
			if p.Symbol != nil {
				p.Symbol.Offset = int(belowFrame)
			}
			registerSlot++
			continue
		}
		offsets[i] = stackOffset
		if p.Symbol != nil {
			p.Symbol.Offset = int(stackOffset)
		}
		stackOffset += int32(roundUp(types.Size(p.Type), 4))
	}

	// Variadic arguments, when present, are the caller's pushes above the
	// last named stack parameter, so the first one sits exactly at the
	// running stack offset.
	variadicOffset := stackOffset
	return offsets, -belowFrame, variadicOffset
}

func roundUp(n, align uint32) uint32 {
	return (n + align - 1) / align * align
}

// generateVariableOffsets recursively walks a function body, assigning each
// auto-storage NODE_VARIABLE a negative frame offset below the last one
// assigned (generate_variable_offsets). cursor is the running byte offset
// (always <= 0, decreasing).
func (g *Generator) generateVariableOffsets(node *ast.Node, cursor int32) int32 {
	if node.Kind == ast.Variable && !node.Symbol.IsGlobal() {
		align := int32(types.Alignment(node.Symbol.Type))
		cursor -= int32(types.Size(node.Symbol.Type))
		if align > 1 {
			cursor = -roundUpAbs(-cursor, uint32(align))
		}
		node.Symbol.Offset = int(cursor)
	}
	for c := node.FirstChild; c != nil; c = c.RightSibling {
		cursor = g.generateVariableOffsets(c, cursor)
	}
	return cursor
}

func roundUpAbs(n int32, align uint32) int32 {
	return int32(roundUp(uint32(n), align))
}

// frameSizeOf returns the total stack frame size needed, the absolute
// value of the most negative offset assigned by generateVariableOffsets,
// rounded up to a word.
func (g *Generator) frameSizeOf(body *ast.Node, registerFrameSize int32) int32 {
	min := -registerFrameSize
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n.Kind == ast.Variable && !n.Symbol.IsGlobal() && n.Symbol.Offset < int(min) {
			min = int32(n.Symbol.Offset)
		}
		for c := n.FirstChild; c != nil; c = c.RightSibling {
			walk(c)
		}
	}
	walk(body)
	return roundUpAbs(-min, 4)
}

// generateNode lowers an expression or statement node for its side
// effects and, for an expression, returns the register holding its value
// (generate_node). The caller owns freeing that register.
func (g *Generator) generateNode(node *ast.Node) ir.Register {
	if g.Debug && node.Tok != nil {
		g.block.DebugLoc = &ir.SourceLoc{Filename: node.Tok.DiagFilename(), Line: node.Tok.Line}
	}
	switch node.Kind {
	case ast.Noop:
		return 0

	case ast.Sequence:
		return g.generateSequence(node)

	case ast.Number:
		return g.generateNumber(node)
	case ast.Character:
		return g.generateCharacter(node)
	case ast.String:
		return g.generateString(node)

	case ast.Access:
		return g.generateAccess(node)

	case ast.Cast:
		return g.generateCast(node)

	case ast.Sizeof:
		return g.generateConstant(types.Size(node.FirstChild.Type), node.Type)

	case ast.UnaryPlus:
		return g.generateNode(node.FirstChild)
	case ast.UnaryMinus:
		return g.generateUnaryMinus(node)
	case ast.BitNot:
		return g.generateBitNot(node)
	case ast.LogicalNot:
		return g.generateLogNot(node)

	case ast.AddressOf:
		return g.generateAddressOf(node)
	case ast.Dereference:
		return g.generateDereference(node)

	case ast.PreInc, ast.PreDec:
		return g.generatePreIncDec(node)
	case ast.PostInc, ast.PostDec:
		return g.generatePostIncDec(node)

	case ast.ArraySubscript:
		return g.generateArraySubscript(node)
	case ast.MemberVal:
		return g.generateMemberVal(node)
	case ast.MemberPtr:
		return g.generateMemberPtr(node)

	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod, ast.BitOr, ast.BitXor,
		ast.BitAnd, ast.Shl, ast.Shr:
		return g.generateSimpleArithmetic(node)

	case ast.Equal:
		return g.generateEqual(node)
	case ast.NotEqual:
		return g.generateNotEqual(node)
	case ast.Less:
		return g.generateLess(node)
	case ast.Greater:
		return g.generateGreater(node)
	case ast.LessOrEqual:
		return g.generateLessOrEqual(node)
	case ast.GreaterOrEqual:
		return g.generateGreaterOrEqual(node)

	case ast.LogicalOr:
		return g.generateLogicalOr(node)
	case ast.LogicalAnd:
		return g.generateLogicalAnd(node)

	case ast.Assign:
		return g.generateAssign(node)
	case ast.AddAssign, ast.SubAssign, ast.MulAssign, ast.DivAssign,
		ast.ModAssign, ast.AndAssign, ast.OrAssign, ast.XorAssign,
		ast.ShlAssign, ast.ShrAssign:
		return g.generateCompoundAssign(node)

	case ast.If:
		return g.generateIf(node)

	case ast.Call:
		return g.generateCall(node)
	case ast.Builtin:
		return g.generateBuiltin(node)

	case ast.Variable:
		return g.generateVariable(node)

	case ast.While:
		g.generateWhile(node)
		return 0
	case ast.Do:
		g.generateDo(node)
		return 0
	case ast.For:
		g.generateFor(node)
		return 0
	case ast.Switch:
		g.generateSwitch(node)
		return 0
	case ast.Break:
		g.generateBreak(node)
		return 0
	case ast.Continue:
		g.generateContinue(node)
		return 0
	case ast.Return:
		g.generateReturn(node)
		return 0
	case ast.Goto:
		g.generateGoto(node)
		return 0
	case ast.Label:
		g.generateLabel(node)
		return 0
	case ast.Case, ast.Default:
		g.generateCaseOrDefault(node)
		return 0
	}

	panic(fmt.Sprintf("codegen: unhandled node kind %v", node.Kind))
}

// generateSequence lowers a brace-delimited statement list or a comma
// expression (generate_sequence). Only the last child's value (if any) is
// kept, and only when the sequence is itself a value; earlier children are
// generated purely for side effect and their registers freed immediately.
func (g *Generator) generateSequence(node *ast.Node) ir.Register {
	if node.FirstChild == nil {
		return 0
	}
	for c := node.FirstChild; c != node.LastChild; c = c.RightSibling {
		reg := g.generateNode(c)
		if isValueKind(c) {
			g.freeReg(reg)
		}
	}
	last := node.LastChild
	reg := g.generateNode(last)
	if isValueKind(last) {
		if isValueKind(node) {
			return reg
		}
		g.freeReg(reg)
	}
	return 0
}

// isValueKind reports whether generating node leaves a register allocated
// that the caller must free. Every expression kind does except ast.If and
// ast.Sequence, each of which is shared between a statement form (always
// Void, never a value: the `if` statement, a compound statement) and an
// expression form (the ternary operator, a comma or statement expression) —
// the parser builds the same node kind for both, distinguished only by
// node.Type.
func isValueKind(node *ast.Node) bool {
	switch node.Kind {
	case ast.While, ast.Do, ast.For, ast.Switch, ast.Break, ast.Continue,
		ast.Return, ast.Goto, ast.Label, ast.Case, ast.Default, ast.Noop,
		ast.Variable:
		return false
	case ast.If, ast.Sequence:
		return node.Type != nil && !node.Type.MatchesBase(types.Void)
	}
	return true
}

func (g *Generator) generateVariable(node *ast.Node) ir.Register {
	// A static local's initializer runs once, from its synthetic
	// constructor function (GenerateStaticInitializer), never on ordinary
	// entry into the enclosing block.
	if node.Symbol.IsGlobal() && node.Symbol != g.staticInitTarget {
		return 0
	}
	if node.FirstChild != nil {
		g.generateLocalInitializer(node.Symbol, node.FirstChild)
	}
	return 0
}
