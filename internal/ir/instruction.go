// Package ir implements the intermediate representation the code
// generator emits into and the emitter reads from (spec.md §4.9): basic
// blocks of three-operand assembly instructions for the Onramp-style
// register/memory virtual machine.
package ir

// Opcode enumerates every real and "virtual" instruction the generator can
// emit, matching instruction.h's opcode_t in order. NOP and VALUE are
// virtual: NOP emits nothing (used to delete an instruction during a later
// optimization pass) and VALUE is a bare value with no opcode, used for a
// switch statement's jump table entries.
type Opcode int

const (
	OpNop Opcode = iota
	OpValue

	OpAdd
	OpSub
	OpMul
	OpDivU
	OpDivS
	OpModU
	OpModS
	OpZero
	OpInc
	OpDec
	OpSxs
	OpSxb
	OpTrs
	OpTrb

	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShrU
	OpShrS
	OpRol
	OpRor
	OpMov
	OpBool
	OpIsz

	OpLdw
	OpLds
	OpLdb
	OpStw
	OpSts
	OpStb
	OpPush
	OpPop
	OpPopd

	OpImw
	OpCmpU
	OpCmpS
	OpJz
	OpJnz
	OpJl
	OpJg
	OpJle
	OpJge
	OpJmp
	OpCall
	OpRet
	OpEnter
	OpLeave
	OpSys
)

// Register identifies one of the sixteen architectural registers by its
// Onramp encoding (instruction.h's R0..RIP #defines): r0-r9 and ra/rb are
// general purpose, rsp/rfp/rpp/rip are special-purpose.
type Register int8

const (
	R0 Register = -0x80 + iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	RA
	RB
	RSP
	RFP
	RPP
	RIP
)

// ArgType selects which of an instruction's alternate argument
// representations is in use for opcodes that can take either an immediate
// number, a named (global/external) symbol, or a compiler-generated label
// (instruction.h's instruction_argtypes_t).
type ArgType int

const (
	ArgNumber ArgType = iota
	ArgName
	ArgGenerated
)

// MinMixByte and MaxMixByte bound the signed range a register/mix-byte
// operand slot can directly encode (arg1/arg2/arg3 are int8, but register
// ids occupy 0x80-0x8F, so plain immediates are restricted to
// [-112, 127]). block_append_op_imm in the original tests a value against
// exactly this range before falling back to a temporary register loaded
// with IMW.
const (
	MinMixByte = -112
	MaxMixByte = 127
)

// FitsMixByte reports whether value can be encoded directly in an operand
// slot without a temporary register and an IMW.
func FitsMixByte(value int) bool {
	return value >= MinMixByte && value <= MaxMixByte
}

// SourceLoc is the file/line an instruction is attributed to when debug
// info is enabled. Without -g, instructions carry no location at all
// (instruction_vset drops the token immediately), which is what keeps the
// non-debug build's memory flat.
type SourceLoc struct {
	Filename string
	Line     int
}

// Instruction is one assembly instruction: an opcode plus up to three
// operand slots and, for CALL/JMP-like opcodes, an invocation target
// (instruction.h's instruction_t). Like ast.Node, this is a flat struct
// with fields meaningful only for certain opcodes/ArgTypes — Go has no
// tagged unions, so the unused-field cost is accepted rather than
// modelled with an interface per opcode.
type Instruction struct {
	Opcode  Opcode
	ArgType ArgType

	// Loc is the source location to emit a #line directive for, set only
	// in debug-info mode.
	Loc *SourceLoc

	Arg1, Arg2, Arg3 int8 // mix-byte operands: registers (0x80-0x8F) or small immediates

	// Invocation identifies a call/jump target when it is symbolic rather
	// than a plain mix-byte operand: InvocationLabel names a fixed external
	// symbol, or InvocationPrefix+InvocationNumber names a compiler-
	// generated one (e.g. a string literal or a switch jump table).
	InvocationLabel  string
	InvocationPrefix string
	InvocationNumber int

	// Number is the full-width immediate for opcodes like IMW that load a
	// 32-bit constant rather than fitting it in a mix byte.
	Number int32
}

// Reg builds an instruction whose operands are plain registers/mix-byte
// values (arg1, arg2, arg3 already resolved to their final int8 encoding).
func Reg(opcode Opcode, arg1, arg2, arg3 int8) Instruction {
	return Instruction{Opcode: opcode, Arg1: arg1, Arg2: arg2, Arg3: arg3}
}

// Imm builds an IMW-style instruction loading a full-width immediate into
// a register.
func Imm(reg Register, value int32) Instruction {
	return Instruction{Opcode: OpImw, ArgType: ArgNumber, Arg1: int8(reg), Number: value}
}

// ImmName builds an IMW instruction loading the address of a fixed named
// symbol (global variable or function) into reg, instead of a numeric
// immediate.
func ImmName(reg Register, name string) Instruction {
	return Instruction{Opcode: OpImw, ArgType: ArgName, Arg1: int8(reg), InvocationLabel: name}
}

// ImmGenerated builds an IMW instruction loading the address of a
// compiler-generated label (a string literal or a static initializer's
// synthetic function) into reg.
func ImmGenerated(reg Register, prefix string, number int) Instruction {
	return Instruction{Opcode: OpImw, ArgType: ArgGenerated, Arg1: int8(reg), InvocationPrefix: prefix, InvocationNumber: number}
}

// CallName builds a CALL (or JMP) instruction targeting a fixed external
// symbol name.
func CallName(opcode Opcode, name string) Instruction {
	return Instruction{Opcode: opcode, ArgType: ArgName, InvocationLabel: name}
}

// CallGenerated builds a CALL (or JMP) instruction targeting a compiler-
// generated label (prefix concatenated with a numeric suffix, e.g. a
// function-local block label).
func CallGenerated(opcode Opcode, prefix string, number int) Instruction {
	return Instruction{Opcode: opcode, ArgType: ArgGenerated, InvocationPrefix: prefix, InvocationNumber: number}
}

// CondJumpGenerated builds a conditional jump (JZ/JNZ/JL/JG/JLE/JGE) whose
// target is a compiler-generated label, with reg as the tested condition
// register (arg1).
func CondJumpGenerated(opcode Opcode, reg Register, prefix string, number int) Instruction {
	return Instruction{Opcode: opcode, ArgType: ArgGenerated, Arg1: int8(reg), InvocationPrefix: prefix, InvocationNumber: number}
}

// JumpName builds an unconditional JMP targeting a fixed label string, used
// for `goto` targets whose mangled name is already fully known (rather than
// a prefix+serial pair).
func JumpName(name string) Instruction {
	return CallName(OpJmp, name)
}
