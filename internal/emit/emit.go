// Package emit implements the textual assembly writer of spec.md §4.11: it
// renders ir.Functions into Onramp assembly, lays blocks out depth-first
// along unconditional jumps when optimization is on (eliding the jump when
// its target lands immediately after), chunks string literals into
// quoted-printable runs plus hex-quoted bytes, and compresses #line
// directives down to `#` continuations where it can.
package emit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/types"
)

const asmIndent = "  "

// Emitter writes one translation unit's assembly output. It is a thin
// stateful wrapper over a buffered writer: the only cross-call state is the
// last-emitted source location, used to compress #line directives
// (emit.c's current_location).
type Emitter struct {
	w        *bufio.Writer
	Optimize bool

	loc *ir.SourceLoc
}

// New creates an emitter writing to w. optimize enables depth-first block
// layout with trailing-jump elision; off, blocks emit in construction order
// with every jump explicit.
func New(w io.Writer, optimize bool) *Emitter {
	return &Emitter{w: bufio.NewWriter(w), Optimize: optimize}
}

// Preamble writes the fixed output header (emit_init): the assembler is
// told line directives are managed manually from here on.
func (e *Emitter) Preamble() {
	e.cstr("#line manual\n")
	e.GlobalDivider()
}

// Flush drains the buffered writer; call once at end of compilation
// (emit_destroy).
func (e *Emitter) Flush() error {
	return e.w.Flush()
}

func (e *Emitter) char(c byte)     { e.w.WriteByte(c) }
func (e *Emitter) cstr(s string)   { e.w.WriteString(s) }
func (e *Emitter) number(n int)    { fmt.Fprintf(e.w, "%d", n) }
func (e *Emitter) hexNumber(n int) { fmt.Fprintf(e.w, "%X", n) }

// GlobalDivider separates top-level definitions with blank lines
// (emit_global_divider).
func (e *Emitter) GlobalDivider() {
	e.cstr("\n\n\n")
}

// registerNames maps the 0x80-0x8F operand encodings to their assembly
// spellings (emit.c's register_name).
var registerNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9",
	"ra", "rb", "rsp", "rfp", "rpp", "rip",
}

// argMix renders one mix-byte operand: register ids occupy the int8 range
// [-128, -113] (0x80-0x8F), everything else is a plain signed immediate
// (emit_arg_mix).
func (e *Emitter) argMix(b int8) {
	if b <= -0x71 {
		e.char(' ')
		e.cstr(registerNames[int(uint8(b))-0x80])
		return
	}
	e.argNumber(int(b))
}

func (e *Emitter) argNumber(n int) {
	e.char(' ')
	e.number(n)
}

// argInvocation renders a `<sigil><label>` operand for a fixed symbol name
// (emit_arg_invocation); argInvocationPrefix does the same for a generated
// prefix+hex-serial label.
func (e *Emitter) argInvocation(sigil byte, label string) {
	e.char(' ')
	e.char(sigil)
	e.cstr(label)
}

func (e *Emitter) argInvocationPrefix(sigil byte, prefix string, number int) {
	e.char(' ')
	e.char(sigil)
	e.cstr(prefix)
	e.hexNumber(number)
}

// opcodeNames maps ir.Opcode to its assembly mnemonic
// (instruction.c's opcode_to_string).
var opcodeNames = map[ir.Opcode]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul",
	ir.OpDivU: "divu", ir.OpDivS: "divs", ir.OpModU: "modu", ir.OpModS: "mods",
	ir.OpZero: "zero", ir.OpInc: "inc", ir.OpDec: "dec",
	ir.OpSxs: "sxs", ir.OpSxb: "sxb", ir.OpTrs: "trs", ir.OpTrb: "trb",
	ir.OpAnd: "and", ir.OpOr: "or", ir.OpXor: "xor", ir.OpNot: "not",
	ir.OpShl: "shl", ir.OpShrU: "shru", ir.OpShrS: "shrs",
	ir.OpRol: "rol", ir.OpRor: "ror",
	ir.OpMov: "mov", ir.OpBool: "bool", ir.OpIsz: "isz",
	ir.OpLdw: "ldw", ir.OpLds: "lds", ir.OpLdb: "ldb",
	ir.OpStw: "stw", ir.OpSts: "sts", ir.OpStb: "stb",
	ir.OpPush: "push", ir.OpPop: "pop", ir.OpPopd: "popd",
	ir.OpImw: "imw", ir.OpCmpU: "cmpu", ir.OpCmpS: "cmps",
	ir.OpJz: "jz", ir.OpJnz: "jnz", ir.OpJl: "jl", ir.OpJg: "jg",
	ir.OpJle: "jle", ir.OpJge: "jge", ir.OpJmp: "jmp",
	ir.OpCall: "call", ir.OpRet: "ret",
	ir.OpEnter: "enter", ir.OpLeave: "leave", ir.OpSys: "sys",
}

// invocation renders an instruction's symbolic target with the sigil the
// opcode's addressing flavour calls for: jumps are short relative (`&`)
// references within the current function, calls and imw address a symbol
// absolutely (`^`).
func (e *Emitter) invocation(inst *ir.Instruction, sigil byte) {
	if inst.ArgType == ir.ArgName {
		e.argInvocation(sigil, inst.InvocationLabel)
		return
	}
	e.argInvocationPrefix(sigil, inst.InvocationPrefix, inst.InvocationNumber)
}

// instruction renders one instruction line, indented, with its operand
// class decided by opcode exactly as instruction_emit does.
func (e *Emitter) instruction(inst *ir.Instruction) {
	if inst.Opcode == ir.OpNop {
		return
	}
	if inst.Loc != nil {
		e.sourceLocation(inst.Loc)
	}
	e.cstr(asmIndent)

	if inst.Opcode == ir.OpValue {
		// A bare jump-table value, no mnemonic.
		e.number(int(inst.Number))
		e.char('\n')
		return
	}

	e.cstr(opcodeNames[inst.Opcode])

	switch inst.Opcode {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDivU, ir.OpDivS, ir.OpModU,
		ir.OpModS, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpShrU,
		ir.OpShrS, ir.OpRol, ir.OpRor, ir.OpLdw, ir.OpLds, ir.OpLdb,
		ir.OpStw, ir.OpSts, ir.OpStb, ir.OpCmpU, ir.OpCmpS, ir.OpSys:
		e.argMix(inst.Arg1)
		e.argMix(inst.Arg2)
		e.argMix(inst.Arg3)

	case ir.OpSxs, ir.OpSxb, ir.OpTrs, ir.OpTrb, ir.OpNot, ir.OpMov,
		ir.OpBool, ir.OpIsz:
		e.argMix(inst.Arg1)
		e.argMix(inst.Arg2)

	case ir.OpZero, ir.OpInc, ir.OpDec, ir.OpPush, ir.OpPop:
		e.argMix(inst.Arg1)

	case ir.OpPopd, ir.OpRet, ir.OpEnter, ir.OpLeave:
		// no operands

	case ir.OpImw:
		e.argMix(inst.Arg1)
		if inst.ArgType == ir.ArgNumber {
			e.argNumber(int(inst.Number))
		} else {
			e.invocation(inst, '^')
		}

	case ir.OpJz, ir.OpJnz, ir.OpJl, ir.OpJg, ir.OpJle, ir.OpJge:
		e.argMix(inst.Arg1)
		e.invocation(inst, '&')

	case ir.OpJmp:
		e.invocation(inst, '&')

	case ir.OpCall:
		// An indirect call's target is a plain register operand rather than
		// a symbol.
		if inst.ArgType == ir.ArgNumber && inst.InvocationLabel == "" {
			e.argMix(inst.Arg1)
		} else {
			e.invocation(inst, '^')
		}
	}

	e.char('\n')
}

// labelDef writes a `:label` definition line for a block.
func (e *Emitter) labelDef(b *ir.Block) {
	if b.Label != -1 {
		e.char(':')
		e.cstr("_Lx")
		e.hexNumber(b.Label)
		e.char('\n')
	}
	if b.UserLabel != "" {
		e.char(':')
		e.cstr(b.UserLabel)
		e.char('\n')
	}
}

// emitBlocks emits block and, when optimization is on, chases unconditional
// jumps depth-first so the trailing jmp of each block can be elided when
// its target is laid out immediately after (emit_blocks). This assumes all
// branches not taken for layout purposes; it shrinks code at the potential
// cost of moving hot branch targets out of line.
func (e *Emitter) emitBlocks(fn *ir.Function, block *ir.Block) {
	for {
		block.Emitted = true
		e.labelDef(block)

		count := len(block.Inst)
		if count == 0 {
			panic("emit: a basic block cannot be empty")
		}
		last := &block.Inst[count-1]
		if !ir.EndsBlock(last.Opcode) {
			panic("emit: a basic block must end in jmp or ret")
		}

		var next *ir.Block
		if e.Optimize && last.Opcode == ir.OpJmp && last.ArgType == ir.ArgGenerated {
			for _, candidate := range fn.Blocks {
				if !candidate.Emitted && candidate.Label == last.InvocationNumber {
					next = candidate
					count--
					break
				}
			}
		}

		for i := 0; i < count; i++ {
			e.instruction(&block.Inst[i])
		}

		if next == nil {
			return
		}
		block = next
	}
}

// EmitFunction writes one function definition: the linkage sigil line
// (`@name` internal, `=name` external, with optional `?` weak and
// `{`/`}` constructor/destructor priority flags) followed by its blocks
// (emit_function).
func (e *Emitter) EmitFunction(fn *ir.Function) {
	if fn.Linkage == ir.LinkageInternal {
		e.char('@')
	} else {
		e.char('=')
	}
	if fn.IsWeak {
		e.char('?')
	}
	if fn.IsConstructor {
		e.char('{')
		if fn.Priority >= 0 {
			e.number(fn.Priority)
		}
	}
	if fn.IsDestructor {
		e.char('}')
		if fn.Priority >= 0 {
			e.number(fn.Priority)
		}
	}
	e.cstr(fn.AsmName)
	e.char('\n')

	for _, b := range fn.Blocks {
		if !b.Emitted {
			e.emitBlocks(fn, b)
		}
	}
	e.GlobalDivider()
}

// EmitGlobalVariable writes a zero-filled storage definition for a global
// or static variable (generate_static_variable's data half; the linker has
// no zero-fill directive, so the words are written out literally, sixteen
// per line). Any initializer runs from a synthetic constructor emitted
// separately.
func (e *Emitter) EmitGlobalVariable(sym *scope.Symbol) {
	if sym.Tok != nil {
		e.sourceLocation(&ir.SourceLoc{Filename: sym.Tok.DiagFilename(), Line: sym.Tok.Line})
	}
	if sym.Linkage == scope.LinkageInternal {
		e.char('@')
	} else {
		e.char('=')
	}
	e.cstr(sym.AsmName)

	words := (types.Size(sym.Type) + 3) / 4
	for i := uint32(0); i < words; i++ {
		if i%16 == 0 {
			e.char('\n')
			e.cstr(asmIndent)
		} else {
			e.char(' ')
		}
		e.char('0')
	}
	e.char('\n')
	e.GlobalDivider()
}

// isStringCharValid reports whether c may appear inside a quoted run in
// Onramp assembly: printable, and not the quote or backslash themselves
// (is_string_char_valid_assembly).
func isStringCharValid(c byte) bool {
	if c == '\\' || c == '"' {
		return false
	}
	return c >= 0x20 && c <= 0x7E
}

// stringLiteral writes str as alternating quoted printable runs and 'HH
// hex-quoted bytes (emit_string_literal).
func (e *Emitter) stringLiteral(str string) {
	open := false
	for i := 0; i < len(str); i++ {
		c := str[i]
		valid := isStringCharValid(c)
		if valid != open {
			e.char('"')
			open = !open
		}
		if valid {
			e.char(c)
		} else {
			e.quotedByte(c)
		}
	}
	if open {
		e.char('"')
	}
}

func (e *Emitter) quotedByte(c byte) {
	fmt.Fprintf(e.w, "'%02X", c)
}

// EmitStringLiteral writes the storage for one string literal under its
// generated `_Sx<serial>` label, null terminator included (parse_string's
// on-the-fly emission, done here instead since parsing and emission are
// separate passes in this backend). String literals are always internal:
// the linker's garbage collection drops any that end up unreferenced.
func (e *Emitter) EmitStringLiteral(label int, data string) {
	e.char('@')
	e.cstr("_Sx")
	e.hexNumber(label)
	e.char('\n')
	e.cstr(asmIndent)
	e.stringLiteral(data)
	e.char('\n')
	e.cstr(asmIndent)
	e.quotedByte(0)
	e.char('\n')
	e.char('\n')
}

// sourceLocation writes the minimal #line directive that moves the
// assembler's notion of the current source position to loc
// (emit_source_location): nothing when the location hasn't changed, a bare
// `#` for the very next line, `#line N` for a jump within the same file,
// and the full `#line N "file"` form on a file change.
func (e *Emitter) sourceLocation(loc *ir.SourceLoc) {
	if loc == nil {
		return
	}
	switch {
	case e.loc == nil || e.loc.Filename != loc.Filename:
		fmt.Fprintf(e.w, "#line %d ", loc.Line)
		e.stringLiteral(loc.Filename)
		e.char('\n')
	case loc.Line == e.loc.Line:
		// nothing
	case loc.Line == e.loc.Line+1:
		e.cstr("#\n")
	default:
		fmt.Fprintf(e.w, "#line %d\n", loc.Line)
	}
	e.loc = loc
}
