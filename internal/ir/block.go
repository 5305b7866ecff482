package ir

// Block is a basic block: a straight-line run of instructions entered only
// at the top and exited only through its final jump or return
// (instruction.h/block.h's block_t, spec.md §4.9). Label is the numeric
// serial assigned to an anonymous block (the function's entry block
// included), or -1 when UserLabel is set instead — a block has at most one
// of the two naming schemes.
type Block struct {
	Label     int
	UserLabel string
	Inst      []Instruction
	Emitted   bool

	// DebugLoc, when non-nil, is stamped onto every instruction appended
	// from then on; the code generator updates it as it walks the tree in
	// debug-info mode and leaves it nil otherwise.
	DebugLoc *SourceLoc
}

// NewBlock allocates an anonymously-labeled block carrying the given serial
// (the caller draws serials from its own counter).
func NewBlock(label int) *Block {
	return &Block{Label: label}
}

// NewUserBlock allocates a block for a user-written C label (`goto` target),
// carrying the already-mangled assembly label text instead of a numeric
// serial.
func NewUserBlock(userLabel string) *Block {
	return &Block{Label: -1, UserLabel: userLabel}
}

// Append grows b's instruction vector by one, matching block_append's
// doubling-growth contract (Go's append already amortizes this; the name is
// kept for readers following along with the original).
func (b *Block) Append(inst Instruction) {
	if b.DebugLoc != nil && inst.Loc == nil {
		inst.Loc = b.DebugLoc
	}
	b.Inst = append(b.Inst, inst)
}

// SubRsp appends a stack-pointer-decrement instruction reserving n bytes
// (block_sub_rsp), skipping the instruction entirely when n is zero so an
// empty frame emits no dead arithmetic.
func (b *Block) SubRsp(n int32) {
	if n == 0 {
		return
	}
	b.AppendOpImm(OpSub, RSP, RSP, n)
}

// AddRsp appends a stack-pointer-increment instruction releasing n bytes
// (block_add_rsp).
func (b *Block) AddRsp(n int32) {
	if n == 0 {
		return
	}
	b.AppendOpImm(OpAdd, RSP, RSP, n)
}

// AppendOpImm emits a three-register ALU instruction whose third operand is
// an immediate, automatically falling back to an IMW-into-scratch-register
// sequence when the immediate doesn't fit an 8-bit mix byte
// (block_append_op_imm). The fallback IMW uses dst itself as the scratch
// register, so dst must not also be src.
func (b *Block) AppendOpImm(opcode Opcode, dst, src Register, imm int32) {
	b.AppendOpImmScratch(opcode, dst, src, imm, dst)
}

// AppendOpImmScratch is AppendOpImm with an explicit scratch register for
// the IMW fallback, needed when dst is also src: the IMW would otherwise
// overwrite src before it is read. scratch must differ from src.
func (b *Block) AppendOpImmScratch(opcode Opcode, dst, src Register, imm int32, scratch Register) {
	if FitsMixByte(int(imm)) {
		b.Append(Reg(opcode, int8(dst), int8(src), int8(imm)))
		return
	}
	b.Append(Imm(scratch, imm))
	b.Append(Reg(opcode, int8(dst), int8(src), int8(scratch)))
}

// EndsBlock reports whether opcode is a valid block terminator (every
// block must end with JMP or RET per spec.md §8's invariant; conditional
// jumps are not terminators because control falls through to the next
// block in source order when the predicate is false).
func EndsBlock(opcode Opcode) bool {
	return opcode == OpJmp || opcode == OpRet
}

// IsTerminated reports whether b's last instruction is a valid terminator.
func (b *Block) IsTerminated() bool {
	if len(b.Inst) == 0 {
		return false
	}
	return EndsBlock(b.Inst[len(b.Inst)-1].Opcode)
}
