package ir

import "testing"

func TestFitsMixByteBoundaries(t *testing.T) {
	cases := []struct {
		value int
		want  bool
	}{
		{-112, true},
		{-113, false},
		{127, true},
		{128, false},
		{0, true},
	}
	for _, c := range cases {
		if got := FitsMixByte(c.value); got != c.want {
			t.Errorf("FitsMixByte(%d) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestAppendOpImmDirect(t *testing.T) {
	b := NewBlock(0)
	b.AppendOpImm(OpAdd, R0, R0, 127)
	if len(b.Inst) != 1 {
		t.Fatalf("an in-range immediate should emit one instruction, got %d", len(b.Inst))
	}
	inst := b.Inst[0]
	if inst.Opcode != OpAdd || inst.Arg3 != 127 {
		t.Fatalf("got %+v", inst)
	}
}

func TestAppendOpImmFallback(t *testing.T) {
	b := NewBlock(0)
	b.AppendOpImm(OpAdd, R1, R0, 128)
	if len(b.Inst) != 2 {
		t.Fatalf("an out-of-range immediate should fall back to imw + op, got %d instructions", len(b.Inst))
	}
	if b.Inst[0].Opcode != OpImw || b.Inst[0].Number != 128 || b.Inst[0].Arg1 != int8(R1) {
		t.Fatalf("imw fallback: got %+v", b.Inst[0])
	}
	if b.Inst[1].Opcode != OpAdd || b.Inst[1].Arg3 != int8(R1) {
		t.Fatalf("op after fallback should read the scratch register, got %+v", b.Inst[1])
	}
}

func TestSubRspZeroIsElided(t *testing.T) {
	b := NewBlock(0)
	b.SubRsp(0)
	b.AddRsp(0)
	if len(b.Inst) != 0 {
		t.Fatalf("zero-byte stack adjustments must emit nothing, got %d instructions", len(b.Inst))
	}
}

func TestIsTerminated(t *testing.T) {
	b := NewBlock(0)
	if b.IsTerminated() {
		t.Fatal("an empty block is not terminated")
	}
	b.Append(Reg(OpJnz, int8(R0), 0, 0))
	if b.IsTerminated() {
		t.Fatal("a conditional jump is not a terminator: control falls through when false")
	}
	b.Append(Reg(OpRet, 0, 0, 0))
	if !b.IsTerminated() {
		t.Fatal("ret must terminate the block")
	}
}

func TestDebugLocStamping(t *testing.T) {
	b := NewBlock(0)
	b.Append(Reg(OpEnter, 0, 0, 0))
	loc := &SourceLoc{Filename: "a.c", Line: 3}
	b.DebugLoc = loc
	b.Append(Reg(OpRet, 0, 0, 0))
	if b.Inst[0].Loc != nil {
		t.Fatal("instructions appended before a location is set must carry none")
	}
	if b.Inst[1].Loc != loc {
		t.Fatal("instructions appended after a location is set must carry it")
	}
}
