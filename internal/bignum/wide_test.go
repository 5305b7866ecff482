package bignum

import "testing"

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  Wide
		want uint64
	}{
		{"add", FromU32(40).Add(FromU32(2)), 42},
		{"sub-wraps", FromU32(0).Sub(FromU32(1)), 0xFFFFFFFFFFFFFFFF},
		{"mul", FromU32(6).Mul(FromU32(7)), 42},
		{"shl", FromU32(1).Shl(40), 1 << 40},
		{"and", FromU64(0xFF00).And(FromU64(0x0FF0)), 0x0F00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.U64() != tt.want {
				t.Errorf("got %#x, want %#x", tt.got.U64(), tt.want)
			}
		})
	}
}

func TestSignedDivMod(t *testing.T) {
	a := FromI64(-7)
	b := FromI64(2)
	if got := a.DivS(b).I64(); got != -3 {
		t.Errorf("DivS: got %d, want -3", got)
	}
	if got := a.ModS(b).I64(); got != -1 {
		t.Errorf("ModS: got %d, want -1", got)
	}
}

func TestCompares(t *testing.T) {
	neg := FromI64(-1)
	one := FromU32(1)
	if neg.LtU(one) {
		t.Error("expected -1 (as unsigned, i.e. max uint64) to NOT be < 1")
	}
	if neg.GtS(one) {
		t.Error("expected -1 signed to NOT be > 1")
	}
	if !neg.LtS(FromI64(0)) {
		t.Error("expected -1 < 0 signed")
	}
}

func TestShiftWidthWraps(t *testing.T) {
	// C semantics: shifting a 64-bit value by 64 is undefined in C, but our
	// kernel normalizes the count modulo 64 like the hardware shift would.
	w := FromU64(1)
	if got := w.Shl(64).U64(); got != 1 {
		t.Errorf("Shl(64) should wrap to Shl(0): got %#x", got)
	}
}
