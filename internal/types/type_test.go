package types

import (
	"testing"

	"github.com/onramp-go/cci/internal/token"
)

func TestIntegerRankOrdering(t *testing.T) {
	order := []Base{Bool, Char, SignedShort, SignedInt, SignedLong, SignedLongLong}
	for i := 1; i < len(order); i++ {
		lo := IntegerRank(NewBase(order[i-1]))
		hi := IntegerRank(NewBase(order[i]))
		if lo >= hi {
			t.Errorf("expected rank(%v) < rank(%v), got %d >= %d", order[i-1], order[i], lo, hi)
		}
	}
}

func TestUnsignedOfSigned(t *testing.T) {
	cases := map[Base]Base{
		SignedChar:     UnsignedChar,
		SignedShort:    UnsignedShort,
		SignedInt:      UnsignedInt,
		SignedLong:     UnsignedLong,
		SignedLongLong: UnsignedLongLong,
	}
	for signed, want := range cases {
		if got := UnsignedOfSigned(signed); got != want {
			t.Errorf("UnsignedOfSigned(%v) = %v, want %v", signed, got, want)
		}
	}
}

func TestBaseSizeTable(t *testing.T) {
	cases := []struct {
		base Base
		size uint32
	}{
		{Bool, 1}, {Char, 1},
		{SignedShort, 2}, {UnsignedShort, 2},
		{SignedInt, 4}, {Float, 4}, {Enum, 4},
		{SignedLongLong, 8}, {Double, 8}, {LongDouble, 8},
	}
	for _, c := range cases {
		if got := Size(NewBase(c.base)); got != c.size {
			t.Errorf("Size(%v) = %d, want %d", c.base, got, c.size)
		}
	}
}

func TestAlignmentNeverExceedsWordSize(t *testing.T) {
	if got := Alignment(NewBase(SignedLongLong)); got != 4 {
		t.Errorf("Alignment(long long) = %d, want 4", got)
	}
	if got := Alignment(NewBase(Double)); got != 4 {
		t.Errorf("Alignment(double) = %d, want 4", got)
	}
	if got := Alignment(NewBase(SignedShort)); got != 2 {
		t.Errorf("Alignment(short) = %d, want 2", got)
	}
}

func TestPointerSizeAndAlignment(t *testing.T) {
	p := NewPointer(NewBase(SignedInt), false, false, false)
	if Size(p) != 4 {
		t.Errorf("Size(pointer) = %d, want 4", Size(p))
	}
	if Alignment(p) != 4 {
		t.Errorf("Alignment(pointer) = %d, want 4", Alignment(p))
	}
}

func TestArraySizeMultipliesElement(t *testing.T) {
	arr := NewArray(NewBase(SignedInt), 10)
	if got := Size(arr); got != 40 {
		t.Errorf("Size(int[10]) = %d, want 40", got)
	}
	if got := Alignment(arr); got != 4 {
		t.Errorf("Alignment(int[10]) = %d, want 4", got)
	}
}

func TestIsPassedIndirectly(t *testing.T) {
	if !IsPassedIndirectly(NewBase(Double)) {
		t.Error("double must be passed indirectly")
	}
	if !IsPassedIndirectly(NewBase(SignedLongLong)) {
		t.Error("long long must be passed indirectly")
	}
	if IsPassedIndirectly(NewBase(SignedInt)) {
		t.Error("int must be passed in a register")
	}
	if IsPassedIndirectly(NewPointer(NewBase(SignedInt), false, false, false)) {
		t.Error("pointers must be passed in a register")
	}

	small := NewRecordType("pair", true)
	small.AppendMember(nil, "a", NewBase(SignedShort))
	small.AppendMember(nil, "b", NewBase(SignedShort))
	small.Define()
	if IsPassedIndirectly(TypeFromRecord(small)) {
		t.Error("a 4-byte record must be passed in a register")
	}

	big := NewRecordType("triple", true)
	big.AppendMember(nil, "a", NewBase(SignedInt))
	big.AppendMember(nil, "b", NewBase(SignedInt))
	big.Define()
	if !IsPassedIndirectly(TypeFromRecord(big)) {
		t.Error("an 8-byte record must be passed indirectly")
	}
}

func TestQualifyIsIdempotentAndSharesUnqualified(t *testing.T) {
	base := NewBase(SignedInt)
	qualified := Qualify(base, true, false)
	if qualified == base {
		t.Fatal("Qualify must return a new Type when adding a qualifier")
	}
	if !qualified.IsConst {
		t.Fatal("expected IsConst to be set")
	}
	again := Qualify(qualified, true, false)
	if again != qualified {
		t.Error("Qualify must return the same Type when no new qualifier is added")
	}
}

func TestEqualDistinguishesQualifiers(t *testing.T) {
	plain := NewBase(SignedInt)
	constInt := Qualify(plain, true, false)
	if Equal(plain, constInt) {
		t.Error("const int must not Equal int")
	}
	if !EqualUnqual(plain, constInt) {
		t.Error("int and const int must be EqualUnqual")
	}
}

func TestEqualOnFunctionTypes(t *testing.T) {
	intT := NewBase(SignedInt)
	f1 := NewFunction(intT, []*Type{intT, intT}, []*token.Token{nil, nil}, false, nil)
	f2 := NewFunction(intT, []*Type{intT, intT}, []*token.Token{nil, nil}, false, nil)
	f3 := NewFunction(intT, []*Type{intT}, []*token.Token{nil}, false, nil)
	if !Equal(f1, f2) {
		t.Error("structurally identical function types must be Equal")
	}
	if Equal(f1, f3) {
		t.Error("function types with different arities must not be Equal")
	}
}

func TestCompatibleVoidPointer(t *testing.T) {
	voidPtr := NewPointer(NewBase(Void), false, false, false)
	intPtr := NewPointer(NewBase(SignedInt), false, false, false)
	if !Compatible(voidPtr, intPtr) {
		t.Error("void* must be compatible with int*")
	}
	charPtr := NewPointer(NewBase(Char), false, false, false)
	if Compatible(intPtr, charPtr) {
		t.Error("int* must not be compatible with char*")
	}
}

func TestCompatibleEnumAndInt(t *testing.T) {
	e := TypeFromEnum(NewEnumType("color"))
	i := NewBase(SignedInt)
	if !Compatible(e, i) {
		t.Error("enum must be compatible with int")
	}
}

func TestDecayArrayAndFunction(t *testing.T) {
	arr := NewArray(NewBase(SignedInt), 3)
	decayed := Decay(arr)
	if !decayed.IsDeclarator || decayed.Declarator != Pointer {
		t.Fatal("array must decay to a pointer")
	}
	if !Equal(decayed.Ref, NewBase(SignedInt)) {
		t.Error("decayed array pointer must point to the element type")
	}

	intT := NewBase(SignedInt)
	fn := NewFunction(intT, nil, nil, false, nil)
	decayedFn := Decay(fn)
	if !decayedFn.IsDeclarator || decayedFn.Declarator != Pointer || !decayedFn.Ref.IsFunction() {
		t.Fatal("function must decay to a pointer to itself")
	}
}

func TestRecordAnonymousMemberPromotion(t *testing.T) {
	inner := NewRecordType("", true)
	inner.AppendMember(nil, "x", NewBase(SignedInt))
	inner.AppendMember(nil, "y", NewBase(SignedInt))
	inner.Define()

	outer := NewRecordType("point3", true)
	outer.AppendMember(nil, "tag", NewBase(SignedInt))
	outer.AppendMember(nil, "", TypeFromRecord(inner))
	outer.Define()

	m, ok := outer.Find("x")
	if !ok {
		t.Fatal("expected anonymous member x to be promoted")
	}
	if m.Offset != 4 {
		t.Errorf("promoted member x offset = %d, want 4 (rebased past tag)", m.Offset)
	}
}

func TestRecordUnionSharesOffsetZero(t *testing.T) {
	u := NewRecordType("u", false)
	u.AppendMember(nil, "i", NewBase(SignedInt))
	u.AppendMember(nil, "c", NewBase(Char))
	u.Define()
	for _, m := range u.Members {
		if m.Offset != 0 {
			t.Errorf("union member %s offset = %d, want 0", m.Name, m.Offset)
		}
	}
	if u.Size != 4 {
		t.Errorf("union size = %d, want 4 (size of largest member)", u.Size)
	}
}

func TestRecordBitFieldsPackIntoSameUnit(t *testing.T) {
	r := NewRecordType("flags", true)
	a := r.AppendBitField(nil, "a", NewBase(UnsignedInt), 3)
	b := r.AppendBitField(nil, "b", NewBase(UnsignedInt), 5)
	if a.Offset != b.Offset {
		t.Fatalf("adjacent bit-fields should share a storage unit: a@%d b@%d", a.Offset, b.Offset)
	}
	if b.BitOffset != 3 {
		t.Errorf("second bit-field BitOffset = %d, want 3", b.BitOffset)
	}
	if r.Size != 4 {
		t.Errorf("record size after two small bit-fields = %d, want 4", r.Size)
	}
}

func TestEnumValueSequencing(t *testing.T) {
	e := NewEnumType("color")
	e.Append(nil, "red", e.NextValue())
	e.Append(nil, "green", e.NextValue())
	e.Append(nil, "blue", 10)
	e.Append(nil, "indigo", e.NextValue())

	want := map[string]int64{"red": 0, "green": 1, "blue": 10, "indigo": 11}
	for name, v := range want {
		c, ok := e.Find(name)
		if !ok {
			t.Fatalf("expected constant %q", name)
		}
		if c.Value != v {
			t.Errorf("%s = %d, want %d", name, c.Value, v)
		}
	}
}
