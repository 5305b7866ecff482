// Package types implements the C type and record lattice of spec.md §4.4:
// a reference-counted-in-the-original, garbage-collected-here tree of base
// and declarator types with C17 integer rank, structural equality and
// compatibility, and the calling-convention predicate
// (type_is_passed_indirectly).
//
// The original implementation reference-counts every Type (and Record,
// Enum) because it has no garbage collector and types form a DAG that must
// be torn down deterministically. Go's GC already gives the DAG-with-no-
// cycles invariant from spec.md §5 for free, so Type carries no refcount —
// this is the idiomatic simplification DESIGN NOTES §9 calls out ("a GC
// language simply retains references").
package types

import "github.com/onramp-go/cci/internal/token"

// Base enumerates the primitive and composite base types of spec.md §3,
// matching type.h's base_t in declaration order (integer rank comes from
// IntegerRank's explicit switch, not from this order).
type Base int

const (
	Void Base = iota
	Bool
	Char // distinct from SignedChar per C17, even though char is signed here
	SignedChar
	UnsignedChar
	SignedShort
	UnsignedShort
	SignedInt
	UnsignedInt
	SignedLong
	UnsignedLong
	SignedLongLong
	UnsignedLongLong
	Float
	Double
	LongDouble
	Record
	Enum
	VaList
)

// Declarator enumerates the kinds of declarator element a Type can be.
type Declarator int

const (
	Pointer Declarator = iota
	Function
	Array
	VLA           // variable-length array
	Indeterminate // array of indeterminate length, e.g. `int x[]` as a parameter
)

// ProtoScope is an opaque handle to the scope captured by a function
// prototype (spec.md §3: "a scope reference holding the prototype's tag
// declarations"), so that re-entering a function definition after its
// prototype reuses the same scope. It is an interface rather than a
// concrete *scope.Scope to avoid an import cycle: internal/scope depends on
// internal/types for Symbol.Type, so types cannot import scope back.
type ProtoScope interface {
	ProtoScopeMarker()
}

// Type is an immutable node in the type DAG (spec.md §3). Exactly one of
// the "base" fields or the "declarator" fields is meaningful, selected by
// IsDeclarator — Go has no tagged unions, so the unused half of the struct
// is the accepted cost (the same flat-struct-with-unused-fields shape the
// teacher uses for inst.Instruction's Imm field).
type Type struct {
	IsDeclarator bool
	IsConst      bool
	IsVolatile   bool

	// Meaningful when !IsDeclarator.
	Base       Base
	RecordType *RecordType
	EnumType   *EnumType

	// Meaningful when IsDeclarator.
	Declarator Declarator
	IsRestrict bool
	IsVariadic bool
	Ref        *Type          // pointed-to / element / return type
	Count      uint32         // array length or argument count
	Args       []*Type        // function argument types
	Names      []*token.Token // function argument names, entries may be nil
	Proto      ProtoScope     // function prototype scope, nil for non-functions
}

// NewBase creates a primitive or composite base type.
func NewBase(base Base) *Type {
	return &Type{Base: base}
}

// TypeFromRecord creates a type wrapping a struct/union record.
func TypeFromRecord(r *RecordType) *Type {
	return &Type{Base: Record, RecordType: r}
}

// TypeFromEnum creates a type wrapping an enum.
func TypeFromEnum(e *EnumType) *Type {
	return &Type{Base: Enum, EnumType: e}
}

// NewPointer creates a pointer-to-ref type with the given qualifiers.
func NewPointer(ref *Type, isConst, isVolatile, isRestrict bool) *Type {
	return &Type{
		IsDeclarator: true,
		Declarator:   Pointer,
		Ref:          ref,
		IsConst:      isConst,
		IsVolatile:   isVolatile,
		IsRestrict:   isRestrict,
	}
}

// NewArray creates an array-of-count-elements-of-ref type.
func NewArray(ref *Type, count uint32) *Type {
	return &Type{IsDeclarator: true, Declarator: Array, Ref: ref, Count: count}
}

// NewIndeterminateArray creates an array of indeterminate length, e.g. the
// type of a parameter written as `int x[]`.
func NewIndeterminateArray(ref *Type) *Type {
	return &Type{IsDeclarator: true, Declarator: Indeterminate, Ref: ref}
}

// NewFunction creates a function type. names may contain nil entries for
// unnamed (abstract) parameters; proto is the captured prototype scope.
func NewFunction(ret *Type, args []*Type, names []*token.Token, variadic bool, proto ProtoScope) *Type {
	return &Type{
		IsDeclarator: true,
		Declarator:   Function,
		Ref:          ret,
		Count:        uint32(len(args)),
		Args:         args,
		Names:        names,
		IsVariadic:   variadic,
		Proto:        proto,
	}
}

// Qualify returns a copy of t with the additional given qualifiers OR'd in,
// or t itself if neither qualifier is newly set (type_qualify).
func Qualify(t *Type, isConst, isVolatile bool) *Type {
	if (!isConst || t.IsConst) && (!isVolatile || t.IsVolatile) {
		return t
	}
	clone := *t
	clone.IsConst = t.IsConst || isConst
	clone.IsVolatile = t.IsVolatile || isVolatile
	return &clone
}

// IsBase reports whether t is a base type (not a declarator).
func (t *Type) IsBase() bool { return !t.IsDeclarator }

// IsIndirection reports whether t is a pointer or array (of any kind).
func (t *Type) IsIndirection() bool {
	if !t.IsDeclarator {
		return false
	}
	switch t.Declarator {
	case Pointer, Array, VLA, Indeterminate:
		return true
	}
	return false
}

// IsArray reports whether t is any array declarator kind.
func (t *Type) IsArray() bool {
	return t.IsDeclarator && (t.Declarator == Array || t.Declarator == VLA || t.Declarator == Indeterminate)
}

// IsFunction reports whether t is a function type.
func (t *Type) IsFunction() bool { return t.IsDeclarator && t.Declarator == Function }

// IsCallable reports whether t is a function or a pointer to one.
func (t *Type) IsCallable() bool {
	if t.IsFunction() {
		return true
	}
	return t.IsDeclarator && t.Declarator == Pointer && t.Ref.IsFunction()
}

// PointedTo returns the referent type of a pointer or array.
func (t *Type) PointedTo() *Type {
	return t.Ref
}

// MatchesBase reports whether t is a base type equal to base.
func (t *Type) MatchesBase(base Base) bool {
	return !t.IsDeclarator && t.Base == base
}

// IsInteger reports whether t is one of the C integer types (bool, any
// char/short/int/long/long-long, or enum — C17 6.2.5.17).
func (t *Type) IsInteger() bool {
	if t.IsDeclarator {
		return false
	}
	switch t.Base {
	case Bool, Char, SignedChar, UnsignedChar, SignedShort, UnsignedShort,
		SignedInt, UnsignedInt, SignedLong, UnsignedLong,
		SignedLongLong, UnsignedLongLong, Enum:
		return true
	}
	return false
}

// IsArithmetic reports whether t is an integer or floating type.
func (t *Type) IsArithmetic() bool {
	if t.IsInteger() {
		return true
	}
	if t.IsDeclarator {
		return false
	}
	return t.Base == Float || t.Base == Double || t.Base == LongDouble
}

// IsInt reports whether t is exactly (signed or unsigned) int.
func (t *Type) IsInt() bool {
	return !t.IsDeclarator && (t.Base == SignedInt || t.Base == UnsignedInt)
}

// IsLongLong reports whether t is exactly (signed or unsigned) long long.
func (t *Type) IsLongLong() bool {
	return !t.IsDeclarator && (t.Base == SignedLongLong || t.Base == UnsignedLongLong)
}

// IsSignedInteger reports whether t is a signed (non-floating) integer type.
func (t *Type) IsSignedInteger() bool {
	if !t.IsInteger() {
		return false
	}
	switch t.Base {
	case Char, SignedChar, SignedShort, SignedInt, SignedLong, SignedLongLong:
		return true
	}
	return false
}

// IntegerRank implements the C17 6.3.1.1 rank ordering used by the usual
// arithmetic conversions and integer promotion.
func IntegerRank(t *Type) int {
	switch t.Base {
	case Bool:
		return 1
	case Char, SignedChar, UnsignedChar:
		return 2
	case SignedShort, UnsignedShort:
		return 3
	case SignedInt, UnsignedInt, Enum:
		return 4
	case SignedLong, UnsignedLong:
		return 5
	case SignedLongLong, UnsignedLongLong:
		return 6
	}
	panic("types: IntegerRank of a non-integer base")
}

// UnsignedOfSigned maps a signed integer base to its unsigned counterpart.
func UnsignedOfSigned(b Base) Base {
	switch b {
	case Char, SignedChar:
		return UnsignedChar
	case SignedShort:
		return UnsignedShort
	case SignedInt:
		return UnsignedInt
	case SignedLong:
		return UnsignedLong
	case SignedLongLong:
		return UnsignedLongLong
	}
	panic("types: UnsignedOfSigned of a non-signed base")
}

// BaseSize returns the byte size of a primitive base (void is 1 byte by the
// same GNU extension the original honours, for pointer arithmetic on
// void*); BASE_RECORD must be sized via RecordType.Size instead.
func BaseSize(b Base) uint32 {
	switch b {
	case Void, Bool, Char, SignedChar, UnsignedChar:
		return 1
	case SignedShort, UnsignedShort:
		return 2
	case SignedInt, UnsignedInt, SignedLong, UnsignedLong, Float, Enum, VaList:
		return 4
	case SignedLongLong, UnsignedLongLong, Double, LongDouble:
		return 8
	}
	panic("types: BaseSize of a record base")
}

// Size returns the byte size of t (sizeof semantics).
func Size(t *Type) uint32 {
	if t.IsBase() {
		if t.Base == Record {
			return t.RecordType.Size
		}
		return BaseSize(t.Base)
	}
	switch t.Declarator {
	case Pointer:
		return 4
	case Array:
		return t.Count * Size(t.Ref)
	case Function:
		panic("types: cannot take the size of a function")
	case VLA:
		panic("types: cannot take the compile-time size of a variable-length array")
	case Indeterminate:
		panic("types: cannot take the size of an array of indeterminate length")
	}
	panic("types: unreachable")
}

// wordSize is the machine word size of the target register machine.
const wordSize = 4

// Alignment returns the alignment of t: element alignment for arrays,
// recorded alignment for records, 4 for pointers, min(size, word-size) for
// everything else.
func Alignment(t *Type) uint32 {
	if t.IsDeclarator {
		switch t.Declarator {
		case Pointer:
			return 4
		case Array, VLA, Indeterminate:
			return Alignment(t.Ref)
		case Function:
			panic("types: cannot compute alignment of function type")
		}
	}
	if t.Base == Record {
		return t.RecordType.Alignment
	}
	size := Size(t)
	if size > wordSize {
		return wordSize
	}
	return size
}

// IsPassedIndirectly reports whether values of t are passed via a
// caller-allocated pointer rather than in a register (spec.md §4.4): 64-bit
// base types and records larger than one word. Arrays decay to pointers
// before this predicate is ever asked about them.
func IsPassedIndirectly(t *Type) bool {
	if t.IsDeclarator {
		return false
	}
	if t.Base == Double || t.Base == SignedLongLong || t.Base == UnsignedLongLong {
		return true
	}
	if t.Base == Record {
		return t.RecordType.Size > wordSize
	}
	return false
}

// Decay returns the pointer type an array or function type decays to when
// used as a value (node_decay's type-level half); any other type is
// returned unchanged.
func Decay(t *Type) *Type {
	if t.IsArray() {
		return NewPointer(t.Ref, false, false, false)
	}
	if t.IsFunction() {
		return NewPointer(t, false, false, false)
	}
	return t
}

func qualsMatch(a, b *Type) bool {
	return a.IsConst == b.IsConst && a.IsVolatile == b.IsVolatile
}

// Equal reports whether left and right are the same type, including
// qualifiers.
func Equal(left, right *Type) bool {
	return qualsMatch(left, right) && EqualUnqual(left, right)
}

// EqualUnqual reports whether left and right have the same structure,
// ignoring top-level qualifiers.
func EqualUnqual(left, right *Type) bool {
	if left.IsDeclarator != right.IsDeclarator {
		return false
	}
	if !left.IsDeclarator {
		if left.Base != right.Base {
			return false
		}
		if left.Base == Record {
			return left.RecordType == right.RecordType
		}
		if left.Base == Enum {
			return left.EnumType == right.EnumType
		}
		return true
	}
	if left.Declarator != right.Declarator {
		return false
	}
	switch left.Declarator {
	case Pointer:
		return left.IsRestrict == right.IsRestrict && Equal(left.Ref, right.Ref)
	case Array, VLA, Indeterminate:
		if left.Declarator == Array && left.Count != right.Count {
			return false
		}
		return Equal(left.Ref, right.Ref)
	case Function:
		if left.IsVariadic != right.IsVariadic || len(left.Args) != len(right.Args) {
			return false
		}
		if !Equal(left.Ref, right.Ref) {
			return false
		}
		for i := range left.Args {
			if !Equal(left.Args[i], right.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compatible reports whether left and right may be used interchangeably:
// type_equal plus the void* <-> any-pointer and enum <-> underlying-int
// relaxations.
func Compatible(left, right *Type) bool {
	return qualsMatch(left, right) && CompatibleUnqual(left, right)
}

// CompatibleUnqual is Compatible ignoring top-level qualifiers.
func CompatibleUnqual(left, right *Type) bool {
	if !left.IsDeclarator && !right.IsDeclarator {
		if left.Base == Enum && right.Base == SignedInt {
			return true
		}
		if right.Base == Enum && left.Base == SignedInt {
			return true
		}
	}
	if left.IsDeclarator && left.Declarator == Pointer &&
		right.IsDeclarator && right.Declarator == Pointer {
		if left.Ref.MatchesBase(Void) || right.Ref.MatchesBase(Void) {
			return true
		}
		return Compatible(left.Ref, right.Ref)
	}
	return EqualUnqual(left, right)
}
