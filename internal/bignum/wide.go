// Package bignum implements the 64-bit arithmetic kernel used by the
// constant evaluator and the code generator's long-long lowering.
//
// The original Onramp compiler this backend is modeled on bootstraps on a
// 32-bit-only host, so its u64_t delegates every operation to a pair of
// 32-bit words when native 64-bit arithmetic isn't available. Go guarantees
// a native 64-bit integer on every platform it targets, so Wide is just a
// typed wrapper: the dual-path bootstrap shim doesn't apply here (see
// DESIGN.md, Open Question resolutions).
package bignum

// Wide is an opaque 64-bit value supporting both signed and unsigned
// interpretations, matching the operations a C `long long`/`unsigned long
// long` constant or runtime value needs.
type Wide struct {
	bits uint64
}

// Zero returns the zero value.
func Zero() Wide { return Wide{} }

// FromU32 builds a Wide from a 32-bit unsigned value, zero-extended.
func FromU32(v uint32) Wide { return Wide{bits: uint64(v)} }

// FromU64 builds a Wide directly from a 64-bit unsigned value.
func FromU64(v uint64) Wide { return Wide{bits: v} }

// FromI64 builds a Wide from a 64-bit signed value (bit-reinterpreted).
func FromI64(v int64) Wide { return Wide{bits: uint64(v)} }

// Low returns the low 32 bits.
func (w Wide) Low() uint32 { return uint32(w.bits) }

// High returns the high 32 bits.
func (w Wide) High() uint32 { return uint32(w.bits >> 32) }

// U64 returns the unsigned 64-bit interpretation.
func (w Wide) U64() uint64 { return w.bits }

// I64 returns the signed 64-bit interpretation.
func (w Wide) I64() int64 { return int64(w.bits) }

// IsTruthy reports whether the value is nonzero.
func (w Wide) IsTruthy() bool { return w.bits != 0 }

func (w Wide) Add(o Wide) Wide { return Wide{bits: w.bits + o.bits} }
func (w Wide) Sub(o Wide) Wide { return Wide{bits: w.bits - o.bits} }
func (w Wide) Mul(o Wide) Wide { return Wide{bits: w.bits * o.bits} }

// DivU and ModU are unsigned division/modulo. The caller must guard against
// division by zero; like the original, this is undefined behaviour here
// and will panic rather than silently produce a value.
func (w Wide) DivU(o Wide) Wide { return Wide{bits: w.bits / o.bits} }
func (w Wide) ModU(o Wide) Wide { return Wide{bits: w.bits % o.bits} }

// DivS and ModS are signed division/modulo.
func (w Wide) DivS(o Wide) Wide { return Wide{bits: uint64(w.I64() / o.I64())} }
func (w Wide) ModS(o Wide) Wide { return Wide{bits: uint64(w.I64() % o.I64())} }

func (w Wide) And(o Wide) Wide { return Wide{bits: w.bits & o.bits} }
func (w Wide) Or(o Wide) Wide  { return Wide{bits: w.bits | o.bits} }
func (w Wide) Xor(o Wide) Wide { return Wide{bits: w.bits ^ o.bits} }
func (w Wide) Not() Wide       { return Wide{bits: ^w.bits} }
func (w Wide) Neg() Wide       { return Wide{bits: uint64(-w.I64())} }

// Shl shifts left by the low 6 bits of the shift amount, matching C's
// modulo-width shift-count behaviour for a 64-bit operand.
func (w Wide) Shl(shift uint) Wide  { return Wide{bits: w.bits << (shift & 63)} }
func (w Wide) ShrU(shift uint) Wide { return Wide{bits: w.bits >> (shift & 63)} }
func (w Wide) ShrS(shift uint) Wide { return Wide{bits: uint64(w.I64() >> (shift & 63))} }

func (w Wide) EqU(o Wide) bool { return w.bits == o.bits }
func (w Wide) LtU(o Wide) bool { return w.bits < o.bits }
func (w Wide) LeU(o Wide) bool { return w.bits <= o.bits }
func (w Wide) GtU(o Wide) bool { return w.bits > o.bits }
func (w Wide) GeU(o Wide) bool { return w.bits >= o.bits }
func (w Wide) LtS(o Wide) bool { return w.I64() < o.I64() }
func (w Wide) LeS(o Wide) bool { return w.I64() <= o.I64() }
func (w Wide) GtS(o Wide) bool { return w.I64() > o.I64() }
func (w Wide) GeS(o Wide) bool { return w.I64() >= o.I64() }
