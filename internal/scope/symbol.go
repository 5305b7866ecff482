// Package scope implements the lexical scope stack and symbol/tag tables
// of spec.md §4.5: a chain of scopes from global down to the innermost
// block, each holding ordinary-identifier symbols and a separate
// (namespace, name)-keyed table for typedefs, tags and prototype-only
// struct/union/enum definitions.
package scope

import (
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// Kind classifies what a Symbol denotes (symbol.h's symbol_kind_t).
type Kind int

const (
	KindVariable Kind = iota
	KindFunction
	KindConstant
	KindBuiltin
)

// Builtin identifies one of the handful of compiler-magic identifiers that
// have no ordinary type and are lowered specially by the code generator
// (spec.md §4.9's builtin handling: va_start/va_arg/va_end/va_copy/__func__).
type Builtin int

const (
	BuiltinNone Builtin = iota
	BuiltinVAArg
	BuiltinVAStart
	BuiltinVAEnd
	BuiltinVACopy
	BuiltinFunc
)

// Linkage is the C storage-duration/linkage classification (symbol.h's
// symbol_linkage_t).
type Linkage int

const (
	LinkageNone Linkage = iota
	LinkageInternal
	LinkageExternal
)

// Symbol is a variable, function, constant or builtin (symbol.h's
// symbol_t). The original reference-counts symbols because a symbol may
// be reachable from both a scope table and an AST node; Go's GC makes that
// unnecessary, so Symbol carries no refcount.
type Symbol struct {
	Kind    Kind
	Type    *types.Type // nil only for KindBuiltin
	Tok     *token.Token
	Name    string
	AsmName string // mangled/global assembly name; equals Name for locals

	// Offset is this symbol's position in its function's stack frame
	// (negative for locals and for register-passed parameters, which are
	// spilled below the frame pointer; positive for stack-passed incoming
	// arguments); meaningless for symbols with linkage.
	Offset int

	Linkage Linkage

	IsWeak      bool
	IsDefined   bool
	IsTentative bool

	// IsExtern records that the symbol's latest declaration carried the
	// `extern` storage class, which the redeclaration rules treat differently
	// from a plain external-linkage definition: a later non-extern
	// declaration replaces an extern one, never the other way around.
	IsExtern bool

	IsConstructor   bool
	IsDestructor    bool
	ConstructorPrio int
	DestructorPrio  int

	Builtin Builtin

	// ConstValue holds the evaluated value of a KindConstant symbol (an
	// enumeration constant), as a signed 64-bit value per the consteval
	// package's wide-integer representation.
	ConstValue int64
}

// IsGlobal reports whether the symbol has any form of linkage.
func (s *Symbol) IsGlobal() bool { return s.Linkage != LinkageNone }

// NewSymbol creates a symbol of the given kind and type. asmName may be
// empty, in which case the symbol's C name is used as its assembly name
// (symbol_new's "asm_name ? asm_name : name" fallback).
func NewSymbol(kind Kind, typ *types.Type, tok *token.Token, name, asmName string) *Symbol {
	if asmName == "" {
		asmName = name
	}
	return &Symbol{Kind: kind, Type: typ, Tok: tok, Name: name, AsmName: asmName}
}

// builtinNames lists the compiler-magic identifiers installed into the
// global scope at startup (symbol_create_builtins).
var builtinNames = []struct {
	name    string
	builtin Builtin
}{
	{"__builtin_va_arg", BuiltinVAArg},
	{"__builtin_va_start", BuiltinVAStart},
	{"__builtin_va_end", BuiltinVAEnd},
	{"__builtin_va_copy", BuiltinVACopy},
	{"__func__", BuiltinFunc},
	{"__FUNCTION__", BuiltinFunc},
}

// InstallBuiltins registers every compiler-magic identifier into the
// global scope.
func InstallBuiltins(global *Scope) {
	for _, b := range builtinNames {
		sym := &Symbol{Kind: KindBuiltin, Name: b.name, AsmName: b.name, Builtin: b.builtin}
		global.AddSymbol(sym)
	}
}
