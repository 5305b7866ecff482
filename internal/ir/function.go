package ir

import "github.com/onramp-go/cci/internal/types"

// Function is one function's lowered form (spec.md §3's "Function IR"):
// the ordered list of basic blocks the code generator built walking its
// AST, ready for the emitter to print.
type Function struct {
	Type    *types.Type
	Name    string
	AsmName string

	Blocks []*Block

	// VariadicOffset is the stack delta, above the frame pointer, at which
	// the first variadic argument lives; only meaningful when Type.IsVariadic.
	VariadicOffset int32

	Linkage       FunctionLinkage
	IsWeak        bool
	IsConstructor bool
	IsDestructor  bool
	Priority      int
}

// FunctionLinkage mirrors scope.Linkage without importing internal/scope
// (ir sits below scope/codegen in the dependency order); codegen maps
// scope.Linkage to this when building a Function.
type FunctionLinkage int

const (
	LinkageNone FunctionLinkage = iota
	LinkageInternal
	LinkageExternal
)

// NewFunction creates an empty function ready to receive blocks.
func NewFunction(typ *types.Type, name, asmName string) *Function {
	return &Function{Type: typ, Name: name, AsmName: asmName}
}

// AddBlock appends a newly-allocated block to f and returns it.
func (f *Function) AddBlock(b *Block) *Block {
	f.Blocks = append(f.Blocks, b)
	return b
}
