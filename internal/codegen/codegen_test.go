package codegen

import (
	"os"
	"strings"
	"testing"

	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/parser"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/strtab"
	"github.com/onramp-go/cci/internal/token"
)

func newTestDiag(t *testing.T) *diag.Diagnostics {
	t.Helper()
	_, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	d := diag.New(w)
	d.Exit = func(code int) { panic(code) }
	return d
}

// lowerFirstFunction parses src and generates IR for its first function
// definition.
func lowerFirstFunction(t *testing.T, src string) (*Generator, *ir.Function) {
	t.Helper()
	d := newTestDiag(t)
	strs := strtab.New()
	scopes := scope.NewStack()
	lex := token.New(strings.NewReader(src), "test.i", strs, func(file string, line int, format string, args ...any) {
		d.Fatalf(diag.Pos{Filename: file, Line: line}, format, args...)
	})
	p := parser.New(d, lex, scopes, strs, parser.Options{})
	g := New(d, strs, p.LabelCounter())

	for !p.AtEnd() {
		global := p.ParseGlobal()
		if global.Kind == parser.GlobalFunction {
			return g, g.GenerateFunction(global.Function)
		}
	}
	t.Fatal("source contained no function definition")
	return nil, nil
}

func allInstructions(fn *ir.Function) []ir.Instruction {
	var out []ir.Instruction
	for _, b := range fn.Blocks {
		out = append(out, b.Inst...)
	}
	return out
}

func countOpcode(fn *ir.Function, op ir.Opcode) int {
	n := 0
	for _, inst := range allInstructions(fn) {
		if inst.Opcode == op {
			n++
		}
	}
	return n
}

func TestEmptyMainShape(t *testing.T) {
	_, fn := lowerFirstFunction(t, "int main(void){}")
	if fn.AsmName != "main" || fn.Linkage != ir.LinkageExternal {
		t.Fatalf("got %q linkage %v", fn.AsmName, fn.Linkage)
	}
	inst := allInstructions(fn)
	if inst[0].Opcode != ir.OpEnter {
		t.Fatalf("a function must open with enter, got %v", inst[0].Opcode)
	}
	// main without an explicit return implicitly returns 0
	n := len(inst)
	if inst[n-3].Opcode != ir.OpZero || inst[n-3].Arg1 != int8(ir.R0) {
		t.Fatalf("main must zero r0 before returning, got %v", inst[n-3])
	}
	if inst[n-2].Opcode != ir.OpLeave || inst[n-1].Opcode != ir.OpRet {
		t.Fatalf("main must end leave/ret, got %v %v", inst[n-2].Opcode, inst[n-1].Opcode)
	}
}

func TestEveryBlockTerminates(t *testing.T) {
	_, fn := lowerFirstFunction(t, `
int f(int a, int b) {
	int s = 0;
	for (int i = 0; i < a; ++i) {
		if (i == 5) break;
		s = s + b;
	}
	return s;
}`)
	for i, b := range fn.Blocks {
		if !b.IsTerminated() {
			t.Fatalf("block %d does not end in jmp or ret", i)
		}
	}
}

func TestArithmeticFoldsLiteralIntoImmediate(t *testing.T) {
	_, fn := lowerFirstFunction(t, "int f(int a, int b){ return a*b+1; }")
	if countOpcode(fn, ir.OpMul) != 1 {
		t.Fatal("expected exactly one mul")
	}
	found := false
	for _, inst := range allInstructions(fn) {
		if inst.Opcode == ir.OpAdd && inst.Arg3 == 1 && inst.Arg1 == inst.Arg2 {
			found = true
		}
	}
	if !found {
		t.Fatal("adding a literal 1 must fold into the instruction's immediate slot")
	}
}

func TestRegisterAllocatorWrapsWithSpill(t *testing.T) {
	d := newTestDiag(t)
	label := 0
	g := New(d, strtab.New(), &label)
	g.fn = ir.NewFunction(nil, "t", "t")
	g.block = ir.NewBlock(0)
	g.fn.AddBlock(g.block)

	var regs []ir.Register
	for i := 0; i < 11; i++ {
		regs = append(regs, g.allocReg())
	}
	if regs[10] != ir.R0 {
		t.Fatalf("the 11th allocation must wrap back to r0, got %v", regs[10])
	}
	if countOpcode(g.fn, ir.OpPush) != 1 {
		t.Fatal("wrapping must spill the reused register with one push")
	}
	if g.regLoopCount != 1 {
		t.Fatalf("loop count = %d, want 1", g.regLoopCount)
	}

	for i := 10; i >= 0; i-- {
		g.freeReg(regs[i])
	}
	if countOpcode(g.fn, ir.OpPop) != 1 {
		t.Fatal("freeing the wrapped register must pop its spilled value")
	}
	if g.regDepth != 0 || g.regCursor != 0 {
		t.Fatalf("allocator must return to its initial state, depth=%d cursor=%d", g.regDepth, g.regCursor)
	}
}

func TestAllocatorBalancedAcrossGeneration(t *testing.T) {
	g, _ := lowerFirstFunction(t, `
int g(int x) {
	int total = 0;
	while (x) {
		total = total + x * (x + 1) * (x + 2);
		x = x - 1;
	}
	return total;
}`)
	if g.regDepth != 0 {
		t.Fatalf("register depth must be zero after generating a function, got %d", g.regDepth)
	}
}

func TestJumpTargetsResolveToBlocks(t *testing.T) {
	_, fn := lowerFirstFunction(t, `
void g(void) {
	for (int i = 0; i < 10; ++i) {
		if (i == 5) break;
	}
}`)
	// The break's jmp must target a generated label that some block in the
	// function actually carries.
	labels := map[int]bool{}
	for _, b := range fn.Blocks {
		labels[b.Label] = true
	}
	for _, inst := range allInstructions(fn) {
		if inst.Opcode == ir.OpJmp && inst.ArgType == ir.ArgGenerated && !labels[inst.InvocationNumber] {
			t.Fatalf("jump to label %d, which no block defines", inst.InvocationNumber)
		}
	}
}

func TestIndirectReturnReadsCallerPointer(t *testing.T) {
	_, fn := lowerFirstFunction(t, `
struct S { int a; int b; };
struct S h(void) { struct S s = {1, 2}; return s; }`)
	found := false
	for _, inst := range allInstructions(fn) {
		if inst.Opcode == ir.OpLdw && inst.Arg2 == int8(ir.RFP) && inst.Arg3 == 8 {
			found = true
		}
	}
	if !found {
		t.Fatal("an indirect return must load the caller's storage pointer from [rfp+8]")
	}
}

func TestVariadicOffsetAfterNamedParameters(t *testing.T) {
	_, fn := lowerFirstFunction(t, "int sum(int n, ...){ return n; }")
	// [rfp+0] saved rfp, [rfp+4] return address; n is register-passed, so
	// the first variadic argument is the first stack slot.
	if fn.VariadicOffset != 8 {
		t.Fatalf("variadic offset = %d, want 8", fn.VariadicOffset)
	}
}

func TestStaticInitializerFunctionShape(t *testing.T) {
	d := newTestDiag(t)
	strs := strtab.New()
	scopes := scope.NewStack()
	lex := token.New(strings.NewReader("int x = 5;"), "test.i", strs, func(file string, line int, format string, args ...any) {
		d.Fatalf(diag.Pos{Filename: file, Line: line}, format, args...)
	})
	p := parser.New(d, lex, scopes, strs, parser.Options{})
	g := New(d, strs, p.LabelCounter())

	global := p.ParseGlobal()
	if global.Kind != parser.GlobalVariable || global.Initializer == nil {
		t.Fatalf("expected an initialized global variable, got kind %v", global.Kind)
	}
	fn := g.GenerateStaticInitializer(global.Symbol, global.Initializer)

	if fn.Linkage != ir.LinkageInternal || !fn.IsConstructor || fn.Priority != 50 {
		t.Fatalf("initializer must be an internal constructor at priority 50, got %+v", fn)
	}
	if !strings.HasPrefix(fn.AsmName, "_Ix") || !strings.HasSuffix(fn.AsmName, "_x") {
		t.Fatalf("initializer name = %q, want _Ix<serial>_x", fn.AsmName)
	}
	// The body must store 5 through the variable's address.
	foundImw := false
	for _, inst := range allInstructions(fn) {
		if inst.Opcode == ir.OpImw && inst.ArgType == ir.ArgName && inst.InvocationLabel == "x" {
			foundImw = true
		}
	}
	if !foundImw {
		t.Fatal("the initializer must take the variable's address by name")
	}
}
