package emit

import (
	"strings"
	"testing"

	"github.com/onramp-go/cci/internal/ir"
	"github.com/onramp-go/cci/internal/scope"
	"github.com/onramp-go/cci/internal/types"
)

func render(optimize bool, build func(e *Emitter)) string {
	var sb strings.Builder
	e := New(&sb, optimize)
	build(e)
	if err := e.Flush(); err != nil {
		panic(err)
	}
	return sb.String()
}

func simpleFunction(linkage ir.FunctionLinkage) *ir.Function {
	fn := ir.NewFunction(nil, "main", "main")
	fn.Linkage = linkage
	b := ir.NewBlock(0)
	b.Append(ir.Reg(ir.OpEnter, 0, 0, 0))
	b.Append(ir.Reg(ir.OpZero, int8(ir.R0), 0, 0))
	b.Append(ir.Reg(ir.OpLeave, 0, 0, 0))
	b.Append(ir.Reg(ir.OpRet, 0, 0, 0))
	fn.AddBlock(b)
	return fn
}

func TestEmitFunctionSigils(t *testing.T) {
	out := render(false, func(e *Emitter) { e.EmitFunction(simpleFunction(ir.LinkageExternal)) })
	if !strings.Contains(out, "=main\n") {
		t.Fatalf("external function must be introduced with =, got:\n%s", out)
	}

	out = render(false, func(e *Emitter) { e.EmitFunction(simpleFunction(ir.LinkageInternal)) })
	if !strings.Contains(out, "@main\n") {
		t.Fatalf("internal function must be introduced with @, got:\n%s", out)
	}
}

func TestEmitConstructorPriority(t *testing.T) {
	fn := simpleFunction(ir.LinkageInternal)
	fn.IsConstructor = true
	fn.Priority = 50
	out := render(false, func(e *Emitter) { e.EmitFunction(fn) })
	if !strings.Contains(out, "@{50main\n") {
		t.Fatalf("constructor priority must decorate the symbol line, got:\n%s", out)
	}
}

func TestInstructionRendering(t *testing.T) {
	fn := ir.NewFunction(nil, "f", "f")
	b := ir.NewBlock(7)
	b.Append(ir.Reg(ir.OpLdw, int8(ir.R0), int8(ir.RFP), -4))
	b.Append(ir.Reg(ir.OpAdd, int8(ir.R0), int8(ir.R0), 1))
	b.Append(ir.Imm(ir.R1, 300))
	b.Append(ir.CallName(ir.OpCall, "__llong_add"))
	b.Append(ir.Reg(ir.OpRet, 0, 0, 0))
	fn.AddBlock(b)

	out := render(false, func(e *Emitter) { e.EmitFunction(fn) })
	for _, want := range []string{
		":_Lx7\n",
		"  ldw r0 rfp -4\n",
		"  add r0 r0 1\n",
		"  imw r1 300\n",
		"  call ^__llong_add\n",
		"  ret\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestJumpRendering(t *testing.T) {
	fn := ir.NewFunction(nil, "f", "f")
	b := ir.NewBlock(0)
	b.Append(ir.CondJumpGenerated(ir.OpJnz, ir.R2, "_Lx", 26))
	b.Append(ir.CallGenerated(ir.OpJmp, "_Lx", 26))
	fn.AddBlock(b)
	end := ir.NewBlock(26)
	end.Append(ir.Reg(ir.OpRet, 0, 0, 0))
	fn.AddBlock(end)

	out := render(false, func(e *Emitter) { e.EmitFunction(fn) })
	if !strings.Contains(out, "  jnz r2 &_Lx1A\n") {
		t.Errorf("conditional jump must render a short-relative hex target, got:\n%s", out)
	}
	if !strings.Contains(out, "  jmp &_Lx1A\n") {
		t.Errorf("unoptimized output keeps the explicit jmp, got:\n%s", out)
	}
}

func TestOptimizedLayoutElidesTrailingJump(t *testing.T) {
	fn := ir.NewFunction(nil, "f", "f")
	first := ir.NewBlock(0)
	first.Append(ir.CallGenerated(ir.OpJmp, "_Lx", 1))
	fn.AddBlock(first)
	second := ir.NewBlock(1)
	second.Append(ir.Reg(ir.OpRet, 0, 0, 0))
	fn.AddBlock(second)

	out := render(true, func(e *Emitter) { e.EmitFunction(fn) })
	if strings.Contains(out, "jmp") {
		t.Fatalf("a jump to the immediately following block must be elided, got:\n%s", out)
	}
	if !strings.Contains(out, ":_Lx1\n  ret\n") {
		t.Fatalf("the jump target must still be laid out with its label, got:\n%s", out)
	}
}

func TestEmitStringLiteralChunking(t *testing.T) {
	out := render(false, func(e *Emitter) { e.EmitStringLiteral(3, "hi\n") })
	if !strings.Contains(out, "@_Sx3\n") {
		t.Fatalf("string storage must carry its generated label, got:\n%s", out)
	}
	if !strings.Contains(out, "\"hi\"'0A\n") {
		t.Fatalf("printable bytes go in quotes, others as hex pairs, got:\n%s", out)
	}
	if !strings.Contains(out, "'00\n") {
		t.Fatalf("the null terminator must be appended, got:\n%s", out)
	}
}

func TestEmitStringLiteralQuotesAndBackslashes(t *testing.T) {
	out := render(false, func(e *Emitter) { e.EmitStringLiteral(0, `a"b\c`) })
	if !strings.Contains(out, "\"a\"'22\"b\"'5C\"c\"\n") {
		t.Fatalf("quote and backslash must be hex-escaped outside quoted runs, got:\n%s", out)
	}
}

func TestEmitGlobalVariableZeroFill(t *testing.T) {
	sym := scope.NewSymbol(scope.KindVariable, types.NewBase(types.SignedLongLong), nil, "x", "")
	sym.Linkage = scope.LinkageExternal
	out := render(false, func(e *Emitter) { e.EmitGlobalVariable(sym) })
	if !strings.Contains(out, "=x\n  0 0\n") {
		t.Fatalf("an 8-byte global is two zero words, got:\n%s", out)
	}
}

func TestSourceLocationCompression(t *testing.T) {
	out := render(false, func(e *Emitter) {
		e.sourceLocation(&ir.SourceLoc{Filename: "a.c", Line: 10})
		e.sourceLocation(&ir.SourceLoc{Filename: "a.c", Line: 10}) // same: nothing
		e.sourceLocation(&ir.SourceLoc{Filename: "a.c", Line: 11}) // next line: bare #
		e.sourceLocation(&ir.SourceLoc{Filename: "a.c", Line: 40}) // jump: #line N
		e.sourceLocation(&ir.SourceLoc{Filename: "b.c", Line: 40}) // file change: full form
	})
	want := "#line 10 \"a.c\"\n#\n#line 40\n#line 40 \"b.c\"\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
