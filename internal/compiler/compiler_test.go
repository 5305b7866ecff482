package compiler

import (
	"os"
	"strings"
	"testing"

	"github.com/onramp-go/cci/internal/diag"
)

func compile(t *testing.T, src string, opts Options) string {
	t.Helper()
	_, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	d := diag.New(w)
	d.Exit = func(code int) { panic(code) }

	var out strings.Builder
	if err := Compile(d, strings.NewReader(src), "test.i", &out, opts); err != nil {
		t.Fatalf("compile: %v", err)
	}
	return out.String()
}

func TestEmptyMain(t *testing.T) {
	out := compile(t, "int main(void){}", Options{})
	for _, want := range []string{"=main\n", "  enter\n", "  zero r0\n", "  leave\n", "  ret\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if !strings.HasPrefix(out, "#line manual\n") {
		t.Errorf("output must open with the manual line-directive header")
	}
}

func TestArithmeticWithImmediate(t *testing.T) {
	out := compile(t, "int f(int a, int b){ return a*b+1; }", Options{})
	if !strings.Contains(out, "  mul r0 r0 r1\n") {
		t.Errorf("missing multiply, got:\n%s", out)
	}
	if !strings.Contains(out, "  add r0 r0 1\n") {
		t.Errorf("the +1 must fold into the add's immediate slot, got:\n%s", out)
	}
	if !strings.Contains(out, "  mov r0 r0\n") {
		t.Errorf("the return value must be moved into r0, got:\n%s", out)
	}
}

func TestLoopWithBreak(t *testing.T) {
	out := compile(t, "void g(void){ for(int i=0;i<10;++i){ if(i==5) break; } }", Options{})
	if !strings.Contains(out, "jmp &_Lx") {
		t.Errorf("break must compile to a jump to a generated label, got:\n%s", out)
	}
	if !strings.Contains(out, "jz ") {
		t.Errorf("the loop condition must test and branch, got:\n%s", out)
	}
}

func TestStructByValueReturn(t *testing.T) {
	out := compile(t, "struct S{int a; int b;}; struct S h(void){ struct S s = {1, 2}; return s; }", Options{})
	if !strings.Contains(out, "=h\n") {
		t.Fatalf("missing function, got:\n%s", out)
	}
	if !strings.Contains(out, "rfp 8") {
		t.Errorf("an indirect return must read the caller's storage pointer at [rfp+8], got:\n%s", out)
	}
}

func TestBraceElisionInitializesNestedStruct(t *testing.T) {
	src := `
struct Inner { int a; int b; };
struct Outer { struct Inner i; int c; };
int f(void) { struct Outer o = {1, 2, 3}; return o.c; }`
	out := compile(t, src, Options{})
	// The three flat scalars land at the three member offsets: i.a at 0,
	// i.b at 4, c at 8.
	for _, want := range []string{"stw r0 0 r1\n", "stw r0 4 r1\n", "stw r0 8 r1\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestVariadicSum(t *testing.T) {
	src := `
typedef __builtin_va_list va_list;
int sum(int n, ...) {
	va_list ap;
	__builtin_va_start(ap, n);
	int s = 0;
	while (n--) s = s + __builtin_va_arg(ap, int);
	__builtin_va_end(ap);
	return s;
}`
	out := compile(t, src, Options{})
	if !strings.Contains(out, "=sum\n") {
		t.Fatalf("missing function, got:\n%s", out)
	}
	// va_start materializes rfp + variadic offset (8: one register-passed
	// named parameter, so variadic args start at the first stack slot).
	if !strings.Contains(out, "add") || !strings.Contains(out, "rfp") {
		t.Errorf("va_start must compute an rfp-relative address, got:\n%s", out)
	}
}

func TestTentativeDefinitionRealizedOnce(t *testing.T) {
	out := compile(t, "int x; int x = 5;", Options{})
	if got := strings.Count(out, "=x\n"); got != 1 {
		t.Fatalf("exactly one definition of x must be emitted, got %d in:\n%s", got, out)
	}
	if !strings.Contains(out, "@{50_Ix") {
		t.Errorf("the initializer must become an internal constructor at priority 50, got:\n%s", out)
	}
	if !strings.Contains(out, "imw r1 ^x\n") && !strings.Contains(out, "^x\n") {
		t.Errorf("the initializer must address x by name, got:\n%s", out)
	}
}

func TestTentativeAloneEmitsZeroDefinition(t *testing.T) {
	out := compile(t, "int y;", Options{})
	if !strings.Contains(out, "=y\n  0\n") {
		t.Fatalf("an unrealized tentative definition must flush as one zero word, got:\n%s", out)
	}
}

func TestCommaListEmitsBothGlobals(t *testing.T) {
	out := compile(t, "int a = 1, b = 2;", Options{})
	if !strings.Contains(out, "=a\n") || !strings.Contains(out, "=b\n") {
		t.Fatalf("both declarators must get storage definitions, got:\n%s", out)
	}
}

func TestPointerComparisonCompiles(t *testing.T) {
	out := compile(t, "int f(char *p, char *q){ return p == q; }", Options{})
	if !strings.Contains(out, "=f\n") {
		t.Fatalf("missing function, got:\n%s", out)
	}
	if !strings.Contains(out, "sub r0 r0 r1") {
		t.Errorf("pointer equality must lower to a zero-means-equal subtraction, got:\n%s", out)
	}
}

func TestStringLiteralStorage(t *testing.T) {
	out := compile(t, `char *greeting(void){ return "hi"; }`, Options{})
	if !strings.Contains(out, "@_Sx") {
		t.Fatalf("string literal storage must be emitted under a generated label, got:\n%s", out)
	}
	if !strings.Contains(out, "\"hi\"\n") {
		t.Errorf("the literal's bytes must be chunked into a quoted run, got:\n%s", out)
	}
	if !strings.Contains(out, "'00\n") {
		t.Errorf("the literal must be null-terminated, got:\n%s", out)
	}
	if got := strings.Count(out, "@_Sx"); got != 1 {
		t.Errorf("the literal must be emitted exactly once, got %d", got)
	}
}

func TestStaticLocalInitializesViaConstructor(t *testing.T) {
	out := compile(t, "int counter(void){ static int n = 41; n = n + 1; return n; }", Options{})
	if !strings.Contains(out, "@_S_counter_n\n") {
		t.Fatalf("a static local gets internal linkage under a mangled name, got:\n%s", out)
	}
	if !strings.Contains(out, "@{50_Ix") {
		t.Errorf("its initializer must run from a priority-50 constructor, got:\n%s", out)
	}
	// The function body itself must not re-run the initializer: 41 may only
	// appear in the constructor, after the function's own blocks.
	body := out[strings.Index(out, "=counter"):strings.Index(out, "@_S_counter_n")]
	if strings.Contains(body, " 41") {
		t.Errorf("the enclosing function must not store the initial value on entry:\n%s", body)
	}
}

func TestOptimizeElidesFallthroughJumps(t *testing.T) {
	src := "int f(int a){ if(a) return 1; return 2; }"
	plain := compile(t, src, Options{})
	optimized := compile(t, src, Options{Optimize: true})
	if strings.Count(optimized, "jmp") >= strings.Count(plain, "jmp") {
		t.Errorf("optimization must elide at least one fall-through jump:\nplain:\n%s\noptimized:\n%s", plain, optimized)
	}
}

func TestDebugInfoEmitsLineDirectives(t *testing.T) {
	src := "int f(void){\n\treturn 1;\n}\n"
	plain := compile(t, src, Options{})
	debug := compile(t, src, Options{DebugInfo: true})
	if strings.Count(debug, "#line") <= strings.Count(plain, "#line") {
		t.Errorf("-g must produce #line directives inside function bodies:\n%s", debug)
	}
}

func TestDumpAST(t *testing.T) {
	var dump strings.Builder
	compile(t, "int main(void){ return 0; }", Options{DumpAST: "ascii", DumpWriter: &dump})
	if !strings.Contains(dump.String(), "function main") {
		t.Fatalf("AST dump must include the function node, got:\n%s", dump.String())
	}
	if !strings.Contains(dump.String(), "return") {
		t.Fatalf("AST dump must include the body, got:\n%s", dump.String())
	}
}

func TestFatalDiagnosticAborts(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("a semantic error must be fatal")
		}
	}()
	compile(t, "int f(void){ return nope; }", Options{})
}
