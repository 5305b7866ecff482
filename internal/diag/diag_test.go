package diag

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func newTestDiag(t *testing.T) (*Diagnostics, *os.File, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	d := New(w)
	read := func() string {
		w.Close()
		var buf bytes.Buffer
		buf.ReadFrom(r)
		return buf.String()
	}
	return d, w, read
}

func TestWarnOffIsSilent(t *testing.T) {
	d, _, read := newTestDiag(t)
	d.Warn(WarnImplicitInt, Pos{"f.c", 3}, "implicit int")
	out := read()
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestWarnOnPrintsAndContinues(t *testing.T) {
	d, _, read := newTestDiag(t)
	d.Enable(WarnImplicitInt)
	called := false
	d.Exit = func(int) { called = true }
	d.Warn(WarnImplicitInt, Pos{"f.c", 3}, "implicit int")
	out := read()
	if !strings.Contains(out, "f.c:3: warning: implicit int") {
		t.Fatalf("unexpected output: %q", out)
	}
	if called {
		t.Fatal("StateOn warnings must not exit")
	}
}

func TestPromoteEscalatesToFatal(t *testing.T) {
	d, _, read := newTestDiag(t)
	d.Promote(WarnGNUCaseRange)
	exited := -1
	d.Exit = func(code int) { exited = code }
	d.Warn(WarnGNUCaseRange, Pos{"f.c", 9}, "case range")
	out := read()
	if exited != 1 {
		t.Fatalf("expected exit(1), got %d", exited)
	}
	if !strings.Contains(out, "error: case range") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestEnableGroupExpandsMembers(t *testing.T) {
	d, _, _ := newTestDiag(t)
	if !d.EnableGroup("pedantic") {
		t.Fatal("expected pedantic group to be recognized")
	}
	if d.States[WarnGNUCaseRange] != StateOn {
		t.Fatal("expected gnu-case-range to be enabled by -Wpedantic")
	}
	if d.States[WarnImplicitInt] != StateOff {
		t.Fatal("pedantic group must not enable unrelated warnings")
	}
}

func TestFatalfCallsExit(t *testing.T) {
	d, _, read := newTestDiag(t)
	exited := -1
	d.Exit = func(code int) { exited = code }
	d.Fatalf(Pos{"f.c", 1}, "boom %d", 42)
	out := read()
	if exited != 1 {
		t.Fatalf("expected exit(1), got %d", exited)
	}
	if !strings.Contains(out, "f.c:1: error: boom 42") {
		t.Fatalf("unexpected output: %q", out)
	}
}
