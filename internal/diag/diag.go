// Package diag implements the single-fatal-kind diagnostic strategy of
// spec.md §7: every syntax/semantic error prints a file:line-located
// message and terminates the process; warnings are conditionally-elevated
// messages that may be silent, printed, or promoted to fatal.
package diag

import (
	"fmt"
	"os"
)

// Located is anything that can report where a diagnostic should point —
// token.Token satisfies this without diag importing the token package,
// avoiding an import cycle (diag sits below token in some call paths and
// above it in others).
type Located interface {
	DiagFilename() string
	DiagLine() int
}

// Pos is a concrete Located for callers that don't have a full token handy.
type Pos struct {
	Filename string
	Line     int
}

func (p Pos) DiagFilename() string { return p.Filename }
func (p Pos) DiagLine() int        { return p.Line }

// Exiter is the process-exit hook, overridable in tests so a fatal
// diagnostic can be observed instead of actually calling os.Exit.
type Exiter func(code int)

// Diagnostics accumulates warning configuration and writes to an output
// stream; spec.md has exactly one live instance per compilation (component
// 12, orchestration), but it takes no global state so tests can create
// isolated instances.
type Diagnostics struct {
	Out    *os.File
	Exit   Exiter
	States [warningCount]State
}

// State is the three-way on/off/fatal setting for a warning category.
type State int

const (
	StateOff State = iota
	StateOn
	StateFatal
)

// New returns a Diagnostics with every warning off and the real os.Exit.
func New(out *os.File) *Diagnostics {
	return &Diagnostics{Out: out, Exit: os.Exit}
}

// Fatalf prints "<file>:<line>: <message>" and terminates the process.
// There is no return from a fatal diagnostic (spec.md §7): callers should
// treat it like a panic and not expect control flow to continue, but for
// testability it still goes through d.Exit rather than calling os.Exit
// directly, so tests can substitute a panic-based Exiter.
func (d *Diagnostics) Fatalf(where Located, format string, args ...any) {
	d.printLocated(where, "error", format, args...)
	d.Exit(1)
}

// FatalfNoLoc is for internal invariant violations discovered before any
// token is available (e.g. command-line argument errors).
func (d *Diagnostics) FatalfNoLoc(format string, args ...any) {
	fmt.Fprintf(d.Out, "error: %s\n", fmt.Sprintf(format, args...))
	d.Exit(1)
}

func (d *Diagnostics) printLocated(where Located, severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if where != nil {
		fmt.Fprintf(d.Out, "%s:%d: %s: %s\n", where.DiagFilename(), where.DiagLine(), severity, msg)
		return
	}
	fmt.Fprintf(d.Out, "%s: %s\n", severity, msg)
}

// Warn reports a warning in category w. Behaviour depends on the category's
// configured State: off is silent, on prints and continues, fatal escalates
// to Fatalf. -pedantic-errors escalates every warning_pedantic-group
// category the same way GCC's flag does.
func (d *Diagnostics) Warn(w Warning, where Located, format string, args ...any) {
	switch d.States[w] {
	case StateOff:
		return
	case StateFatal:
		d.printLocated(where, "error", format, args...)
		d.Exit(1)
	default:
		d.printLocated(where, "warning", format, args...)
	}
}

// Enable turns a warning category on (from an explicit -W<name> flag).
func (d *Diagnostics) Enable(w Warning) { d.setIfNotFatal(w, StateOn) }

// Promote escalates a warning category to fatal, as -pedantic-errors does
// for every warning it touches.
func (d *Diagnostics) Promote(w Warning) { d.States[w] = StateFatal }

func (d *Diagnostics) setIfNotFatal(w Warning, s State) {
	if d.States[w] == StateFatal {
		return
	}
	d.States[w] = s
}

// EnableGroup turns on every warning belonging to a named group (all,
// extra, pedantic), matching the warning_all/warning_extra/warning_pedantic
// grouping in the original options.h.
func (d *Diagnostics) EnableGroup(group string) bool {
	members, ok := groups[group]
	if !ok {
		return false
	}
	for _, w := range members {
		d.Enable(w)
	}
	return true
}
