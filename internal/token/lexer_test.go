package token

import (
	"strings"
	"testing"

	"github.com/onramp-go/cci/internal/strtab"
)

type fatalCalled struct {
	filename string
	line     int
	message  string
}

func newTestLexer(t *testing.T, src string) (*Lexer, *[]fatalCalled) {
	t.Helper()
	tab := strtab.New()
	var calls []fatalCalled
	fail := func(filename string, line int, format string, args ...any) {
		calls = append(calls, fatalCalled{filename, line, Errorf(format, args...)})
		panic("fatal")
	}
	l := New(strings.NewReader(src), "test.i", tab, fail)
	return l, &calls
}

func collectAll(l *Lexer) []Token {
	var out []Token
	for {
		tok := l.Take()
		out = append(out, tok)
		if tok.Kind == End {
			return out
		}
	}
}

func TestIdentifiersAndKeywords(t *testing.T) {
	l, _ := newTestLexer(t, "int x_1 $dollar")
	toks := collectAll(l)
	want := []string{"int", "x_1", "$dollar"}
	for i, w := range want {
		if toks[i].Kind != Alphanumeric || toks[i].Text() != w {
			t.Fatalf("token %d: got %q kind %v, want %q", i, toks[i].Text(), toks[i].Kind, w)
		}
	}
	if toks[len(want)].Kind != End {
		t.Fatalf("expected End sentinel at end of stream")
	}
}

func TestPunctuationMaxMunch(t *testing.T) {
	l, _ := newTestLexer(t, "<<= ... -> != + ++")
	toks := collectAll(l)
	want := []string{"<<=", "...", "->", "!=", "+", "++"}
	for i, w := range want {
		if toks[i].Text() != w {
			t.Fatalf("token %d: got %q, want %q", i, toks[i].Text(), w)
		}
	}
}

func TestStringAndCharLiterals(t *testing.T) {
	l, _ := newTestLexer(t, `"hi\n" 'a' '\t'`)
	toks := collectAll(l)
	if toks[0].Kind != String || toks[0].Text() != "hi\n" {
		t.Fatalf("string literal: got %q", toks[0].Text())
	}
	if toks[1].Kind != Character || toks[1].Text() != "a" {
		t.Fatalf("char literal: got %q", toks[1].Text())
	}
	if toks[2].Text() != "\t" {
		t.Fatalf("escaped char literal: got %q", toks[2].Text())
	}
}

func TestLineDirectiveAdjustsLineNumber(t *testing.T) {
	l, _ := newTestLexer(t, "#line 100 \"foo.c\"\nidentifier")
	tok := l.Take()
	if tok.Line != 100 {
		t.Fatalf("expected line 100 after #line directive, got %d", tok.Line)
	}
	if tok.Filename.Bytes() != "foo.c" {
		t.Fatalf("expected filename foo.c, got %q", tok.Filename.Bytes())
	}
}

func TestPushBackOneToken(t *testing.T) {
	l, _ := newTestLexer(t, "a b c")
	first := l.Take() // "a", current now "b"
	second := l.Current()
	l.Push(first) // current becomes "a" again, "b" queued
	if l.Current().Text() != "a" {
		t.Fatalf("after push, current should be pushed token, got %q", l.Current().Text())
	}
	l.Consume()
	if l.Current().Text() != second.Text() {
		t.Fatalf("after consuming pushed token, should resume at %q, got %q", second.Text(), l.Current().Text())
	}
}

func TestAcceptAndExpect(t *testing.T) {
	l, _ := newTestLexer(t, "( )")
	if !l.Accept("(") {
		t.Fatal("expected to accept (")
	}
	if l.Accept("x") {
		t.Fatal("should not accept mismatched token")
	}
	l.Expect(")", "")
}

func TestUnclosedStringIsFatal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected fatal on unclosed string literal")
		}
	}()
	l, calls := newTestLexer(t, `"unterminated`)
	l.Take()
	if len(*calls) == 0 {
		t.Fatal("expected a fatal call to be recorded")
	}
}
