package token

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/onramp-go/cci/internal/strtab"
)

const eof = -1

// FatalFunc reports a fatal diagnostic located at the given file/line and
// does not return (it should call os.Exit or panic). The lexer takes this
// as a dependency instead of importing internal/diag directly so that it
// has no import-cycle risk and is trivially testable in isolation.
type FatalFunc func(filename string, line int, format string, args ...any)

// Lexer re-tokenizes a preprocessed C source, tracking source location
// through `#line` directives and interning every identifier/punctuation
// value, per spec.md §4.3.
type Lexer struct {
	r    *bufio.Reader
	tab  *strtab.Table
	fail FatalFunc

	filename string
	line     int
	ch       rune

	buf strings.Builder

	current Token
	queued  *Token // at most one pushed-back token, per lexer_push's contract
}

// New creates a Lexer reading r, initially attributing tokens to filename
// starting at line 1 (matching lexer_init's priming of current_line).
func New(r io.Reader, filename string, tab *strtab.Table, fail FatalFunc) *Lexer {
	l := &Lexer{
		r:        bufio.NewReader(r),
		tab:      tab,
		fail:     fail,
		filename: filename,
		line:     1,
	}
	l.ch = '\n' // prime so a directive on the very first line is recognized
	l.Consume()
	return l
}

func (l *Lexer) fatalf(format string, args ...any) {
	l.fail(l.filename, l.line, format, args...)
	panic("unreachable: FatalFunc must not return")
}

func (l *Lexer) readChar() rune {
	r, _, err := l.r.ReadRune()
	if err != nil {
		l.ch = eof
		return eof
	}
	l.ch = r
	return r
}

func isAlnumStart(c rune) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isAlnumCont(c rune) bool {
	return isAlnumStart(c) || isDigit(c)
}

func isHexDigit(c rune) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c rune) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

func isEndOfLine(c rune) bool { return c == '\n' || c == '\r' || c == eof }

func isHSpace(c rune) bool { return c == ' ' || c == '\t' }

// Current returns the token the lexer is positioned on.
func (l *Lexer) Current() Token { return l.current }

func (l *Lexer) consumeEndOfLine() {
	switch l.ch {
	case '\n':
		l.line++
		l.readChar()
	case '\r':
		l.line++
		if l.readChar() == '\n' {
			l.readChar()
		}
	case eof:
	default:
		l.fatalf("Expected end of line.")
	}
}

// consumeWhitespace skips horizontal and vertical whitespace, reporting
// whether a newline was crossed (directives may only start a line).
func (l *Lexer) consumeWhitespace() bool {
	crossedNewline := false
	for {
		switch l.ch {
		case ' ', '\t':
			l.readChar()
		case '\n', '\r':
			crossedNewline = true
			l.consumeEndOfLine()
		default:
			return crossedNewline
		}
	}
}

func (l *Lexer) consumeOptionalHSpace() {
	for isHSpace(l.ch) {
		l.readChar()
	}
}

func (l *Lexer) consumeHSpace() {
	if !isHSpace(l.ch) {
		l.fatalf("Expected horizontal whitespace")
	}
	l.consumeOptionalHSpace()
}

func (l *Lexer) consumeUntilNewline() {
	for !isEndOfLine(l.ch) {
		l.readChar()
	}
}

func (l *Lexer) consumeWhitespaceAndDirectives() {
	for {
		crossedNewline := l.consumeWhitespace()
		if l.ch != '#' {
			return
		}
		if !crossedNewline {
			l.fatalf("A `#` preprocessor directive can only appear at the start of a line.")
		}
		l.parseDirective()
	}
}

func (l *Lexer) parseDirective() {
	l.readChar() // skip '#'
	l.consumeOptionalHSpace()

	var cmd strings.Builder
	for l.ch >= 'a' && l.ch <= 'z' {
		cmd.WriteRune(l.ch)
		l.readChar()
	}

	switch cmd.String() {
	case "line":
		l.handleLineDirective()
	case "pragma":
		// #pragma is recognized but currently ignored (spec.md §6).
		l.consumeUntilNewline()
	default:
		l.consumeUntilNewline()
	}
}

// handleLineDirective implements `#line N` and `#line N "file"`. The
// decrement-by-one is deliberate: the newline that ends this directive line
// performs the final increment, bringing current_line to exactly N.
func (l *Lexer) handleLineDirective() {
	l.consumeHSpace()
	if !isDigit(l.ch) {
		l.fatalf("Expected line number after #line")
	}
	lineNo := 0
	for isDigit(l.ch) {
		lineNo = lineNo*10 + int(l.ch-'0')
		l.readChar()
	}
	l.line = lineNo - 1

	if isEndOfLine(l.ch) {
		return
	}
	l.consumeHSpace()
	if isEndOfLine(l.ch) {
		return
	}

	if l.ch != '"' {
		l.fatalf("Filename in #line directive must be double-quoted.")
	}
	name := l.consumeStringLiteral()
	l.filename = name

	l.consumeOptionalHSpace()
	if !isEndOfLine(l.ch) {
		l.fatalf("Expected end of line after filename in #line directive")
	}
}

func (l *Lexer) consumeLiteralChar() {
	c := l.ch
	if c != '\\' {
		l.buf.WriteRune(c)
		l.readChar()
		return
	}

	c = l.readChar()
	switch c {
	case 'a':
		l.buf.WriteByte('\a')
	case 'b':
		l.buf.WriteByte('\b')
	case 't':
		l.buf.WriteByte('\t')
	case 'n':
		l.buf.WriteByte('\n')
	case 'v':
		l.buf.WriteByte('\v')
	case 'f':
		l.buf.WriteByte('\f')
	case 'r':
		l.buf.WriteByte('\r')
	case 'e':
		l.buf.WriteByte(27)
	case '"':
		l.buf.WriteByte('"')
	case '\'':
		l.buf.WriteByte('\'')
	case '?':
		l.buf.WriteByte('?')
	case '\\':
		l.buf.WriteByte('\\')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		value := int(c - '0')
		c = l.readChar()
		for i := 0; i < 2 && c >= '0' && c <= '7'; i++ {
			value = value<<3 + int(c-'0')
			c = l.readChar()
		}
		if value > 0xFF {
			l.fatalf("The maximum octal escape sequence is \\377.")
		}
		l.buf.WriteByte(byte(value))
		return
	case 'x', 'X':
		value := 0
		c = l.readChar()
		for isHexDigit(c) {
			value = value<<4 + hexVal(c)
			c = l.readChar()
		}
		if value > 0xFF {
			l.fatalf("Hexadecimal escape sequences wider than one byte are not yet supported.")
		}
		l.buf.WriteByte(byte(value))
		return
	case 'u', 'U':
		l.fatalf("Unicode escape sequences are not yet supported.")
	default:
		l.fatalf("Unrecognized escape sequence")
	}
	l.readChar()
}

func (l *Lexer) consumeStringLiteral() string {
	l.buf.Reset()
	l.readChar() // skip opening quote
	for {
		if l.ch == '"' {
			l.readChar()
			break
		}
		if isEndOfLine(l.ch) {
			l.fatalf("Unclosed string literal")
		}
		l.consumeLiteralChar()
	}
	return l.buf.String()
}

func (l *Lexer) consumeCharLiteral() string {
	l.buf.Reset()
	l.readChar()
	if l.ch == '\'' {
		l.fatalf("Empty char literal is not allowed.")
	}
	if isEndOfLine(l.ch) {
		l.fatalf("Unclosed character literal.")
	}
	l.consumeLiteralChar()
	if isEndOfLine(l.ch) {
		l.fatalf("Unclosed character literal.")
	}
	if l.ch != '\'' {
		l.fatalf("Only a single character is supported in a char literal.")
	}
	l.readChar()
	return l.buf.String()
}

// punctChars is the set of characters that can start a punctuation token,
// matching lexer.c's strchr table.
const punctChars = "+-*/%&|^!~<>=()[]{}.?:,;"

// assignable1, doublable and the pointer/variadic special cases implement
// the greedy up-to-three-character punctuation matcher of spec.md §4.3.
func isAssignableFirst(c rune) bool { return strings.ContainsRune("+-*/%&|^!<>=", c) }
func isDoublable(c rune) bool       { return strings.ContainsRune("+-&|<>", c) }

func (l *Lexer) consumePunctuation() string {
	l.buf.Reset()
	c0 := l.ch
	l.buf.WriteRune(c0)
	c1 := l.readChar()

	isAssign := c1 == '=' && isAssignableFirst(c0)
	isDouble := c0 == c1 && isDoublable(c0)
	isPointer := c0 == '-' && c1 == '>'
	isVariadic := c0 == '.' && c1 == '.'

	if isAssign || isDouble || isPointer || isVariadic {
		l.buf.WriteRune(c1)
		c2 := l.readChar()

		isShiftAssign := c2 == '=' && (c1 == '<' || c1 == '>')
		isEllipsis := c2 == '.' && c0 == '.'
		if isShiftAssign || isEllipsis {
			l.buf.WriteRune(c2)
			l.readChar()
		}

		if l.buf.Len() == 2 && c0 == '.' {
			l.fatalf("`..` is not a valid token.")
		}
	}
	return l.buf.String()
}

// Consume advances to the next token, applying the same `#line`/`#pragma`
// handling as spec.md §4.3.
func (l *Lexer) Consume() {
	if l.queued != nil {
		l.current = *l.queued
		l.queued = nil
		return
	}

	l.consumeWhitespaceAndDirectives()
	line := l.line

	if l.ch == eof {
		l.current = Token{Kind: End, Value: l.tab.Intern(""), Filename: l.tab.Intern(l.filename), Line: line}
		return
	}

	c := l.ch

	if isAlnumStart(c) {
		l.buf.Reset()
		for isAlnumCont(c) {
			l.buf.WriteRune(c)
			c = l.readChar()
		}
		if c == '"' || c == '\'' {
			l.fatalf("String and character literal prefixes are not implemented yet.")
		}
		l.current = Token{Kind: Alphanumeric, Value: l.tab.Intern(l.buf.String()), Filename: l.tab.Intern(l.filename), Line: line}
		return
	}

	if c == '"' {
		text := l.consumeStringLiteral()
		l.current = Token{Kind: String, Value: l.tab.Intern(text), Filename: l.tab.Intern(l.filename), Line: line}
		return
	}
	if c == '\'' {
		text := l.consumeCharLiteral()
		l.current = Token{Kind: Character, Value: l.tab.Intern(text), Filename: l.tab.Intern(l.filename), Line: line}
		return
	}

	if isDigit(c) {
		l.buf.Reset()
		for isAlnumCont(c) || c == '.' || c == '\'' {
			l.buf.WriteRune(c)
			c = l.readChar()
		}
		l.current = Token{Kind: Number, Value: l.tab.Intern(l.buf.String()), Filename: l.tab.Intern(l.filename), Line: line}
		return
	}

	if strings.ContainsRune(punctChars, c) {
		text := l.consumePunctuation()
		l.current = Token{Kind: Punctuation, Value: l.tab.Intern(text), Filename: l.tab.Intern(l.filename), Line: line}
		return
	}

	l.fatalf("Unexpected character: %c", c)
}

// Take returns the current token and advances.
func (l *Lexer) Take() Token {
	t := l.current
	l.Consume()
	return t
}

// Push pushes back a single token, which must become the new Current();
// the previously-current token is queued to be returned after it. At most
// one token may be queued at a time, matching lexer_push's contract.
func (l *Lexer) Push(t Token) {
	if l.queued != nil {
		l.fatalf("internal error: at most one token can be queued")
	}
	prev := l.current
	l.queued = &prev
	l.current = t
}

// Accept consumes the current token and returns true if its text matches s
// (only alphanumeric/punctuation tokens ever match); otherwise it leaves
// the lexer position unchanged and returns false.
func (l *Lexer) Accept(s string) bool {
	if !l.current.Is(s) {
		return false
	}
	l.Consume()
	return true
}

// Expect accepts s or reports a fatal diagnostic with msg (or a default
// "Expected `s`" message if msg is empty).
func (l *Lexer) Expect(s string, msg string) {
	if l.Accept(s) {
		return
	}
	if msg != "" {
		l.fatalf("%s", msg)
		return
	}
	l.fatalf("Expected `%s`, got `%s`", s, l.current.Text())
}

// sprintf-style helper kept here to avoid importing fmt into every caller
// that wants to build an Expect message.
func Errorf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
