// Package token implements the re-tokenizer that reads a preprocessed C
// translation unit (macros already expanded, `#include`s already resolved)
// and produces the token stream the parser consumes, per spec.md §4.3.
package token

import "github.com/onramp-go/cci/internal/strtab"

// Kind classifies a Token, matching spec.md §3's enumeration.
type Kind int

const (
	Alphanumeric Kind = iota // identifier or keyword
	Number
	Character
	String
	Punctuation
	End // sentinel end-of-input token, never nil
)

func (k Kind) String() string {
	switch k {
	case Alphanumeric:
		return "alphanumeric"
	case Number:
		return "number"
	case Character:
		return "character"
	case String:
		return "string"
	case Punctuation:
		return "punctuation"
	case End:
		return "end"
	default:
		return "invalid"
	}
}

// Prefix records a literal prefix recognized but (per spec.md §4.3) not yet
// supported: wide-string/char prefixes are parsed far enough to produce a
// clear diagnostic rather than silently misreading the literal.
type Prefix int

const (
	PrefixNone Prefix = iota
	PrefixL
	PrefixU8
	PrefixLowerU
	PrefixUpperU
)

// Token is an immutable, interned-content lexical token (spec.md §3).
// Tokens are cheap to copy by value; the interned Value pointer makes
// equality comparisons between keyword/punctuation tokens a pointer check.
type Token struct {
	Kind     Kind
	Value    *strtab.String
	Prefix   Prefix
	Filename *strtab.String
	Line     int

	// IncludeSource, when non-nil, is the token (typically a #pragma or
	// directive-adjacent token) of the file that included the file this
	// token came from — used only for diagnostics that need to show an
	// inclusion chain. Most tokens leave it nil.
	IncludeSource *Token
}

// Text returns the token's interned text content.
func (t Token) Text() string {
	if t.Value == nil {
		return ""
	}
	return t.Value.Bytes()
}

// Is reports whether this is a punctuation or alphanumeric token whose text
// equals s — the comparison spec.md §4.3 calls "alphanumeric/punctuation
// equality" used by lexer_accept/lexer_expect.
func (t Token) Is(s string) bool {
	if t.Kind != Punctuation && t.Kind != Alphanumeric {
		return false
	}
	return t.Text() == s
}

// DiagFilename and DiagLine satisfy internal/diag.Located so a Token can be
// passed directly to Diagnostics.Fatalf/Warn as the error location.
func (t Token) DiagFilename() string {
	if t.Filename == nil {
		return "<unknown>"
	}
	return t.Filename.Bytes()
}

func (t Token) DiagLine() int { return t.Line }
