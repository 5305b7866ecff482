package parser

import (
	"strings"

	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/bignum"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// parseNumber converts a NODE_NUMBER token's raw text into a value and type
// following C17 6.4.4.1's integer-constant rules (parse_number). Floating
// constants are recognized but not yet supported as anything but a cast
// target elsewhere in the pipeline; encountering one here is a fatal
// diagnostic, matching the original's incomplete float support.
func (p *Parser) parseNumber(tok token.Token) *ast.Node {
	text := tok.Text()

	if looksFloating(text) {
		p.D.Fatalf(tok, "Floating-point constants are not yet supported.")
	}

	base := 10
	digits := text
	unsignedSuffix := false
	longCount := 0

	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		base = 16
		digits = text[2:]
	case strings.HasPrefix(text, "0") && len(text) > 1:
		base = 8
		digits = text[1:]
	}

	// split trailing u/U/l/L suffix
	end := len(digits)
	for end > 0 {
		c := digits[end-1]
		if c == 'u' || c == 'U' {
			unsignedSuffix = true
			end--
			continue
		}
		if c == 'l' || c == 'L' {
			longCount++
			end--
			continue
		}
		break
	}
	digits = digits[:end]
	if digits == "" {
		digits = "0"
	}

	value, ok := parseDigits(digits, base)
	if !ok {
		p.D.Fatalf(tok, "Invalid numeric literal: %s", text)
	}

	typ := integerLiteralType(value, base, unsignedSuffix, longCount)
	if base == 10 && !unsignedSuffix && !typ.IsSignedInteger() {
		p.D.Warn(diag.WarnImplicitlyUnsignedLiteral, tok,
			"This decimal constant does not fit a signed type; it becomes unsigned.")
	}
	node := ast.NewWithToken(ast.Number, &tok)
	node.Type = typ
	node.Value = bignum.FromU64(value)
	return node
}

func looksFloating(text string) bool {
	isHex := strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")
	for i, c := range text {
		switch c {
		case '.':
			return true
		case 'e', 'E':
			if !isHex {
				return true
			}
		case 'p', 'P':
			if isHex {
				return true
			}
		case 'f', 'F':
			// trailing float suffix, only meaningful if not a hex digit context
			if !isHex && i == len(text)-1 {
				return true
			}
		}
	}
	return false
}

func parseDigits(digits string, base int) (uint64, bool) {
	var value uint64
	for _, c := range digits {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, false
		}
		if int(d) >= base {
			return 0, false
		}
		value = value*uint64(base) + d
	}
	return value, true
}

// integerLiteralType picks the smallest type in the C17 6.4.4.1 candidate
// list that can represent value, honoring an explicit u/l suffix and
// whether the literal was written in decimal (a decimal constant without a
// u suffix skips the unsigned candidates, and becomes unsigned long long
// only when no signed type can hold it) or octal/hex (which may).
func integerLiteralType(value uint64, base int, unsignedSuffix bool, longCount int) *types.Type {
	type cand struct {
		base     types.Base
		unsigned bool
	}
	var candidates []cand
	switch {
	case longCount >= 2:
		candidates = []cand{{types.SignedLongLong, false}, {types.UnsignedLongLong, true}}
	case longCount == 1:
		candidates = []cand{{types.SignedLong, false}, {types.UnsignedLong, true}, {types.SignedLongLong, false}, {types.UnsignedLongLong, true}}
	default:
		candidates = []cand{{types.SignedInt, false}, {types.UnsignedInt, true}, {types.SignedLong, false}, {types.UnsignedLong, true}, {types.SignedLongLong, false}, {types.UnsignedLongLong, true}}
	}

	allowUnsignedFirst := base != 10
	for _, c := range candidates {
		if unsignedSuffix && !c.unsigned {
			continue
		}
		if !unsignedSuffix && !allowUnsignedFirst && c.unsigned {
			// decimal literal without a U suffix only ever widens through
			// signed candidates first
			continue
		}
		if fitsBase(value, c.base) {
			return types.NewBase(c.base)
		}
	}
	// fall back to the widest unsigned candidate
	return types.NewBase(types.UnsignedLongLong)
}

func fitsBase(value uint64, base types.Base) bool {
	switch base {
	case types.SignedInt:
		return value <= 0x7FFFFFFF
	case types.UnsignedInt:
		return value <= 0xFFFFFFFF
	case types.SignedLong:
		return value <= 0x7FFFFFFF
	case types.UnsignedLong:
		return value <= 0xFFFFFFFF
	case types.SignedLongLong:
		return value <= 0x7FFFFFFFFFFFFFFF
	case types.UnsignedLongLong:
		return true
	}
	return false
}

// parseCharacter converts a NODE_CHARACTER token's already-escape-decoded
// single-byte text into a node of type char (parse_character).
func (p *Parser) parseCharacter(tok token.Token) *ast.Node {
	text := tok.Text()
	if len(text) != 1 {
		p.D.Fatalf(tok, "Internal error: character literal must be exactly one byte.")
	}
	node := ast.NewWithToken(ast.Character, &tok)
	node.Type = types.NewBase(types.Char)
	node.Value = bignum.FromU32(uint32(text[0]))
	return node
}

// parseStringLiteral builds a NODE_STRING node for one string token,
// assigning it the next string-literal label (parse_string); adjacent
// string literal concatenation is handled by the caller in expr.go.
func (p *Parser) parseStringLiteral(tok token.Token) *ast.Node {
	text := tok.Text()
	node := ast.NewWithToken(ast.String, &tok)
	node.Type = types.NewArray(types.NewBase(types.Char), uint32(len(text)+1))
	node.StrValue = text
	node.StringLabel = p.allocLabel()
	return node
}
