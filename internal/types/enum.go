package types

import "github.com/onramp-go/cci/internal/token"

// EnumConstant is one `name = value` member of an enum (enum.h's
// enum_value_t). Value is the signed int the constant evaluates to; the
// original computes it during parsing (previous value + 1, or an explicit
// constant expression) and stores it here rather than recomputing it.
type EnumConstant struct {
	Name  string
	Tok   *token.Token
	Value int64
}

// EnumType is an enum tag's full member list (enum.h's enum_t). Unlike
// RecordType, an enum's underlying representation is always SignedInt
// (spec.md §4.4), so it carries no Size/Alignment of its own.
type EnumType struct {
	Tag       string // empty for an anonymous enum
	IsDefined bool
	Values    []*EnumConstant
	byName    map[string]*EnumConstant
}

// NewEnumType creates a forward-declared (not yet defined) enum tag.
func NewEnumType(tag string) *EnumType {
	return &EnumType{Tag: tag, byName: make(map[string]*EnumConstant)}
}

// Append adds a new enumeration constant.
func (e *EnumType) Append(tok *token.Token, name string, value int64) *EnumConstant {
	c := &EnumConstant{Name: name, Tok: tok, Value: value}
	e.Values = append(e.Values, c)
	e.byName[name] = c
	return c
}

// Find looks up an enumeration constant by name.
func (e *EnumType) Find(name string) (*EnumConstant, bool) {
	c, ok := e.byName[name]
	return c, ok
}

// NextValue returns the value the next constant gets if it has no explicit
// initializer: one past the last appended constant's value, or 0 for the
// first.
func (e *EnumType) NextValue() int64 {
	if len(e.Values) == 0 {
		return 0
	}
	return e.Values[len(e.Values)-1].Value + 1
}

// Define marks the enum as fully defined (its member list is closed).
func (e *EnumType) Define() { e.IsDefined = true }
