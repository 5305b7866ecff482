package ast

import (
	"fmt"
	"io"

	"github.com/onramp-go/cci/internal/types"
)

// DumpStyle selects the box-drawing character set the tree dump uses.
type DumpStyle int

const (
	DumpUnicode DumpStyle = iota
	DumpASCII
)

type dumpChars struct {
	tee, last, pipe, blank string
}

var dumpCharsets = map[DumpStyle]dumpChars{
	DumpUnicode: {tee: "├─", last: "└─", pipe: "│ ", blank: "  "},
	DumpASCII:   {tee: "|-", last: "`-", pipe: "| ", blank: "  "},
}

// Dump writes a readable tree rendering of node to w, one node per line,
// used by the -dump-ast flag. Initializer-list entries print in slot order
// with their designator index, since their children live in the sparse
// vector rather than the sibling chain.
func Dump(w io.Writer, node *Node, style DumpStyle) {
	cs := dumpCharsets[style]
	dumpNode(w, node, cs, "", "")
}

func dumpNode(w io.Writer, node *Node, cs dumpChars, lead, childLead string) {
	fmt.Fprintf(w, "%s%s%s\n", lead, node.Kind, dumpDetail(node))

	if node.Kind == InitializerList {
		for i, child := range node.Initializers {
			if child == nil {
				continue
			}
			last := i == lastInitializer(node)
			fmt.Fprintf(w, "%s%s[%d]\n", childLead, branch(cs, last), i)
			dumpNode(w, child, cs, childLead+extend(cs, last)+cs.last, childLead+extend(cs, last)+cs.blank)
		}
		return
	}

	for c := node.FirstChild; c != nil; c = c.RightSibling {
		last := c.RightSibling == nil
		dumpNode(w, c, cs, childLead+branch(cs, last), childLead+extend(cs, last))
	}
}

func branch(cs dumpChars, last bool) string {
	if last {
		return cs.last
	}
	return cs.tee
}

func extend(cs dumpChars, last bool) string {
	if last {
		return cs.blank
	}
	return cs.pipe
}

func lastInitializer(node *Node) int {
	last := -1
	for i, child := range node.Initializers {
		if child != nil {
			last = i
		}
	}
	return last
}

// dumpDetail summarizes the node's kind-specific payload for the dump line.
func dumpDetail(node *Node) string {
	s := ""
	switch node.Kind {
	case Number, Character:
		s = fmt.Sprintf(" %d", node.Value.I64())
	case String:
		s = fmt.Sprintf(" %q", node.StrValue)
	case Access:
		if node.Symbol != nil {
			s = " " + node.Symbol.Name
		}
	case FunctionDef:
		if node.Symbol != nil {
			s = " " + node.Symbol.Name
		}
	case Variable, Parameter:
		if node.Symbol != nil {
			s = " " + node.Symbol.Name
		}
	case Label, Goto:
		s = " " + node.StrValue
	case Case:
		if node.CaseStart.U64() == node.CaseEnd.U64() {
			s = fmt.Sprintf(" %d", node.CaseStart.I64())
		} else {
			s = fmt.Sprintf(" %d ... %d", node.CaseStart.I64(), node.CaseEnd.I64())
		}
	case MemberVal, MemberPtr:
		if node.Member != nil {
			s = " ." + node.Member.Text()
		}
	}
	if node.Type != nil && !node.Type.MatchesBase(types.Void) {
		s += " <" + TypeString(node.Type) + ">"
	}
	return s
}

// baseNames spells each base type the way C does.
var baseNames = map[types.Base]string{
	types.Void: "void", types.Bool: "_Bool", types.Char: "char",
	types.SignedChar: "signed char", types.UnsignedChar: "unsigned char",
	types.SignedShort: "short", types.UnsignedShort: "unsigned short",
	types.SignedInt: "int", types.UnsignedInt: "unsigned int",
	types.SignedLong: "long", types.UnsignedLong: "unsigned long",
	types.SignedLongLong: "long long", types.UnsignedLongLong: "unsigned long long",
	types.Float: "float", types.Double: "double", types.LongDouble: "long double",
	types.VaList: "va_list",
}

// TypeString renders a type in a compact right-leaning notation for
// diagnostics and the AST dump (`pointer(int)`, `array[3](char)`), which
// avoids reconstructing C's inside-out declarator syntax.
func TypeString(t *types.Type) string {
	quals := ""
	if t.IsConst {
		quals = "const "
	}
	if t.IsVolatile {
		quals += "volatile "
	}
	if !t.IsDeclarator {
		switch t.Base {
		case types.Record:
			kw := "union"
			if t.RecordType.IsStruct {
				kw = "struct"
			}
			name := t.RecordType.Tag
			if name == "" {
				name = "<anonymous>"
			}
			return quals + kw + " " + name
		case types.Enum:
			name := t.EnumType.Tag
			if name == "" {
				name = "<anonymous>"
			}
			return quals + "enum " + name
		}
		return quals + baseNames[t.Base]
	}
	switch t.Declarator {
	case types.Pointer:
		return quals + "pointer(" + TypeString(t.Ref) + ")"
	case types.Array:
		return fmt.Sprintf("%sarray[%d](%s)", quals, t.Count, TypeString(t.Ref))
	case types.VLA:
		return quals + "array[*](" + TypeString(t.Ref) + ")"
	case types.Indeterminate:
		return quals + "array[](" + TypeString(t.Ref) + ")"
	case types.Function:
		s := quals + "function("
		for i, a := range t.Args {
			if i > 0 {
				s += ", "
			}
			s += TypeString(a)
		}
		if t.IsVariadic {
			if len(t.Args) > 0 {
				s += ", "
			}
			s += "..."
		}
		return s + ") -> " + TypeString(t.Ref)
	}
	return quals + "<invalid>"
}
