// Initializer-list parsing (spec.md §4.7's "Initializers" subsection),
// implementing C17's "current object" walk from parse_init.c: the root
// braced list fixes the current object, and the current initialization
// position is an index into one of the initializer-list nodes nested
// somewhere under it. An unbraced scalar walks DOWN into nested
// struct/array subobjects until its type matches (so `{1, 2, 3}` fills a
// struct-in-struct without inner braces), and after each entry the
// position walks UP to the next unfilled sibling slot. Only a nested brace
// recurses; everything else happens in one closed loop.
package parser

import (
	"github.com/onramp-go/cci/internal/ast"
	"github.com/onramp-go/cci/internal/diag"
	"github.com/onramp-go/cci/internal/token"
	"github.com/onramp-go/cci/internal/types"
)

// initPos remembers the parent list and the slot index that was current
// when the walk descended into a subobject, so walking back up restores
// the exact position to advance from (the original threads this through
// node->parent and node->index; an explicit stack avoids widening
// ast.Node for a parser-only concern).
type initPos struct {
	node  *ast.Node
	index int
}

// parseInitializerList parses a braced initializer list targeting typ
// (parse_initializer_list), returning an ast.InitializerList node whose
// Initializers slice is indexed by array element / struct member position,
// with nested lists for subobjects whether or not the source braced them.
func (p *Parser) parseInitializerList(typ *types.Type) *ast.Node {
	tok := p.cur()
	p.expect("{")
	root := ast.NewWithToken(ast.InitializerList, &tok)
	root.Type = typ

	if p.cur().Is("}") {
		// {} is C23; accepted the same way the original accepts it.
		end := p.Lex.Take()
		root.EndTok = &end
		return root
	}

	node := root
	index := 0
	var stack []initPos // ancestors of node, innermost last

	for {
		// A designator resets the current position within the root object.
		if p.cur().Is("[") || p.cur().Is(".") {
			node = root
			stack = stack[:0]
			index = p.parseDesignators(typ, index, tok)
		}

		childType := p.subobjectType(node.Type, index, tok)

		if p.cur().Is("{") {
			// A nested brace replaces the child object entirely, overriding
			// any previous initializers for that slot.
			child := p.parseInitializerList(childType)
			p.setInitializer(node, index, child)
		} else {
			scalar := p.parseAssignmentExpression()

			// Walk down the type tree to the position this scalar
			// initializes: a record matched by a record expression of its
			// own type stops here, as does a char array matched by a string
			// literal; any other aggregate is being initialized by its
			// first element, potentially recursively.
			for {
				if childType.MatchesBase(types.Record) {
					if types.Equal(childType, scalar.Type) {
						break
					}
				} else if childType.IsArray() {
					if childType.Ref.MatchesBase(types.Char) && scalar.Kind == ast.String {
						break
					}
				} else {
					scalar = ast.CastTo(p.D, scalar, childType, nil)
					break
				}

				child := p.initializerChildList(node, index, childType, scalar.Tok)
				stack = append(stack, initPos{node, index})
				node = child
				index = 0
				childType = p.subobjectType(node.Type, index, tok)
			}

			p.setInitializer(node, index, scalar)
		}

		if !p.Lex.Accept(",") {
			end := p.cur()
			p.Lex.Expect("}", "Expected `,` or `}` after initializer list expression.")
			root.EndTok = &end
			break
		}
		if p.cur().Is("}") {
			end := p.Lex.Take()
			root.EndTok = &end
			break
		}

		// Walk to the next element, up the tree as subobjects fill. A
		// nested fixed-size array or struct that is full returns to its
		// parent's next slot; the root array tolerates excess elements
		// (dropped at code generation); a union takes exactly one
		// initializer.
		for {
			if node.Type.IsArray() {
				index++
				if node == root || node.Type.Declarator != types.Array || uint32(index) < node.Type.Count {
					break
				}
			} else if node.Type.MatchesBase(types.Record) {
				index++
				rec := node.Type.RecordType
				if rec.IsStruct && index < len(rec.Members) {
					break
				}
			}
			if node == root {
				p.fatalf("Too many initializers in this initializer list.")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			node = top.node
			index = top.index
		}
	}

	return root
}

// initializerChildList returns the initializer-list node for the subobject
// at parent[index], reusing one an earlier designator already created —
// its previously initialized slots are kept, not overridden — and creating
// it otherwise.
func (p *Parser) initializerChildList(parent *ast.Node, index int, typ *types.Type, tok *token.Token) *ast.Node {
	for len(parent.Initializers) <= index {
		parent.Initializers = append(parent.Initializers, nil)
	}
	if existing := parent.Initializers[index]; existing != nil && existing.Kind == ast.InitializerList {
		return existing
	}
	child := ast.NewWithToken(ast.InitializerList, tok)
	child.Type = typ
	p.setInitializer(parent, index, child)
	return child
}

// parseDesignators consumes zero or more leading `[index]`/`.field`
// designators, resetting cursor to the designated position (parse_init.c's
// designator handling). A designator sequence must be followed by `=`.
func (p *Parser) parseDesignators(typ *types.Type, cursor int, where diag.Located) int {
	found := false
	for {
		if p.cur().Is("[") {
			p.Lex.Consume()
			_, idx := p.ParseConstantExpression()
			p.expect("]")
			cursor = int(idx)
			found = true
			continue
		}
		if p.cur().Is(".") {
			p.Lex.Consume()
			nameTok := p.cur()
			if nameTok.Kind != token.Alphanumeric {
				p.fatalf("Expected a member name after `.` in a designated initializer.")
			}
			p.Lex.Consume()
			cursor = p.fieldIndex(typ, identText(nameTok), nameTok)
			found = true
			continue
		}
		break
	}
	if found {
		p.expect("=")
	}
	_ = where
	return cursor
}

// subobjectType resolves the type of the subobject at idx within the
// current target type: the element type for an array, or the type of
// member idx for a struct/union.
func (p *Parser) subobjectType(typ *types.Type, idx int, where diag.Located) *types.Type {
	if typ.IsArray() {
		if idx < 0 {
			p.D.Fatalf(where, "An initializer designator index cannot be negative.")
		}
		return typ.Ref
	}
	if typ.MatchesBase(types.Record) {
		members := typ.RecordType.Members
		if !typ.RecordType.IsStruct {
			if len(members) == 0 {
				p.D.Fatalf(where, "Cannot initialize an empty union.")
			}
			if idx != 0 {
				p.D.Fatalf(where, "A union initializer can only set its first member.")
			}
			return p.memberInitType(members[0], where)
		}
		if idx < 0 || idx >= len(members) {
			p.D.Fatalf(where, "Too many initializers given for this struct.")
		}
		return p.memberInitType(members[idx], where)
	}
	// A bare scalar wrapped in braces (the GNU `int x = {5};` elision) — the
	// single entry simply targets typ itself.
	return typ
}

// memberInitType rejects initializing a bit-field member: the code
// generator has no masked store, so a whole-unit write would corrupt
// sibling fields packed into the same storage unit.
func (p *Parser) memberInitType(m *types.Member, where diag.Located) *types.Type {
	if m.BitWidth >= 0 {
		p.D.Fatalf(where, "Not yet implemented: initializing a bit-field member.")
	}
	return m.Type
}

// fieldIndex resolves a `.field` designator's name to its member's ordinal
// position within typ's record (record.c's lookup, with the index rather
// than the *Member itself since initializer_list nodes index by position).
func (p *Parser) fieldIndex(typ *types.Type, name string, where diag.Located) int {
	if !typ.MatchesBase(types.Record) {
		p.D.Fatalf(where, "Cannot use a `.field` designator outside of a struct/union initializer.")
	}
	for i, m := range typ.RecordType.Members {
		if m.Name == name {
			return i
		}
	}
	p.D.Fatalf(where, "No member named `%s` in this struct/union.", name)
	return 0
}

// setInitializer stores child at position idx in node's sparse initializer
// vector, growing it as needed and warning (not erroring — C permits this)
// when a designator overrides a previously-set slot.
func (p *Parser) setInitializer(node *ast.Node, idx int, child *ast.Node) {
	for len(node.Initializers) <= idx {
		node.Initializers = append(node.Initializers, nil)
	}
	if node.Initializers[idx] != nil {
		p.D.Warn(diag.WarnInitializerOverrides, node.Tok, "initializer overrides a previously set value for this element")
	}
	child.Parent = node
	node.Initializers[idx] = child
}

// resolveIndeterminateArray fixes up `T x[] = {...}`'s element count from
// the number of initializers actually given (or a string literal's length),
// since the declarator itself carries no count for an indeterminate array
// (parse_variable_declaration's array-size inference from its initializer).
func resolveIndeterminateArray(typ *types.Type, initializer *ast.Node) *types.Type {
	if !typ.IsDeclarator || typ.Declarator != types.Indeterminate || initializer == nil {
		return typ
	}
	switch initializer.Kind {
	case ast.InitializerList:
		return types.NewArray(typ.Ref, uint32(len(initializer.Initializers)))
	case ast.String:
		return types.NewArray(typ.Ref, uint32(len(initializer.StrValue)+1))
	}
	return typ
}
