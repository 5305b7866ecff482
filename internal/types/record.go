package types

import "github.com/onramp-go/cci/internal/token"

// Member is one field of a RecordType (record.h's member_t).
type Member struct {
	Name    string
	NameTok *token.Token
	Type    *Type
	Offset  uint32

	// BitWidth is -1 for an ordinary member, or the field width in bits for
	// a bit-field. BitOffset is only meaningful when BitWidth >= 0: it is
	// the shift, within the 4-byte storage unit at Offset, where the field
	// starts.
	BitWidth  int
	BitOffset int
}

// RecordType is a struct or union's layout (record.h's record_t). Members
// are added in declaration order; Size and Alignment are finalized
// incrementally as members are appended, matching the original's
// single-pass layout in parse_decl.c's struct/union parser.
type RecordType struct {
	Tag       string // empty for an anonymous struct/union
	IsStruct  bool   // false for a union
	IsDefined bool   // false for a forward-declared incomplete tag
	Size      uint32
	Alignment uint32
	Members   []*Member

	// Flattened lookup including members promoted out of anonymous nested
	// structs/unions, so Find("x") sees through `struct { struct { int x; }; }`.
	byName map[string]*Member
}

// NewRecordType creates an incomplete (not-yet-defined) struct or union tag.
func NewRecordType(tag string, isStruct bool) *RecordType {
	return &RecordType{
		Tag:       tag,
		IsStruct:  isStruct,
		Alignment: 1,
		byName:    make(map[string]*Member),
	}
}

func roundUp(offset, alignment uint32) uint32 {
	if alignment == 0 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

// AppendMember lays out a new ordinary (non-bit-field) member and returns
// it. For a struct this advances Size past the member's natural alignment
// and width; for a union it leaves Offset at 0 and widens Size to the
// largest member seen so far (record.c's struct vs union layout split).
func (r *RecordType) AppendMember(tok *token.Token, name string, typ *Type) *Member {
	align := Alignment(typ)
	size := Size(typ)

	var offset uint32
	if r.IsStruct {
		offset = roundUp(r.Size, align)
		r.Size = offset + size
	} else {
		offset = 0
		if size > r.Size {
			r.Size = size
		}
	}
	if align > r.Alignment {
		r.Alignment = align
	}

	m := &Member{Name: name, NameTok: tok, Type: typ, Offset: offset, BitWidth: -1}
	r.Members = append(r.Members, m)
	if name != "" {
		r.byName[name] = m
	} else {
		r.absorbAnonymous(typ, offset)
	}
	return m
}

// AppendBitField lays out a bit-field member of the given width within
// the current 4-byte storage unit, opening a new unit when the field would
// not fit in the one in progress — record.c packs bit-fields into
// sequential int-sized storage units rather than spilling across them.
func (r *RecordType) AppendBitField(tok *token.Token, name string, typ *Type, width int) *Member {
	const unit uint32 = 4
	const unitBits = 32

	var offset uint32
	var bitOffset int
	if r.IsStruct {
		if len(r.Members) > 0 {
			last := r.Members[len(r.Members)-1]
			if last.BitWidth >= 0 && last.Offset+unit == roundUp(r.Size, unit) &&
				last.BitOffset+last.BitWidth+width <= unitBits {
				offset = last.Offset
				bitOffset = last.BitOffset + last.BitWidth
				goto place
			}
		}
		offset = roundUp(r.Size, unit)
		r.Size = offset + unit
		bitOffset = 0
	} else {
		offset = 0
		if unit > r.Size {
			r.Size = unit
		}
		bitOffset = 0
	}
place:
	if unit > r.Alignment {
		r.Alignment = unit
	}
	m := &Member{Name: name, NameTok: tok, Type: typ, Offset: offset, BitWidth: width, BitOffset: bitOffset}
	r.Members = append(r.Members, m)
	if name != "" {
		r.byName[name] = m
	}
	return m
}

// absorbAnonymous makes every member of an anonymous nested struct/union
// findable by name on the enclosing record, with its offset rebased onto
// base (C11 6.7.2.1p13's anonymous-member transparency).
func (r *RecordType) absorbAnonymous(typ *Type, base uint32) {
	if typ.Base != Record || typ.RecordType == nil {
		return
	}
	for name, m := range typ.RecordType.byName {
		rebased := *m
		rebased.Offset += base
		r.byName[name] = &rebased
	}
}

// Find looks up a member by name, including anonymous-member promotion.
func (r *RecordType) Find(name string) (*Member, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Define marks a forward-declared tag as fully defined; IsDefined gates
// Size/Alignment/IsPassedIndirectly from being evaluated on an incomplete
// type (record.c calls this the point a record becomes "complete").
func (r *RecordType) Define() { r.IsDefined = true }
