// Package strtab implements the deduplicated string interning table used
// throughout the compiler for identifiers, keywords, filenames and symbol
// names, so that equality between two interned strings is a pointer
// comparison (spec.md §3, "Interned string").
package strtab

import "hash/fnv"

// String is an interned, immutable byte sequence. Two Strings with equal
// content obtained from the same Table are the same *String; comparing
// pointers is comparing content.
type String struct {
	bytes    string
	hash     uint64
	refcount int
	next     *String // intrusive chain link within its bucket
}

// Bytes returns the interned content.
func (s *String) Bytes() string { return s.bytes }

// Table is a process-wide (or scope-local, for tests) intern table: FNV-1a
// hashed, separate-chained buckets of *String, matching spec.md §4.2.
type Table struct {
	buckets []*String
	count   int
}

// New creates an empty intern table with a starting bucket count.
func New() *Table {
	return &Table{buckets: make([]*String, 64)}
}

// Len reports how many distinct strings are currently interned.
func (t *Table) Len() int { return t.count }

func hashBytes(b string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(b))
	return h.Sum64()
}

// Intern returns the unique *String for the given content, incrementing its
// refcount. A freshly-interned string starts at refcount 1.
func (t *Table) Intern(content string) *String {
	h := hashBytes(content)
	idx := h % uint64(len(t.buckets))
	for s := t.buckets[idx]; s != nil; s = s.next {
		if s.hash == h && s.bytes == content {
			s.refcount++
			return s
		}
	}

	if t.count >= len(t.buckets)*2 {
		t.grow()
		idx = h % uint64(len(t.buckets))
	}

	s := &String{bytes: content, hash: h, refcount: 1, next: t.buckets[idx]}
	t.buckets[idx] = s
	t.count++
	return s
}

// Deref decrements the refcount of s and removes it from the table once it
// reaches zero, matching the reference-counted lifecycle in spec.md §3.
func (t *Table) Deref(s *String) {
	s.refcount--
	if s.refcount > 0 {
		return
	}
	idx := s.hash % uint64(len(t.buckets))
	prev := &t.buckets[idx]
	for cur := *prev; cur != nil; cur = cur.next {
		if cur == s {
			*prev = cur.next
			t.count--
			return
		}
		prev = &cur.next
	}
}

func (t *Table) grow() {
	old := t.buckets
	t.buckets = make([]*String, len(old)*2)
	for _, head := range old {
		for s := head; s != nil; {
			next := s.next
			idx := s.hash % uint64(len(t.buckets))
			s.next = t.buckets[idx]
			t.buckets[idx] = s
			s = next
		}
	}
}
