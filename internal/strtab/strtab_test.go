package strtab

import "testing"

func TestInternDeduplicates(t *testing.T) {
	tab := New()
	a := tab.Intern("hello")
	b := tab.Intern("hello")
	if a != b {
		t.Fatalf("expected same pointer for equal content, got %p and %p", a, b)
	}
	if tab.Len() != 1 {
		t.Fatalf("expected 1 distinct string, got %d", tab.Len())
	}
}

func TestDerefRemovesOnZero(t *testing.T) {
	tab := New()
	a := tab.Intern("x")
	tab.Intern("x") // refcount now 2
	tab.Deref(a)
	if tab.Len() != 1 {
		t.Fatalf("string should still be present after one deref, got len=%d", tab.Len())
	}
	tab.Deref(a)
	if tab.Len() != 0 {
		t.Fatalf("string should be gone after refcount reaches zero, got len=%d", tab.Len())
	}
	// re-interning after full release allocates a fresh entry.
	c := tab.Intern("x")
	if c == a {
		t.Fatalf("expected a fresh allocation after full deref")
	}
}

func TestGrowPreservesLookup(t *testing.T) {
	tab := New()
	seen := make(map[string]*String)
	for i := 0; i < 500; i++ {
		s := tab.Intern(string(rune('a'+i%26)) + string(rune(i)))
		seen[s.Bytes()] = s
	}
	for content, want := range seen {
		if got := tab.Intern(content); got != want {
			t.Fatalf("lookup after grow mismatched for %q", content)
		}
	}
}
