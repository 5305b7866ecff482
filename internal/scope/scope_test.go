package scope

import (
	"testing"

	"github.com/onramp-go/cci/internal/types"
)

func TestNewStackInstallsBuiltinsAndVaList(t *testing.T) {
	s := NewStack()
	if sym := s.Global.FindSymbol("__builtin_va_start", false); sym == nil {
		t.Fatal("expected __builtin_va_start to be installed in the global scope")
	} else if sym.Kind != KindBuiltin || sym.Builtin != BuiltinVAStart {
		t.Errorf("unexpected builtin symbol: %+v", sym)
	}
	if sym := s.Global.FindSymbol("__func__", false); sym == nil || sym.Builtin != BuiltinFunc {
		t.Fatal("expected __func__ builtin to be installed")
	}
}

func TestSymbolLookupRecursesToParent(t *testing.T) {
	s := NewStack()
	outer := NewSymbol(KindVariable, types.NewBase(types.SignedInt), nil, "x", "")
	s.Global.AddSymbol(outer)

	s.Push()
	if got := s.Current.FindSymbol("x", false); got != nil {
		t.Fatal("non-recursive lookup must not see the parent scope")
	}
	if got := s.Current.FindSymbol("x", true); got != outer {
		t.Fatal("recursive lookup must find the symbol in the parent scope")
	}
	s.Pop()
	if s.Current != s.Global {
		t.Fatal("Pop must return to the parent scope")
	}
}

func TestInnerSymbolShadowsOuter(t *testing.T) {
	s := NewStack()
	outer := NewSymbol(KindVariable, types.NewBase(types.SignedInt), nil, "x", "")
	s.Global.AddSymbol(outer)
	s.Push()
	inner := NewSymbol(KindVariable, types.NewBase(types.Char), nil, "x", "")
	s.Current.AddSymbol(inner)
	if got := s.Current.FindSymbol("x", true); got != inner {
		t.Fatal("inner declaration must shadow the outer one")
	}
}

func TestAddTypeAllowsIdenticalTypedefRedeclaration(t *testing.T) {
	sc := New(nil)
	intT := types.NewBase(types.SignedInt)
	var dup *types.Type
	sc.AddType(NamespaceTypedef, "my_int", intT, func(p *types.Type) { dup = p })
	sc.AddType(NamespaceTypedef, "my_int", intT, func(p *types.Type) { dup = p })
	if dup != nil {
		t.Fatal("identical typedef redeclaration must not be reported as a duplicate")
	}
}

func TestAddTypeReportsConflictingTypedef(t *testing.T) {
	sc := New(nil)
	intT := types.NewBase(types.SignedInt)
	charT := types.NewBase(types.Char)
	sc.AddType(NamespaceTypedef, "my_int", intT, nil)
	var reported *types.Type
	sc.AddType(NamespaceTypedef, "my_int", charT, func(p *types.Type) { reported = p })
	if reported != intT {
		t.Fatal("expected the conflicting redeclaration to report the previous type")
	}
}

func TestTagAndTypedefNamespacesAreDistinct(t *testing.T) {
	sc := New(nil)
	record := types.TypeFromRecord(types.NewRecordType("point", true))
	sc.AddType(NamespaceTag, "point", record, nil)
	if sc.FindType(NamespaceTypedef, "point", false) != nil {
		t.Fatal("a tag must not be visible in the typedef namespace")
	}
	if sc.FindType(NamespaceTag, "point", false) != record {
		t.Fatal("expected to find the tag by name")
	}
}

func TestTakeAndApplyRestoresPrototypeScope(t *testing.T) {
	s := NewStack()
	s.Push()
	param := NewSymbol(KindVariable, types.NewBase(types.SignedInt), nil, "n", "")
	s.Current.AddSymbol(param)
	proto := s.Take()
	if s.Current != s.Global {
		t.Fatal("Take must pop back to the parent")
	}

	s.Apply(proto)
	if s.Current.FindSymbol("n", false) == nil {
		t.Fatal("Apply must bring the prototype scope's symbols back into view")
	}
	s.Pop()
}

func TestEmitTentativeDefinitionsOnlyVisitsTentativeGlobals(t *testing.T) {
	s := NewStack()
	tentative := NewSymbol(KindVariable, types.NewBase(types.SignedInt), nil, "g", "")
	tentative.IsTentative = true
	defined := NewSymbol(KindVariable, types.NewBase(types.SignedInt), nil, "h", "")
	s.Global.AddSymbol(tentative)
	s.Global.AddSymbol(defined)

	var emitted []string
	s.EmitTentativeDefinitions(func(sym *Symbol) { emitted = append(emitted, sym.Name) })
	if len(emitted) != 1 || emitted[0] != "g" {
		t.Fatalf("expected only the tentative symbol to be emitted, got %v", emitted)
	}
}
