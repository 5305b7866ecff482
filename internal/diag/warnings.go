package diag

// Warning identifies one warning category, matching options.h's warning_t
// (spec.md §6's -W<name> list).
type Warning int

const (
	WarnImplicitInt Warning = iota
	WarnZeroLengthArray
	WarnDiscardedQualifiers
	WarnImplicitlyUnsignedLiteral
	WarnInitializerOverrides
	WarnStatementExpressions
	WarnExtraKeywords
	WarnAnonymousTags
	WarnPointerArith
	WarnGNUCaseRange

	warningCount
)

// names maps the -W<name> command-line spelling to its Warning.
var names = map[string]Warning{
	"implicit-int":                WarnImplicitInt,
	"zero-length-array":           WarnZeroLengthArray,
	"discarded-qualifiers":        WarnDiscardedQualifiers,
	"implicitly-unsigned-literal": WarnImplicitlyUnsignedLiteral,
	"initializer-overrides":       WarnInitializerOverrides,
	"statement-expressions":       WarnStatementExpressions,
	"extra-keywords":              WarnExtraKeywords,
	"anonymous-tags":              WarnAnonymousTags,
	"pointer-arith":               WarnPointerArith,
	"gnu-case-range":              WarnGNUCaseRange,
}

// ByName resolves a -W<name> flag value to its Warning.
func ByName(name string) (Warning, bool) {
	w, ok := names[name]
	return w, ok
}

// groups expands -Wall/-Wextra/-Wpedantic to their member warnings,
// mirroring the original's warning_all/warning_extra/warning_pedantic
// group entries (spec.md §6 lists these as the recognized group names).
var groups = map[string][]Warning{
	"all": {
		WarnImplicitInt, WarnZeroLengthArray, WarnDiscardedQualifiers,
	},
	"extra": {
		WarnImplicitlyUnsignedLiteral, WarnInitializerOverrides, WarnPointerArith,
	},
	"pedantic": {
		WarnStatementExpressions, WarnExtraKeywords, WarnAnonymousTags, WarnGNUCaseRange,
	},
}

// AllGroups lists every recognized -W group name, for CLI help text.
var AllGroups = []string{"all", "extra", "pedantic"}
