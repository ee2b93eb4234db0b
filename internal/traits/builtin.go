package traits

import ts "github.com/funvibe/traitsolver/internal/typesystem"

type builtinKind uint8

const (
	// builtinNone means the builtin rules say nothing; impls and
	// where-clauses decide.
	builtinNone builtinKind = iota
	builtinYes
	builtinAmbiguous
)

type builtinCondition struct {
	kind   builtinKind
	nested []*ts.Type
}

var (
	condNone      = builtinCondition{kind: builtinNone}
	condYes       = builtinCondition{kind: builtinYes}
	condAmbiguous = builtinCondition{kind: builtinAmbiguous}
)

func condYesIf(nested []*ts.Type) builtinCondition {
	return builtinCondition{kind: builtinYes, nested: nested}
}

// sizedConditions: every type has a statically known size except str and
// trait objects. Type parameters are Sized only through a where-clause.
func sizedConditions(self *ts.Type) builtinCondition {
	switch self.Kind() {
	case ts.KindInfer:
		return condAmbiguous
	case ts.KindPrim:
		if self.IsPrim(ts.Str) {
			return condNone
		}
		return condYes
	case ts.KindTuple:
		return condYesIf(self.Args())
	case ts.KindDynamic, ts.KindParam:
		return condNone
	}
	return condYes
}

// copyConditions: scalars, shared references, raw pointers and fn pointers
// are Copy; tuples are Copy when their elements are. ADTs, parameters and
// projections need an impl or a where-clause.
func copyConditions(self *ts.Type) builtinCondition {
	switch self.Kind() {
	case ts.KindInfer:
		return condAmbiguous
	case ts.KindPrim:
		if self.IsPrim(ts.Str) {
			return condNone
		}
		return condYes
	case ts.KindRef:
		if self.Mutable() {
			return condNone
		}
		return condYes
	case ts.KindPtr, ts.KindFnPtr:
		return condYes
	case ts.KindTuple:
		return condYesIf(self.Args())
	case ts.KindError:
		return condYes
	}
	return condNone
}
