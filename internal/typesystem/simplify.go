package typesystem

import "fmt"

// SimplifiedType is the outer constructor of a type, used to reject impls
// cheaply before unification and to bucket impls by self type.
type SimplifiedType struct {
	Kind  Kind
	Name  string
	Def   DefID
	Arity int
	Mut   bool
}

// Simplify returns the outer constructor of t. Parameters, inference
// variables, projections and the error type have none.
func Simplify(t *Type) (SimplifiedType, bool) {
	switch t.kind {
	case KindPrim:
		return SimplifiedType{Kind: KindPrim, Name: t.name}, true
	case KindAdt:
		return SimplifiedType{Kind: KindAdt, Name: t.name, Def: t.def}, true
	case KindRef, KindPtr:
		return SimplifiedType{Kind: t.kind, Mut: t.mut}, true
	case KindBox:
		return SimplifiedType{Kind: KindBox}, true
	case KindTuple:
		return SimplifiedType{Kind: KindTuple, Arity: len(t.args)}, true
	case KindFnPtr:
		return SimplifiedType{Kind: KindFnPtr, Arity: len(t.args) - 1}, true
	case KindClosure:
		return SimplifiedType{Kind: KindClosure, Name: t.name, Def: t.def}, true
	case KindDynamic:
		return SimplifiedType{Kind: KindDynamic, Name: t.dyn.Name, Def: t.dyn.Def}, true
	}
	return SimplifiedType{}, false
}

// MayUnify is a conservative pre-filter: false means a and b can never be made equal.
func MayUnify(a, b *Type) bool {
	sa, okA := Simplify(a)
	sb, okB := Simplify(b)
	if !okA || !okB {
		return true
	}
	if sa != sb {
		return false
	}
	for i := range a.args {
		if a.kind == KindClosure {
			break
		}
		if i < len(b.args) && !MayUnify(a.args[i], b.args[i]) {
			return false
		}
	}
	return true
}

func (s SimplifiedType) String() string {
	switch s.Kind {
	case KindPrim, KindAdt, KindClosure:
		return s.Name
	case KindDynamic:
		return "dyn " + s.Name
	case KindRef:
		if s.Mut {
			return "&mut _"
		}
		return "&_"
	case KindPtr:
		if s.Mut {
			return "*mut _"
		}
		return "*const _"
	case KindBox:
		return "Box<_>"
	case KindTuple:
		return fmt.Sprintf("(tuple/%d)", s.Arity)
	case KindFnPtr:
		return fmt.Sprintf("fn/%d", s.Arity)
	}
	return s.Kind.String()
}
