package traits

import (
	"testing"

	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// badTrait declares a trait with one violation of each method kind:
//
//	trait Bad {
//	    fn new() -> Self;
//	    fn consume(self);
//	    fn same(&self, other: Self) -> bool;
//	    fn map<U>(&self, u: U);
//	    fn sized_only(self) where Self: Sized;
//	}
func badTrait(w *world) *symbols.TraitDef {
	self := w.self()
	def := w.trait("Bad")
	def.Methods = []*symbols.MethodSig{
		{Name: "new", Receiver: symbols.NoReceiver, Output: self},
		{Name: "consume", Receiver: symbols.ByValue, Output: w.in.Unit()},
		{Name: "same", Receiver: symbols.ByRef, Inputs: []*ts.Type{self}, Output: w.prim(ts.Bool)},
		{Name: "map", Receiver: symbols.ByRef, Inputs: []*ts.Type{w.in.Param(1, "U")}, TypeParams: []string{"U"}},
		{Name: "sized_only", Receiver: symbols.ByValue, WhereSelfSized: true},
	}
	return w.define(def)
}

func TestObjectSafetyViolations(t *testing.T) {
	w := newWorld(t)
	bad := badTrait(w)

	iter := w.trait("Iter")
	iter.AssocTypes = []*symbols.AssocTypeDef{{Name: "Item"}}
	itemOfSelf := w.project(iter.Ref(w.self(), nil, nil), "Item")
	iter.Methods = []*symbols.MethodSig{{Name: "next", Receiver: symbols.ByMutRef, Output: itemOfSelf}}
	w.define(iter)

	sizedSuper := w.trait("NeedsSized")
	sizedSuper.Supertraits = []ts.TraitRef{w.sized.Ref(w.self(), nil, nil)}
	w.define(sizedSuper)

	eq := w.trait("PartialEq", "Rhs")
	w.define(eq)
	selfSuper := w.trait("Ord")
	selfSuper.Supertraits = []ts.TraitRef{eq.Ref(w.self(), []*ts.Type{w.self()}, nil)}
	w.define(selfSuper)

	child := w.trait("Child")
	child.Supertraits = []ts.TraitRef{bad.Ref(w.self(), nil, nil)}
	w.define(child)

	tcx := w.solver()
	tests := []struct {
		name string
		def  *symbols.TraitDef
		want []ViolationKind
	}{
		{"methods", bad, []ViolationKind{MethodStatic, MethodByValueSelf, MethodReferencesSelf, MethodGeneric}},
		{"projection out of self is fine", iter, nil},
		{"sized supertrait", sizedSuper, []ViolationKind{SizedSelf}},
		{"self in supertrait args", selfSuper, []ViolationKind{SupertraitSelf}},
		{"inherited", child, []ViolationKind{MethodStatic, MethodByValueSelf, MethodReferencesSelf, MethodGeneric}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tcx.ObjectSafetyViolations(tt.def.ID)
			if len(got) != len(tt.want) {
				t.Fatalf("violations = %s", dump(got))
			}
			for i, v := range got {
				if v.Kind != tt.want[i] {
					t.Errorf("violation %d = %s, want kind %d", i, v, tt.want[i])
				}
			}
			if tcx.IsObjectSafe(tt.def.ID) != (len(tt.want) == 0) {
				t.Errorf("IsObjectSafe disagrees with the violation list")
			}
		})
	}
}
