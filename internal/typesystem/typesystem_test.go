package typesystem

import "testing"

func TestInterningDeduplicates(t *testing.T) {
	in := NewInterner()
	vec := DefID{Index: 1}

	a := in.Adt(vec, "Vec", []*Type{in.Prim(I32)}, nil)
	b := in.Adt(vec, "Vec", []*Type{in.Prim(I32)}, nil)
	if a != b {
		t.Fatalf("structurally equal types were not deduplicated")
	}
	c := in.Adt(vec, "Vec", []*Type{in.Prim(U8)}, nil)
	if a == c {
		t.Fatalf("distinct types share a pointer")
	}
	if in.Tuple() != in.Unit() {
		t.Errorf("empty tuple is not unit")
	}
}

func TestInterningCopiesArgs(t *testing.T) {
	in := NewInterner()
	args := []*Type{in.Prim(I32), in.Prim(Bool)}
	tup := in.Tuple(args...)
	args[0] = in.Prim(Char)
	if tup.Args()[0] != in.Prim(I32) {
		t.Errorf("interned type aliased caller slice")
	}
}

func TestFlags(t *testing.T) {
	in := NewInterner()
	trait := DefID{Index: 2}
	self := in.Param(0, "Self")
	proj := in.Projection(ProjectionTy{Trait: TraitRef{Def: trait, Name: "Iterator", Self: self}, Item: "Item"})

	tests := []struct {
		name string
		ty   *Type
		has  Flags
		not  Flags
	}{
		{"prim", in.Prim(I32), 0, HasParams | HasInfer | HasProjection},
		{"param", in.Param(1, "T"), HasParams, HasSelf},
		{"self", self, HasParams | HasSelf, HasInfer},
		{"infer in box", in.Box(in.Infer(3)), HasInfer, HasParams},
		{"projection", proj, HasProjection | HasSelf, HasInfer},
		{"error in tuple", in.Tuple(in.Error()), HasError, 0},
		{"late ref", in.Ref(LateRegion(0, "a"), false, in.Prim(U8)), HasLateBound, HasEarlyRegions},
		{"static ref", in.Ref(Static, false, in.Prim(Str)), HasStaticRegion, HasFreeRegions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.has != 0 && tt.ty.Flags()&tt.has != tt.has {
				t.Errorf("%s: flags %b missing %b", tt.ty, tt.ty.Flags(), tt.has)
			}
			if tt.ty.Has(tt.not) {
				t.Errorf("%s: flags %b unexpectedly include %b", tt.ty, tt.ty.Flags(), tt.not)
			}
		})
	}
}

func TestSubst(t *testing.T) {
	in := NewInterner()
	vec := DefID{Index: 1}
	T := in.Param(0, "T")
	U := in.Param(1, "U")
	ty := in.Ref(EarlyRegion(0, "a"), false, in.Adt(vec, "Vec", []*Type{in.Tuple(T, U)}, nil))

	got := in.Subst(ty, Substs{Types: []*Type{in.Prim(I32), in.Prim(Bool)}, Regions: []Region{Static}})
	want := in.Ref(Static, false, in.Adt(vec, "Vec", []*Type{in.Tuple(in.Prim(I32), in.Prim(Bool))}, nil))
	if got != want {
		t.Errorf("Subst = %s, want %s", got, want)
	}

	partial := in.Subst(T, Substs{})
	if partial != T {
		t.Errorf("empty substitution changed %s into %s", T, partial)
	}
}

func TestEraseRegions(t *testing.T) {
	in := NewInterner()
	a := in.Ref(EarlyRegion(0, "a"), true, in.Prim(I32))
	b := in.Ref(Static, true, in.Prim(I32))
	if in.EraseRegions(a) != in.EraseRegions(b) {
		t.Errorf("erased %s and %s differ", a, b)
	}
	if got := in.EraseRegions(a).String(); got != "&mut i32" {
		t.Errorf("erased string = %q", got)
	}
}

func TestPrinting(t *testing.T) {
	in := NewInterner()
	iter := TraitRef{Def: DefID{Index: 4}, Name: "Iterator", Self: in.Param(1, "I")}
	tests := []struct {
		ty   *Type
		want string
	}{
		{in.Unit(), "()"},
		{in.Tuple(in.Prim(I32)), "(i32,)"},
		{in.Tuple(in.Prim(I32), in.Prim(Bool)), "(i32, bool)"},
		{in.Ptr(false, in.Prim(U8)), "*const u8"},
		{in.FnPtr([]*Type{in.Prim(I32)}, in.Prim(Bool)), "fn(i32) -> bool"},
		{in.FnPtr(nil, in.Unit()), "fn()"},
		{in.Infer(7), "$7"},
		{in.Projection(ProjectionTy{Trait: iter, Item: "Item"}), "<I as Iterator>::Item"},
		{in.Dynamic(DynTy{Def: iter.Def, Name: "Iterator", Bindings: []AssocBinding{{Item: "Item", Ty: in.Prim(I32)}}}), "dyn Iterator<Item = i32>"},
		{in.Ref(EarlyRegion(0, "a"), false, in.Prim(Str)), "&'a str"},
		{in.Error(), "{error}"},
	}
	for _, tt := range tests {
		if got := tt.ty.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := TraitPredicate(iter).String(); got != "I: Iterator" {
		t.Errorf("predicate = %q", got)
	}
}

func TestMayUnify(t *testing.T) {
	in := NewInterner()
	vec := DefID{Index: 1}
	vecOf := func(x *Type) *Type { return in.Adt(vec, "Vec", []*Type{x}, nil) }

	if !MayUnify(vecOf(in.Param(0, "T")), vecOf(in.Prim(I32))) {
		t.Errorf("Vec<T> rejected against Vec<i32>")
	}
	if MayUnify(vecOf(in.Prim(U8)), vecOf(in.Prim(I32))) {
		t.Errorf("Vec<u8> accepted against Vec<i32>")
	}
	if MayUnify(in.Prim(I32), in.Box(in.Prim(I32))) {
		t.Errorf("i32 accepted against Box<i32>")
	}
	if !MayUnify(in.Infer(0), in.Prim(I32)) {
		t.Errorf("inference variable rejected")
	}
}

func TestClosureKindExtends(t *testing.T) {
	if !ClosureFn.Extends(ClosureFnOnce) {
		t.Errorf("Fn closure must be usable as FnOnce")
	}
	if ClosureFnOnce.Extends(ClosureFn) {
		t.Errorf("FnOnce closure must not be usable as Fn")
	}
	if k, ok := ClosureKindFromTrait("FnMut"); !ok || k != ClosureFnMut {
		t.Errorf("ClosureKindFromTrait(FnMut) = %v, %v", k, ok)
	}
}
