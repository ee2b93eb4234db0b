package traits

import (
	"testing"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// containerWorld declares
//
//	trait Container { type Item; }
//	impl<T> Container for Vec<T> { type Item = T; }
func containerWorld(t *testing.T) (*world, *symbols.TraitDef, *symbols.AdtDef) {
	w := newWorld(t)
	container := w.trait("Container")
	container.AssocTypes = []*symbols.AssocTypeDef{{Name: "Item"}}
	w.define(container)
	vec := w.adt("Vec", "T")
	tParam := w.in.Param(0, "T")
	impl := w.impl(container.Ref(w.ty(vec, tParam), nil, nil), []string{"T"})
	impl.AssocTypes = []*symbols.ImplAssocType{{Name: "Item", Ty: tParam}}
	return w, container, vec
}

func (w *world) project(tr ts.TraitRef, item string) *ts.Type {
	return w.in.Projection(ts.ProjectionTy{Trait: tr, Item: item})
}

func TestNormalizeBlanketImpl(t *testing.T) {
	w, container, vec := containerWorld(t)
	s := w.selcx(ModeAnyFinal)

	proj := w.project(container.Ref(w.ty(vec, w.prim(ts.I32)), nil, nil), "Item")
	ty, obligations := s.Normalize(NewCause(diagnostics.Span{}, CauseGoal), s.Ctxt().EmptyParamEnv(), proj)
	if ty != w.prim(ts.I32) {
		t.Errorf("normalized to %s, want i32", ty)
	}
	if len(obligations) != 0 {
		t.Errorf("unexpected obligations: %v", obligations)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	w, container, vec := containerWorld(t)
	s := w.selcx(ModeAnyFinal)
	cause := NewCause(diagnostics.Span{}, CauseGoal)

	inner := w.project(container.Ref(w.ty(vec, w.prim(ts.Bool)), nil, nil), "Item")
	outer := w.project(container.Ref(w.ty(vec, w.ty(vec, inner)), nil, nil), "Item")

	tests := []*ts.Type{
		inner,
		outer,
		w.in.Tuple(inner, w.in.Ref(ts.Erased, false, outer)),
		w.prim(ts.U8),
	}
	for _, typ := range tests {
		once, _ := s.Normalize(cause, s.Ctxt().EmptyParamEnv(), typ)
		twice, obligations := s.Normalize(cause, s.Ctxt().EmptyParamEnv(), once)
		if once != twice {
			t.Errorf("normalize(%s): %s then %s", typ, once, twice)
		}
		if len(obligations) != 0 {
			t.Errorf("re-normalizing %s produced obligations %v", once, obligations)
		}
		if once.Has(ts.HasProjection) {
			t.Errorf("normalize(%s) = %s still has projections", typ, once)
		}
	}
}

func TestProjectionOnInferVarIsAmbiguous(t *testing.T) {
	w, container, _ := containerWorld(t)
	s := w.selcx(ModeAnyFinal)
	v := s.Infcx().NewVar()

	ty, obligations := s.Normalize(NewCause(diagnostics.Span{}, CauseGoal), s.Ctxt().EmptyParamEnv(), w.project(container.Ref(v, nil, nil), "Item"))
	if !ty.IsInfer() || len(obligations) != 1 {
		t.Fatalf("Normalize = %s, %v; want a fresh variable and one obligation", ty, obligations)
	}
	if obligations[0].Predicate.Kind != ts.PredProjection {
		t.Fatalf("deferred obligation is %s", obligations[0].Predicate)
	}

	f := NewFulfillmentContext()
	f.RegisterObligations(obligations)
	if errs := f.SelectWherePossible(s); len(errs) != 0 {
		t.Errorf("ambiguous projection reported as error: %v", errs)
	}
	if len(f.PendingObligations()) != 1 {
		t.Errorf("pending = %v, want the projection obligation", f.PendingObligations())
	}

	// Once the self type is known the obligation resolves.
	vec, _ := w.tbl.Lookup("Vec")
	adt, _ := w.tbl.Adt(vec)
	if err := s.Infcx().Eq(v, w.ty(adt, w.prim(ts.Char))); err != nil {
		t.Fatal(err)
	}
	if errs := f.SelectWherePossible(s); len(errs) != 0 {
		t.Fatalf("errors after resolution: %v", errs)
	}
	if got := s.Infcx().Resolve(ty); got != w.prim(ts.Char) {
		t.Errorf("variable resolved to %s, want char", got)
	}
}

func TestTwoWhereClausesAreTooManyCandidates(t *testing.T) {
	w, container, _ := containerWorld(t)
	tParam := w.in.Param(0, "T")
	tr := container.Ref(tParam, nil, nil)
	proj := ts.ProjectionTy{Trait: tr, Item: "Item"}

	tcx := w.solver()
	env := tcx.NewParamEnv([]ts.Predicate{
		ts.TraitPredicate(tr),
		ts.ProjectionPredicate(proj, w.prim(ts.I32)),
		ts.ProjectionPredicate(proj, w.prim(ts.U8)),
	})
	s := w.selcx(ModeAnyFinal)
	_, perr := s.projectType(NewObligation(nil, env, ts.TraitPredicate(tr)), proj)
	if perr == nil || perr.kind != tooManyCandidates {
		t.Fatalf("projectType error = %v, want too many candidates", perr)
	}

	// A single where-clause wins over the impl-free trait.
	env = tcx.NewParamEnv([]ts.Predicate{ts.TraitPredicate(tr), ts.ProjectionPredicate(proj, w.prim(ts.I32))})
	ty, _ := s.Normalize(NewCause(diagnostics.Span{}, CauseGoal), env, w.in.Projection(proj))
	if ty != w.prim(ts.I32) {
		t.Errorf("normalized to %s, want i32", ty)
	}
}

func TestFailedProjectionBecomesErrorType(t *testing.T) {
	w, container, _ := containerWorld(t)
	s := w.selcx(ModeAnyFinal)

	proj := w.project(container.Ref(w.prim(ts.U8), nil, nil), "Item")
	ty, obligations := s.Normalize(NewCause(diagnostics.Span{Line: 4}, CauseGoal), s.Ctxt().EmptyParamEnv(), w.in.Tuple(proj, proj))
	if ty != w.in.Tuple(w.in.Error(), w.in.Error()) {
		t.Errorf("normalized to %s", ty)
	}

	errs := w.fulfill(s, obligations...)
	if len(errs) == 0 {
		t.Fatal("trait obligation was lost")
	}
	if got := w.diagnostics(diagnostics.ErrUnimplemented); len(got) != 1 {
		t.Errorf("unimplemented reported %d times, want once: %s", len(got), dump(got))
	}
}

func TestProjectionModes(t *testing.T) {
	w := newWorld(t)
	tr := w.trait("Assoc")
	tr.AssocTypes = []*symbols.AssocTypeDef{{Name: "Out"}}
	w.define(tr)
	leaf := w.adt("Leaf")
	impl := w.impl(tr.Ref(w.ty(leaf), nil, nil), nil)
	impl.AssocTypes = []*symbols.ImplAssocType{{Name: "Out", Ty: w.prim(ts.I64), Default: true}}

	proj := w.project(tr.Ref(w.ty(leaf), nil, nil), "Out")
	tests := []struct {
		mode ProjectionMode
		want *ts.Type
	}{
		{ModeAnyFinal, proj},
		{ModeTopmost, proj},
		{ModeAny, w.prim(ts.I64)},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			s := w.selcx(tt.mode)
			ty, _ := s.Normalize(NewCause(diagnostics.Span{}, CauseGoal), s.Ctxt().EmptyParamEnv(), proj)
			if ty != tt.want {
				t.Errorf("normalized to %s, want %s", ty, tt.want)
			}
		})
	}
}

// An impl that takes the trait's default for an item gives no value in
// topmost mode: the projection stays abstract instead of becoming an error.
func TestTopmostLeavesTraitDefaultAbstract(t *testing.T) {
	w := newWorld(t)
	tr := w.trait("Assoc")
	tr.AssocTypes = []*symbols.AssocTypeDef{{Name: "Out", Default: w.prim(ts.U8)}}
	w.define(tr)
	leaf := w.adt("Leaf")
	w.impl(tr.Ref(w.ty(leaf), nil, nil), nil)

	proj := w.project(tr.Ref(w.ty(leaf), nil, nil), "Out")
	tests := []struct {
		mode ProjectionMode
		want *ts.Type
	}{
		{ModeTopmost, proj},
		{ModeAnyFinal, proj},
		{ModeAny, w.prim(ts.U8)},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			s := w.selcx(tt.mode)
			ty, obligations := s.Normalize(NewCause(diagnostics.Span{}, CauseGoal), s.Ctxt().EmptyParamEnv(), proj)
			if ty != tt.want {
				t.Errorf("normalized to %s, want %s", ty, tt.want)
			}
			if ty.Has(ts.HasError) {
				t.Errorf("projection became an error type")
			}
			if len(obligations) != 0 {
				t.Errorf("unexpected obligations: %s", dump(obligations))
			}
		})
	}
	if all := w.sink.All(); len(all) != 0 {
		t.Errorf("unexpected diagnostics:\n%s", dump(all))
	}
}

func TestTraitDefaultAndTraitDefBounds(t *testing.T) {
	w := newWorld(t)
	iter := w.trait("Iter")
	iter.AssocTypes = []*symbols.AssocTypeDef{{Name: "Item", Default: w.prim(ts.U32)}}
	w.define(iter)
	counter := w.adt("Counter")
	w.impl(iter.Ref(w.ty(counter), nil, nil), nil)

	// trait Outer { type Inner: Iter<Item = bool>; }
	outer := w.trait("Outer")
	innerProj := w.project(outer.Ref(w.self(), nil, nil), "Inner")
	innerIter := iter.Ref(innerProj, nil, nil)
	outer.AssocTypes = []*symbols.AssocTypeDef{{
		Name: "Inner",
		Bounds: []ts.Predicate{
			ts.TraitPredicate(innerIter),
			ts.ProjectionPredicate(ts.ProjectionTy{Trait: innerIter, Item: "Item"}, w.prim(ts.Bool)),
		},
	}}
	w.define(outer)

	s := w.selcx(ModeAny)
	ty, _ := s.Normalize(nil, s.Ctxt().EmptyParamEnv(), w.project(iter.Ref(w.ty(counter), nil, nil), "Item"))
	if ty != w.prim(ts.U32) {
		t.Errorf("trait default gave %s, want u32", ty)
	}

	// <<T as Outer>::Inner as Iter>::Item where T: Outer
	tParam := w.in.Param(0, "T")
	env := w.solver().NewParamEnv([]ts.Predicate{ts.TraitPredicate(outer.Ref(tParam, nil, nil))})
	nested := w.project(iter.Ref(w.project(outer.Ref(tParam, nil, nil), "Inner"), nil, nil), "Item")
	s = w.selcx(ModeAnyFinal)
	ty, obligations := s.Normalize(nil, env, nested)
	if ty != w.prim(ts.Bool) {
		t.Errorf("declared bound gave %s, want bool", ty)
	}
	if errs := w.fulfill(s, obligations...); len(errs) != 0 {
		t.Errorf("errors: %v", errs)
	}
}

// iter2 is a fresh Iter trait for worlds that need their own ids.
func iter2(w *world) *symbols.TraitDef {
	def := w.trait("Iter")
	def.AssocTypes = []*symbols.AssocTypeDef{{Name: "Item"}}
	return def
}

func TestCallableOutputProjection(t *testing.T) {
	w := newWorld(t)
	s := w.selcx(ModeAnyFinal)
	args := w.in.Tuple(w.prim(ts.I32))

	tests := []struct {
		name string
		self *ts.Type
	}{
		{"closure", w.in.Closure(ts.DefID{Index: 901}, "c", ts.ClosureFn, []*ts.Type{w.prim(ts.I32)}, w.prim(ts.Bool))},
		{"fn pointer", w.in.FnPtr([]*ts.Type{w.prim(ts.I32)}, w.prim(ts.Bool))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj := w.project(w.fnOnce.Ref(tt.self, []*ts.Type{args}, nil), config.OutputItemName)
			ty, obligations := s.Normalize(nil, s.Ctxt().EmptyParamEnv(), proj)
			if ty != w.prim(ts.Bool) {
				t.Errorf("output = %s, want bool", ty)
			}
			if errs := w.fulfill(s, obligations...); len(errs) != 0 {
				t.Errorf("nested obligations failed: %v", errs)
			}
		})
	}
}

func TestObjectBindingProjection(t *testing.T) {
	w := newWorld(t)
	iter := iter2(w)
	w.define(iter)
	obj := w.in.Dynamic(ts.DynTy{Def: iter.ID, Name: iter.Name, Bindings: []ts.AssocBinding{{Item: "Item", Ty: w.prim(ts.Char)}}})

	s := w.selcx(ModeAnyFinal)
	ty, _ := s.Normalize(nil, s.Ctxt().EmptyParamEnv(), w.project(iter.Ref(obj, nil, nil), "Item"))
	if ty != w.prim(ts.Char) {
		t.Errorf("object binding gave %s, want char", ty)
	}
}
