package traits

import (
	"testing"

	"github.com/funvibe/traitsolver/internal/diagnostics"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

func TestFulfillmentBindsThroughProjections(t *testing.T) {
	w, container, vec := containerWorld(t)
	s := w.selcx(ModeAnyFinal)
	v := s.Infcx().NewVar()

	// <Vec<u64> as Container>::Item == $0, then $0 == u64 holds.
	proj := ts.ProjectionTy{Trait: container.Ref(w.ty(vec, w.prim(ts.U64)), nil, nil), Item: "Item"}
	errs := w.fulfill(s,
		w.obligation(ts.ProjectionPredicate(proj, v)),
		w.obligation(ts.EquatePredicate(v, w.prim(ts.U64))),
	)
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if got := s.Infcx().Resolve(v); got != w.prim(ts.U64) {
		t.Errorf("$0 = %s, want u64", got)
	}
}

func TestProjectionMismatchIsReported(t *testing.T) {
	w, container, vec := containerWorld(t)
	s := w.selcx(ModeAnyFinal)

	proj := ts.ProjectionTy{Trait: container.Ref(w.ty(vec, w.prim(ts.U64)), nil, nil), Item: "Item"}
	errs := w.fulfill(s, w.obligation(ts.ProjectionPredicate(proj, w.prim(ts.Bool))))
	if len(errs) != 1 || errs[0].Kind != CodeProjectionError {
		t.Fatalf("errors = %v", errs)
	}
	got := w.diagnostics(diagnostics.ErrProjectionMismatch)
	if len(got) != 1 {
		t.Fatalf("diagnostics = %s", dump(w.sink.All()))
	}
	if want := "type mismatch resolving `<Vec<u64> as Container>::Item == bool`"; got[0].Message != want {
		t.Errorf("message = %q, want %q", got[0].Message, want)
	}
}

func TestWellFormedAdtWhereClauses(t *testing.T) {
	w := newWorld(t)
	show := w.define(w.trait("Show"))
	w.impl(show.Ref(w.prim(ts.I32), nil, nil), nil)
	wrapper := w.adt("Wrapper", "T")
	wrapper.Generics.Predicates = []ts.Predicate{ts.TraitPredicate(show.Ref(w.in.Param(0, "T"), nil, nil))}

	tests := []struct {
		name string
		ty   *ts.Type
		errs int
	}{
		{"bound holds", w.ty(wrapper, w.prim(ts.I32)), 0},
		{"bound fails", w.ty(wrapper, w.prim(ts.Bool)), 1},
		{"nested", w.in.Ref(ts.Static, false, w.ty(wrapper, w.ty(wrapper, w.prim(ts.Bool)))), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := w.selcx(ModeAnyFinal)
			errs := w.fulfill(s, w.obligation(ts.WellFormedPredicate(tt.ty)))
			if len(errs) != tt.errs {
				t.Errorf("WF(%s): %d errors, want %d: %v", tt.ty, len(errs), tt.errs, errs)
			}
		})
	}
}

func TestPendingObligationsKeepOrder(t *testing.T) {
	w := newWorld(t)
	show := w.define(w.trait("Show"))
	s := w.selcx(ModeAnyFinal)
	a, b := s.Infcx().NewVar(), s.Infcx().NewVar()

	f := NewFulfillmentContext()
	f.RegisterObligations([]*Obligation{
		w.obligation(ts.TraitPredicate(show.Ref(a, nil, nil))),
		w.obligation(ts.TraitPredicate(show.Ref(b, nil, nil))),
	})
	if errs := f.SelectWherePossible(s); len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	pending := f.PendingObligations()
	if len(pending) != 2 || pending[0].Predicate.Trait.Self != a || pending[1].Predicate.Trait.Self != b {
		t.Errorf("pending = %v", pending)
	}
}
