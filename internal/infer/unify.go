package infer

import (
	"fmt"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// TypeErrorKind classifies unification failures.
type TypeErrorKind uint8

const (
	Mismatch TypeErrorKind = iota
	MutabilityMismatch
	ArityMismatch
	CyclicType
	TraitMismatch
)

// TypeError explains why two types could not be made equal. Expected and
// Found are the innermost pair that failed.
type TypeError struct {
	Kind     TypeErrorKind
	Expected *ts.Type
	Found    *ts.Type
}

func (e *TypeError) Error() string {
	switch e.Kind {
	case MutabilityMismatch:
		return fmt.Sprintf("types differ in mutability: expected `%s`, found `%s`", e.Expected, e.Found)
	case ArityMismatch:
		return fmt.Sprintf("expected a type with a different number of elements: expected `%s`, found `%s`", e.Expected, e.Found)
	case CyclicType:
		return fmt.Sprintf("cyclic type of infinite size: `%s` occurs in `%s`", e.Expected, e.Found)
	case TraitMismatch:
		return fmt.Sprintf("expected trait `%s`, found trait `%s`", e.Expected, e.Found)
	}
	return fmt.Sprintf("expected `%s`, found `%s`", e.Expected, e.Found)
}

type variance uint8

const (
	invariant variance = iota
	covariant
)

// Eq makes a and b equal, binding variables as needed. On failure the
// bindings made so far are kept; callers run inside a snapshot.
func (ic *InferCtxt) Eq(a, b *ts.Type) error {
	return ic.relate(a, b, invariant)
}

// Sub makes a a subtype of b. Types relate invariantly; only regions of
// references record an outlives constraint instead of requiring equality.
func (ic *InferCtxt) Sub(a, b *ts.Type) error {
	return ic.relate(a, b, covariant)
}

// EqTraitRefs unifies two references to the same trait.
func (ic *InferCtxt) EqTraitRefs(a, b ts.TraitRef) error {
	if a.Def != b.Def || len(a.Args) != len(b.Args) {
		return &TypeError{
			Kind:     TraitMismatch,
			Expected: ic.Types.Dynamic(ts.DynTy{Def: a.Def, Name: a.Name}),
			Found:    ic.Types.Dynamic(ts.DynTy{Def: b.Def, Name: b.Name}),
		}
	}
	if err := ic.Eq(a.Self, b.Self); err != nil {
		return err
	}
	for i := range a.Args {
		if err := ic.Eq(a.Args[i], b.Args[i]); err != nil {
			return err
		}
	}
	ic.relateRegionLists(a.Regions, b.Regions, invariant)
	return nil
}

// SubTraitRefs relates two trait refs covariantly.
func (ic *InferCtxt) SubTraitRefs(a, b ts.TraitRef) error {
	if a.Def != b.Def {
		return ic.EqTraitRefs(a, b)
	}
	if err := ic.Sub(a.Self, b.Self); err != nil {
		return err
	}
	for i := range a.Args {
		if err := ic.Sub(a.Args[i], b.Args[i]); err != nil {
			return err
		}
	}
	ic.relateRegionLists(a.Regions, b.Regions, covariant)
	return nil
}

// EqProjections unifies two projections structurally, without normalizing.
func (ic *InferCtxt) EqProjections(a, b ts.ProjectionTy) error {
	if a.Item != b.Item {
		return &TypeError{Kind: Mismatch, Expected: ic.Types.Projection(a), Found: ic.Types.Projection(b)}
	}
	return ic.EqTraitRefs(a.Trait, b.Trait)
}

func (ic *InferCtxt) relate(a, b *ts.Type, v variance) error {
	a = ic.Shallow(a)
	b = ic.Shallow(b)
	if a == b {
		return nil
	}
	if a.IsInfer() {
		return ic.bind(a, b)
	}
	if b.IsInfer() {
		return ic.bind(b, a)
	}
	if a.IsError() || b.IsError() {
		return nil
	}
	if a.Kind() != b.Kind() {
		return &TypeError{Kind: Mismatch, Expected: b, Found: a}
	}

	switch a.Kind() {
	case ts.KindAdt:
		if a.Def() != b.Def() || len(a.Args()) != len(b.Args()) {
			return &TypeError{Kind: Mismatch, Expected: b, Found: a}
		}
		ic.relateRegionLists(a.Regions(), b.Regions(), v)
		return ic.relateAll(a.Args(), b.Args(), v)
	case ts.KindRef:
		if a.Mutable() != b.Mutable() {
			return &TypeError{Kind: MutabilityMismatch, Expected: b, Found: a}
		}
		ic.relateRegions(a.Region(), b.Region(), v)
		if a.Mutable() {
			return ic.relate(a.Elem(), b.Elem(), invariant)
		}
		return ic.relate(a.Elem(), b.Elem(), v)
	case ts.KindPtr:
		if a.Mutable() != b.Mutable() {
			return &TypeError{Kind: MutabilityMismatch, Expected: b, Found: a}
		}
		return ic.relate(a.Elem(), b.Elem(), invariant)
	case ts.KindBox:
		return ic.relate(a.Elem(), b.Elem(), v)
	case ts.KindTuple:
		if len(a.Args()) != len(b.Args()) {
			return &TypeError{Kind: ArityMismatch, Expected: b, Found: a}
		}
		return ic.relateAll(a.Args(), b.Args(), v)
	case ts.KindFnPtr:
		if len(a.Inputs()) != len(b.Inputs()) {
			return &TypeError{Kind: ArityMismatch, Expected: b, Found: a}
		}
		if err := ic.relateAll(a.Inputs(), b.Inputs(), invariant); err != nil {
			return err
		}
		return ic.relate(a.Output(), b.Output(), v)
	case ts.KindClosure:
		if a.Def() != b.Def() {
			return &TypeError{Kind: Mismatch, Expected: b, Found: a}
		}
		if err := ic.relateAll(a.Inputs(), b.Inputs(), invariant); err != nil {
			return err
		}
		return ic.relate(a.Output(), b.Output(), invariant)
	case ts.KindProjection:
		if err := ic.EqProjections(*a.Projection(), *b.Projection()); err != nil {
			return &TypeError{Kind: Mismatch, Expected: b, Found: a}
		}
		return nil
	case ts.KindDynamic:
		da, db := a.Dyn(), b.Dyn()
		if da.Def != db.Def || len(da.Args) != len(db.Args) || len(da.Bindings) != len(db.Bindings) {
			return &TypeError{Kind: Mismatch, Expected: b, Found: a}
		}
		if err := ic.relateAll(da.Args, db.Args, invariant); err != nil {
			return err
		}
		for _, ba := range da.Bindings {
			tb, ok := db.Binding(ba.Item)
			if !ok {
				return &TypeError{Kind: Mismatch, Expected: b, Found: a}
			}
			if err := ic.relate(ba.Ty, tb, invariant); err != nil {
				return err
			}
		}
		return nil
	}
	// Distinct primitives, parameters and closures never unify.
	return &TypeError{Kind: Mismatch, Expected: b, Found: a}
}

func (ic *InferCtxt) relateAll(as, bs []*ts.Type, v variance) error {
	for i := range as {
		if err := ic.relate(as[i], bs[i], v); err != nil {
			return err
		}
	}
	return nil
}

func (ic *InferCtxt) bind(v, t *ts.Type) error {
	if t.Has(ts.HasInfer) {
		if ts.Contains(ic.Resolve(t), v) {
			return &TypeError{Kind: CyclicType, Expected: v, Found: ic.Resolve(t)}
		}
	}
	id := v.Index()
	ic.vars[id] = t
	ic.log(undoEntry{kind: undoBindVar, varID: id})
	return nil
}

func (ic *InferCtxt) relateRegionLists(as, bs []ts.Region, v variance) {
	for i := range as {
		if i < len(bs) {
			ic.relateRegions(as[i], bs[i], v)
		}
	}
}

// relateRegions never fails: region checking happens after selection.
func (ic *InferCtxt) relateRegions(a, b ts.Region, v variance) {
	if a == b || a.Kind == ts.ReErased || b.Kind == ts.ReErased {
		return
	}
	ic.addConstraint(RegionConstraint{Sub: a, Sup: b})
	if v == invariant {
		ic.addConstraint(RegionConstraint{Sub: b, Sup: a})
	}
}

func (ic *InferCtxt) addConstraint(c RegionConstraint) {
	ic.constraints = append(ic.constraints, c)
	ic.log(undoEntry{kind: undoConstraint})
}
