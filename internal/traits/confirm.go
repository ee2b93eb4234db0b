package traits

import (
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// confirmCandidate commits to c: unifies the obligation with the
// candidate and collects the nested obligations it requires.
func (s *SelectionContext) confirmCandidate(o *Obligation, tr ts.TraitRef, c *Candidate) (*Selection, error) {
	switch c.Kind {
	case ParamCandidate:
		return s.confirmParamCandidate(tr, c)
	case ImplCandidate:
		return s.confirmImplCandidate(o, tr, c)
	case ClosureCandidate:
		return s.confirmClosureCandidate(o, tr)
	case FnPointerCandidate:
		return s.confirmFnPointerCandidate(o, tr)
	case BuiltinCandidate:
		return s.confirmBuiltinCandidate(o, tr, c)
	case ObjectCandidate:
		return s.confirmObjectCandidate(tr, c)
	}
	s.tcx.Sess.Bug("unknown candidate kind %v", c.Kind)
	return nil, nil
}

func (s *SelectionContext) confirmParamCandidate(tr ts.TraitRef, c *Candidate) (*Selection, error) {
	if err := s.infcx.EqTraitRefs(c.Param, tr); err != nil {
		return nil, &SelectionError{Kind: Unimplemented, Err: err}
	}
	return &Selection{Kind: ParamCandidate, Param: c.Param}, nil
}

func (s *SelectionContext) confirmImplCandidate(o *Obligation, tr ts.TraitRef, c *Candidate) (*Selection, error) {
	impl, ok := s.tcx.Tables.Impl(c.Impl)
	if !ok {
		s.tcx.Sess.Bug("impl %s vanished during selection", c.Impl)
	}
	header, _ := impl.TraitRefFor(tr.Def)
	substs, err := s.matchImpl(impl.ID, header, impl.Generics.Len(), len(impl.Generics.Regions), tr)
	if err != nil {
		return nil, &SelectionError{Kind: Unimplemented, Err: err}
	}

	parent := s.infcx.ResolveTraitRef(tr)
	cause := o.Cause.Derive(CauseImplDerived, parent, impl.ID)
	var nested []*Obligation
	for _, p := range impl.Generics.Predicates {
		pred := s.tcx.Types.SubstPredicate(p, substs)
		pred, extra := s.normalizePredicate(o, cause, pred)
		nested = append(nested, extra...)
		nested = append(nested, o.Derived(cause, pred))
	}
	return &Selection{Kind: ImplCandidate, Impl: impl.ID, Substs: substs, Nested: nested}, nil
}

// closureTraitRef is the trait ref a callable type satisfies for the call
// trait of tr: `F: Fn<(A, B)>`.
func (s *SelectionContext) closureTraitRef(tr ts.TraitRef, fnTy *ts.Type) ts.TraitRef {
	args := s.tcx.Types.Tuple(fnTy.Inputs()...)
	return ts.TraitRef{Def: tr.Def, Name: tr.Name, Self: fnTy, Args: []*ts.Type{args}}
}

func (s *SelectionContext) confirmCallable(tr ts.TraitRef, fnTy *ts.Type) error {
	expected := s.closureTraitRef(tr, fnTy)
	if len(tr.Args) != 1 {
		return &SelectionError{Kind: OutputTypeParameterMismatch, Expected: expected, Found: tr}
	}
	if err := s.infcx.Eq(expected.Args[0], tr.Args[0]); err != nil {
		return &SelectionError{
			Kind:     OutputTypeParameterMismatch,
			Expected: s.infcx.ResolveTraitRef(expected),
			Found:    s.infcx.ResolveTraitRef(tr),
			Err:      err,
		}
	}
	return nil
}

func (s *SelectionContext) confirmClosureCandidate(o *Obligation, tr ts.TraitRef) (*Selection, error) {
	closure := s.infcx.Shallow(tr.Self)
	if err := s.confirmCallable(tr, closure); err != nil {
		return nil, err
	}
	kind, _ := s.tcx.closureKindOf(tr.Def)
	cause := o.Cause.Derive(CauseBuiltinDerived, tr, closure.Def())
	nested := []*Obligation{o.Derived(cause, ts.ClosureKindPredicate(closure, kind))}
	return &Selection{Kind: ClosureCandidate, FnTy: closure, Nested: nested}, nil
}

func (s *SelectionContext) confirmFnPointerCandidate(o *Obligation, tr ts.TraitRef) (*Selection, error) {
	fnTy := s.infcx.Shallow(tr.Self)
	if err := s.confirmCallable(tr, fnTy); err != nil {
		return nil, err
	}
	return &Selection{Kind: FnPointerCandidate, FnTy: fnTy}, nil
}

func (s *SelectionContext) confirmBuiltinCandidate(o *Obligation, tr ts.TraitRef, c *Candidate) (*Selection, error) {
	cause := o.Cause.Derive(CauseBuiltinDerived, tr, tr.Def)
	nested := make([]*Obligation, 0, len(c.Nested))
	for _, t := range c.Nested {
		nested = append(nested, o.Derived(cause, ts.TraitPredicate(tr.WithSelf(t))))
	}
	return &Selection{Kind: BuiltinCandidate, Nested: nested}, nil
}

func (s *SelectionContext) confirmObjectCandidate(tr ts.TraitRef, c *Candidate) (*Selection, error) {
	if err := s.infcx.EqTraitRefs(c.Upcast, tr); err != nil {
		return nil, &SelectionError{Kind: Unimplemented, Err: err}
	}
	return &Selection{Kind: ObjectCandidate, Object: c.Upcast}, nil
}
