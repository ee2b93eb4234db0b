package traits

import ts "github.com/funvibe/traitsolver/internal/typesystem"

// wellFormedObligations lists what must hold for t to be a valid type:
// ADT where-clauses, implementability of projections, object safety of
// trait objects and outlives requirements of references. Components that
// are still inference variables get their own deferred WF obligation.
func (s *SelectionContext) wellFormedObligations(o *Obligation, t *ts.Type) []*Obligation {
	var out []*Obligation
	cause := o.Cause.Derive(CauseWellFormed, ts.TraitRef{}, ts.DefID{})
	push := func(p ts.Predicate) {
		out = append(out, o.Derived(cause, p))
	}

	ts.Walk(t, func(c *ts.Type) bool {
		switch c.Kind() {
		case ts.KindInfer:
			if c != t {
				push(ts.WellFormedPredicate(c))
			}
			return false
		case ts.KindAdt:
			adt, ok := s.tcx.Tables.Adt(c.Def())
			if !ok {
				return true
			}
			substs := ts.Substs{Types: c.Args(), Regions: c.Regions()}
			for _, p := range adt.Generics.Predicates {
				push(s.tcx.Types.SubstPredicate(p, substs))
			}
		case ts.KindProjection:
			push(ts.TraitPredicate(c.Projection().Trait))
		case ts.KindDynamic:
			for _, def := range s.tcx.SupertraitDefs(c.Dyn().Def) {
				push(ts.ObjectSafePredicate(def, s.tcx.Tables.ItemName(def)))
			}
		case ts.KindRef:
			push(ts.TypeOutlivesPredicate(c.Elem(), c.Region()))
		}
		return true
	})
	return out
}

// WellFormed returns the obligations for t being well-formed in env.
func (s *SelectionContext) WellFormed(cause *ObligationCause, env *ParamEnv, t *ts.Type) []*Obligation {
	return s.wellFormedObligations(NewObligation(cause, env, ts.WellFormedPredicate(t)), s.infcx.Resolve(t))
}
