package traits

import ts "github.com/funvibe/traitsolver/internal/typesystem"

type normalizer struct {
	s           *SelectionContext
	origin      *Obligation
	obligations []*Obligation
}

func (n *normalizer) FoldType(t *ts.Type) *ts.Type {
	if !t.Has(ts.HasProjection) {
		return t
	}
	t = n.s.tcx.Types.SuperFold(t, n)
	if t.Kind() != ts.KindProjection || t.Has(ts.HasLateBound) {
		// Projections under a higher-ranked binder wait until the binder is instantiated.
		return t
	}
	ty, obligations := n.s.NormalizeProjectionType(n.origin, *t.Projection())
	n.obligations = append(n.obligations, obligations...)
	return ty
}

func (n *normalizer) FoldRegion(r ts.Region) ts.Region { return r }

// Normalize replaces every projection in t by its value. Projections that
// cannot be resolved yet become inference variables constrained by the
// returned obligations.
func (s *SelectionContext) Normalize(cause *ObligationCause, env *ParamEnv, t *ts.Type) (*ts.Type, []*Obligation) {
	return s.normalizeWithDepth(cause, env, 0, t)
}

func (s *SelectionContext) normalizeWithDepth(cause *ObligationCause, env *ParamEnv, depth int, t *ts.Type) (*ts.Type, []*Obligation) {
	t = s.infcx.Resolve(t)
	if !t.Has(ts.HasProjection) {
		return t, nil
	}
	n := &normalizer{s: s, origin: &Obligation{Cause: cause, ParamEnv: env, Depth: depth}}
	return n.FoldType(t), n.obligations
}

// NormalizeTraitRef normalizes every type of tr.
func (s *SelectionContext) NormalizeTraitRef(cause *ObligationCause, env *ParamEnv, tr ts.TraitRef) (ts.TraitRef, []*Obligation) {
	return s.normalizeTraitRefWithDepth(cause, env, 0, tr)
}

func (s *SelectionContext) normalizeTraitRefWithDepth(cause *ObligationCause, env *ParamEnv, depth int, tr ts.TraitRef) (ts.TraitRef, []*Obligation) {
	tr = s.infcx.ResolveTraitRef(tr)
	if !tr.Has(ts.HasProjection) {
		return tr, nil
	}
	n := &normalizer{s: s, origin: &Obligation{Cause: cause, ParamEnv: env, Depth: depth}}
	return s.tcx.Types.FoldTraitRef(tr, n), n.obligations
}

// normalizePredicate normalizes a predicate derived from o, one level deeper.
func (s *SelectionContext) normalizePredicate(o *Obligation, cause *ObligationCause, pred ts.Predicate) (ts.Predicate, []*Obligation) {
	if !pred.Has(ts.HasProjection) {
		return pred, nil
	}
	n := &normalizer{s: s, origin: &Obligation{Cause: cause, ParamEnv: o.ParamEnv, Depth: o.Depth + 1}}
	if pred.Kind == ts.PredProjection {
		// The projection itself is the subject; only its expected type is normalized.
		pred.Ty = n.FoldType(pred.Ty)
		return pred, n.obligations
	}
	return s.tcx.Types.FoldPredicate(pred, n), n.obligations
}
