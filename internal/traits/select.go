package traits

import (
	"github.com/funvibe/traitsolver/internal/infer"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Selection is the evidence that an obligation holds.
type Selection struct {
	Kind CandidateKind
	// Impl and Substs identify the impl and the instantiation of its generics.
	Impl   ts.DefID
	Substs ts.Substs
	// Param is the where-clause used by a ParamCandidate.
	Param ts.TraitRef
	// FnTy is the closure or fn pointer type whose signature is used.
	FnTy *ts.Type
	// Object is the object's supertrait that matched.
	Object ts.TraitRef
	// Nested must hold for the selection to be valid.
	Nested []*Obligation
}

// SelectionContext selects candidates within one inference context.
type SelectionContext struct {
	tcx   *Ctxt
	infcx *infer.InferCtxt
	mode  ProjectionMode

	// stack holds the trait refs being evaluated, innermost last.
	stack []ts.TraitRef
}

func NewSelectionContext(tcx *Ctxt, infcx *infer.InferCtxt, mode ProjectionMode) *SelectionContext {
	return &SelectionContext{tcx: tcx, infcx: infcx, mode: mode}
}

func (s *SelectionContext) Ctxt() *Ctxt { return s.tcx }

func (s *SelectionContext) Infcx() *infer.InferCtxt { return s.infcx }

func (s *SelectionContext) Mode() ProjectionMode { return s.mode }

// Select resolves a trait obligation. A nil Selection with a nil error
// means the obligation is ambiguous and should be retried later.
//
// Projections in the trait ref are normalized first, so candidates are
// matched and cached against the normalized ref. The obligations of the
// normalization become nested obligations of the selection.
func (s *SelectionContext) Select(o *Obligation) (*Selection, error) {
	tr := s.infcx.ResolveTraitRef(o.Predicate.Trait)
	if !tr.Has(ts.HasProjection) {
		return s.selectNormalized(o.WithPredicate(ts.TraitPredicate(tr)), tr)
	}

	snap := s.infcx.StartSnapshot()
	tr, obligations := s.normalizeTraitRefWithDepth(o.Cause, o.ParamEnv, o.Depth, tr)
	sel, err := s.selectNormalized(o.WithPredicate(ts.TraitPredicate(tr)), tr)
	if sel == nil && err == nil {
		// Ambiguous: drop the placeholders so a retry starts clean.
		s.infcx.RollbackTo(snap)
		return nil, nil
	}
	s.infcx.Commit(snap)
	if err != nil {
		return nil, err
	}
	sel.Nested = append(sel.Nested, obligations...)
	return sel, nil
}

func (s *SelectionContext) selectNormalized(o *Obligation, tr ts.TraitRef) (*Selection, error) {
	cand, err := s.candidateFromObligation(o, tr)
	if err != nil || cand == nil {
		return nil, err
	}
	return s.confirmCandidate(o, tr, cand)
}

func (s *SelectionContext) candidateFromObligation(o *Obligation, tr ts.TraitRef) (*Candidate, error) {
	// Fallout of an earlier error: hold silently.
	if tr.Has(ts.HasError) {
		return &Candidate{Kind: BuiltinCandidate}, nil
	}
	if o.Depth >= s.tcx.Sess.RecursionLimit() {
		s.tcx.reporter.ReportOverflow(o)
	}

	if e, ok := s.checkCache(o.ParamEnv, tr); ok {
		return e.candidate, e.err
	}

	cand, err := s.candidateFromObligationNoCache(o, tr)
	if cand == nil && err == nil {
		return nil, nil
	}
	s.insertCache(o.ParamEnv, tr, cacheEntry{candidate: cand, err: err})
	return cand, err
}

func (s *SelectionContext) candidateFromObligationNoCache(o *Obligation, tr ts.TraitRef) (*Candidate, error) {
	cs, err := s.assembleCandidates(o, tr)
	if err != nil {
		return nil, err
	}
	if cs.ambiguous {
		return nil, nil
	}

	candidates := cs.vec
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	// Winnow: drop candidates whose nested obligations definitely fail.
	if len(candidates) > 1 {
		kept := candidates[:0:0]
		for _, c := range candidates {
			if s.evaluateCandidate(o, tr, c).MayApply() {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}
	candidates = preferByPrecedence(candidates)

	switch len(candidates) {
	case 0:
		return nil, errUnimplemented
	case 1:
		return candidates[0], nil
	}
	return nil, nil
}

// preferByPrecedence keeps only the candidates of the highest precedence present.
func preferByPrecedence(cands []*Candidate) []*Candidate {
	best := -1
	for _, c := range cands {
		best = max(best, c.Kind.precedence())
	}
	out := cands[:0:0]
	for _, c := range cands {
		if c.Kind.precedence() == best {
			out = append(out, c)
		}
	}
	return out
}

// matchImpl instantiates an impl with fresh variables and unifies its
// header with tr. Callers run it inside a probe or commit.
func (s *SelectionContext) matchImpl(impl ts.DefID, header ts.TraitRef, nTypes, nRegions int, tr ts.TraitRef) (ts.Substs, error) {
	substs := s.infcx.FreshSubsts(nTypes, nRegions)
	h := s.tcx.Types.SubstTraitRef(header, substs)
	if err := s.infcx.EqTraitRefs(h, tr); err != nil {
		return ts.Substs{}, err
	}
	return substs, nil
}
