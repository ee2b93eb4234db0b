package traits

import (
	"github.com/funvibe/traitsolver/internal/infer"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// EvaluationResult is the outcome of evaluating an obligation without
// committing to any inference side effects.
type EvaluationResult uint8

const (
	EvaluatedToOk EvaluationResult = iota
	EvaluatedToAmbig
	EvaluatedToErr
)

// MayApply reports whether the obligation might hold.
func (r EvaluationResult) MayApply() bool { return r != EvaluatedToErr }

func (r EvaluationResult) String() string {
	switch r {
	case EvaluatedToOk:
		return "ok"
	case EvaluatedToAmbig:
		return "ambiguous"
	}
	return "error"
}

func worst(a, b EvaluationResult) EvaluationResult {
	return max(a, b)
}

// EvaluateObligation decides whether o may hold. Inference side effects are
// rolled back.
func (s *SelectionContext) EvaluateObligation(o *Obligation) EvaluationResult {
	return infer.Probe(s.infcx, func() EvaluationResult {
		return s.evaluatePredicateRecursively(o)
	})
}

// PredicateMayHold is EvaluateObligation reduced to a boolean.
func (s *SelectionContext) PredicateMayHold(o *Obligation) bool {
	return s.EvaluateObligation(o).MayApply()
}

func (s *SelectionContext) evaluateCandidate(o *Obligation, tr ts.TraitRef, c *Candidate) EvaluationResult {
	return infer.Probe(s.infcx, func() EvaluationResult {
		sel, err := s.confirmCandidate(o, tr, c)
		if err != nil {
			return EvaluatedToErr
		}
		return s.evaluateAll(sel.Nested)
	})
}

func (s *SelectionContext) evaluateAll(obligations []*Obligation) EvaluationResult {
	result := EvaluatedToOk
	for _, o := range obligations {
		result = worst(result, s.evaluatePredicateRecursively(o))
		if result == EvaluatedToErr {
			return result
		}
	}
	return result
}

func (s *SelectionContext) evaluatePredicateRecursively(o *Obligation) EvaluationResult {
	pred := s.infcx.ResolvePredicate(o.Predicate)
	switch pred.Kind {
	case ts.PredTrait:
		return s.evaluateTrait(o.WithPredicate(pred))
	case ts.PredProjection:
		ty, nested, err := s.projectAndUnify(o.WithPredicate(pred))
		switch {
		case err != nil:
			return EvaluatedToErr
		case ty == nil:
			return EvaluatedToAmbig
		}
		return s.evaluateAll(nested)
	case ts.PredEquate:
		if err := s.infcx.Eq(pred.A, pred.Ty); err != nil {
			return EvaluatedToErr
		}
		return EvaluatedToOk
	case ts.PredObjectSafe:
		if len(s.tcx.ObjectSafetyViolations(pred.TraitDef)) > 0 {
			return EvaluatedToErr
		}
		return EvaluatedToOk
	case ts.PredClosureKind:
		closure := s.infcx.Shallow(pred.Ty)
		if closure.Kind() != ts.KindClosure {
			return EvaluatedToAmbig
		}
		if !closure.ClosureKind().Extends(pred.Closure) {
			return EvaluatedToErr
		}
		return EvaluatedToOk
	case ts.PredWellFormed:
		t := s.infcx.Shallow(pred.Ty)
		if t.IsInfer() {
			return EvaluatedToAmbig
		}
		return s.evaluateAll(s.wellFormedObligations(o, t))
	}
	// Outlives predicates are accepted; regions are checked elsewhere.
	return EvaluatedToOk
}

func (s *SelectionContext) evaluateTrait(o *Obligation) EvaluationResult {
	// Always inside a probe; the normalization needs no snapshot of its own.
	tr, normalized := s.normalizeTraitRefWithDepth(o.Cause, o.ParamEnv, o.Depth, o.Predicate.Trait)
	o = o.WithPredicate(ts.TraitPredicate(tr))
	if !tr.Has(ts.HasInfer) {
		for _, onStack := range s.stack {
			if onStack.Equal(tr) {
				// A cycle neither proves nor refutes the obligation.
				return EvaluatedToAmbig
			}
		}
	}
	s.stack = append(s.stack, tr)
	defer func() { s.stack = s.stack[:len(s.stack)-1] }()

	cand, err := s.candidateFromObligation(o, tr)
	if err != nil {
		return EvaluatedToErr
	}
	if cand == nil {
		return EvaluatedToAmbig
	}
	sel, err := s.confirmCandidate(o, tr, cand)
	if err != nil {
		return EvaluatedToErr
	}
	return s.evaluateAll(append(sel.Nested, normalized...))
}
