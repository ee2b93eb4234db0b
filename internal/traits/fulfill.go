package traits

import (
	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/traitsolver/internal/infer"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// FulfillmentContext holds obligations until they are proven, refuted or
// found to be ambiguous.
type FulfillmentContext struct {
	// pending is a stack: nested obligations are processed before their
	// siblings.
	pending []*Obligation
	// done holds the keys of proven obligations without inference variables.
	done *set.Set[string]
}

func NewFulfillmentContext() *FulfillmentContext {
	return &FulfillmentContext{done: set.New[string](16)}
}

// RegisterObligation adds o to the pending set.
func (f *FulfillmentContext) RegisterObligation(o *Obligation) {
	f.pending = append(f.pending, o)
}

// RegisterObligations adds every obligation, keeping their order.
func (f *FulfillmentContext) RegisterObligations(obligations []*Obligation) {
	for i := len(obligations) - 1; i >= 0; i-- {
		f.RegisterObligation(obligations[i])
	}
}

// PendingObligations returns the obligations not yet decided.
func (f *FulfillmentContext) PendingObligations() []*Obligation {
	out := make([]*Obligation, len(f.pending))
	for i, o := range f.pending {
		out[len(f.pending)-1-i] = o
	}
	return out
}

type processResult uint8

const (
	processed processResult = iota
	stalled
	failed
)

// SelectWherePossible processes obligations until no more progress can be
// made. Ambiguous obligations remain pending.
func (f *FulfillmentContext) SelectWherePossible(s *SelectionContext) []*FulfillmentError {
	var errs []*FulfillmentError
	for {
		progress := false
		var stuck []*Obligation
		for len(f.pending) > 0 {
			o := f.pending[len(f.pending)-1]
			f.pending = f.pending[:len(f.pending)-1]

			nested, res, err := f.processObligation(s, o)
			switch res {
			case processed:
				progress = true
				f.RegisterObligations(nested)
			case stalled:
				stuck = append(stuck, o)
			case failed:
				progress = true
				errs = append(errs, err)
			}
		}
		// Restore the stalled obligations in their original order.
		for i := len(stuck) - 1; i >= 0; i-- {
			f.pending = append(f.pending, stuck[i])
		}
		if !progress || len(f.pending) == 0 {
			return errs
		}
	}
}

// SelectAllOrError processes everything and turns what is still pending
// into ambiguity errors.
func (f *FulfillmentContext) SelectAllOrError(s *SelectionContext) []*FulfillmentError {
	errs := f.SelectWherePossible(s)
	for _, o := range f.PendingObligations() {
		errs = append(errs, &FulfillmentError{Obligation: o, Kind: CodeAmbiguity})
	}
	f.pending = nil
	return errs
}

func (f *FulfillmentContext) processObligation(s *SelectionContext, o *Obligation) ([]*Obligation, processResult, *FulfillmentError) {
	pred := s.infcx.ResolvePredicate(o.Predicate)
	o = o.WithPredicate(pred)

	var key string
	if !pred.Has(ts.HasInfer) {
		key = pred.Key()
		if f.done.Contains(key) {
			return nil, processed, nil
		}
	}

	nested, res, err := f.processPredicate(s, o)
	if res == processed && key != "" {
		f.done.Insert(key)
	}
	return nested, res, err
}

func (f *FulfillmentContext) processPredicate(s *SelectionContext, o *Obligation) ([]*Obligation, processResult, *FulfillmentError) {
	pred := o.Predicate
	switch pred.Kind {
	case ts.PredTrait:
		sel, err := s.Select(o)
		if err != nil {
			return nil, failed, &FulfillmentError{Obligation: o, Kind: CodeSelectionError, Err: err}
		}
		if sel == nil {
			return nil, stalled, nil
		}
		return sel.Nested, processed, nil

	case ts.PredProjection:
		type outcome struct {
			ty     *ts.Type
			nested []*Obligation
		}
		res, err := infer.CommitIf(s.infcx, func() (outcome, error) {
			ty, nested, err := s.projectAndUnify(o)
			return outcome{ty, nested}, err
		})
		if err != nil {
			return nil, failed, &FulfillmentError{Obligation: o, Kind: CodeProjectionError, Err: err}
		}
		if res.ty == nil {
			return nil, stalled, nil
		}
		return res.nested, processed, nil

	case ts.PredEquate:
		_, err := infer.CommitIf(s.infcx, func() (struct{}, error) {
			return struct{}{}, s.infcx.Eq(pred.A, pred.Ty)
		})
		if err != nil {
			return nil, failed, &FulfillmentError{Obligation: o, Kind: CodeEquateError, Err: err}
		}
		return nil, processed, nil

	case ts.PredRegionOutlives, ts.PredTypeOutlives:
		return nil, processed, nil

	case ts.PredObjectSafe:
		if len(s.tcx.ObjectSafetyViolations(pred.TraitDef)) > 0 {
			err := &SelectionError{Kind: TraitNotObjectSafe, Trait: pred.TraitDef}
			return nil, failed, &FulfillmentError{Obligation: o, Kind: CodeSelectionError, Err: err}
		}
		return nil, processed, nil

	case ts.PredClosureKind:
		closure := s.infcx.Shallow(pred.Ty)
		if closure.IsInfer() {
			return nil, stalled, nil
		}
		if closure.Kind() != ts.KindClosure {
			s.tcx.Sess.Bug("closure kind predicate on non-closure %s", closure)
		}
		if !closure.ClosureKind().Extends(pred.Closure) {
			err := &SelectionError{Kind: ClosureKindMismatch, Closure: closure, Requested: pred.Closure}
			return nil, failed, &FulfillmentError{Obligation: o, Kind: CodeSelectionError, Err: err}
		}
		return nil, processed, nil

	case ts.PredWellFormed:
		t := s.infcx.Shallow(pred.Ty)
		if t.IsInfer() {
			return nil, stalled, nil
		}
		return s.wellFormedObligations(o, s.infcx.Resolve(t)), processed, nil
	}
	s.tcx.Sess.Bug("unknown predicate kind %d", pred.Kind)
	return nil, failed, nil
}
