package traits

import (
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/infer"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// ProjectionMode controls how far projection looks through specializable
// impl items.
type ProjectionMode uint8

const (
	// ModeAnyFinal is used during type checking: only items that cannot be
	// specialized further are projected.
	ModeAnyFinal ProjectionMode = iota
	// ModeTopmost is used by coherence: only the impl's own items count.
	ModeTopmost
	// ModeAny is used after type checking: every item is projected,
	// trait defaults included.
	ModeAny
)

func (m ProjectionMode) String() string {
	switch m {
	case ModeTopmost:
		return "topmost"
	case ModeAny:
		return "any"
	}
	return "any-final"
}

type projectionCandidateKind uint8

const (
	projParamEnv projectionCandidateKind = iota
	projTraitDef
	projObject
	projImpl
	projClosure
	projFnPointer
)

type projectionCandidate struct {
	kind  projectionCandidateKind
	bound ts.Predicate
	impl  ts.DefID
}

func (c projectionCandidate) Hash() string {
	switch c.kind {
	case projParamEnv, projTraitDef, projObject:
		return fmt.Sprintf("%d/%s", c.kind, c.bound.Key())
	case projImpl:
		return "impl/" + c.impl.String()
	}
	return fmt.Sprintf("%d", c.kind)
}

type projectionCandidateSet struct {
	vec       []projectionCandidate
	ambiguous bool
}

type projectionErrorKind uint8

const (
	tooManyCandidates projectionErrorKind = iota
	traitSelectionError
)

type projectionError struct {
	kind projectionErrorKind
	err  error
}

func (e *projectionError) Error() string {
	if e.kind == tooManyCandidates {
		return "too many candidates"
	}
	return e.err.Error()
}

// projectedTy is the outcome of one projection step. When progress is
// false the projection stays abstract.
type projectedTy struct {
	progress    bool
	ty          *ts.Type
	obligations []*Obligation
}

// NormalizeProjectionType resolves proj. When it cannot be resolved yet a
// fresh variable is returned together with an obligation tying it to proj.
func (s *SelectionContext) NormalizeProjectionType(o *Obligation, proj ts.ProjectionTy) (*ts.Type, []*Obligation) {
	ty, obligations, ok := s.optNormalizeProjectionType(o, proj)
	if ok {
		return ty, obligations
	}
	v := s.infcx.NewVar()
	cause := o.Cause.Derive(CauseProjection, proj.Trait, proj.Trait.Def)
	return v, []*Obligation{o.Derived(cause, ts.ProjectionPredicate(proj, v))}
}

// optNormalizeProjectionType returns ok=false when the projection is ambiguous.
func (s *SelectionContext) optNormalizeProjectionType(o *Obligation, proj ts.ProjectionTy) (*ts.Type, []*Obligation, bool) {
	proj = ts.ProjectionTy{Trait: s.infcx.ResolveTraitRef(proj.Trait), Item: proj.Item}
	key := s.tcx.Types.Projection(proj)

	if e, ok := s.infcx.ProjectionCacheLookup(key); ok {
		switch e.State {
		case infer.ProjInProgress:
			// Normalizing A::B while normalizing A::B: leave it abstract.
			return key, nil, true
		case infer.ProjAmbiguous:
			return nil, nil, false
		case infer.ProjError:
			ty, obligations := s.normalizeToError(o, proj)
			return ty, obligations, true
		case infer.ProjNormalized:
			return e.Ty, nil, true
		}
	}
	s.infcx.ProjectionCacheInsert(key, infer.ProjectionCacheEntry{State: infer.ProjInProgress})

	projected, perr := s.projectType(o, proj)
	if perr != nil {
		if perr.kind == tooManyCandidates {
			s.infcx.ProjectionCacheInsert(key, infer.ProjectionCacheEntry{State: infer.ProjAmbiguous})
			return nil, nil, false
		}
		s.infcx.ProjectionCacheInsert(key, infer.ProjectionCacheEntry{State: infer.ProjError})
		ty, obligations := s.normalizeToError(o, proj)
		return ty, obligations, true
	}

	if !projected.progress {
		s.infcx.ProjectionCacheInsert(key, infer.ProjectionCacheEntry{State: infer.ProjNormalized, Ty: key})
		return key, nil, true
	}

	ty := s.infcx.Resolve(projected.ty)
	obligations := projected.obligations
	if ty.Has(ts.HasProjection) {
		var more []*Obligation
		ty, more = s.normalizeWithDepth(o.Cause, o.ParamEnv, o.Depth+1, ty)
		obligations = append(obligations, more...)
	}
	s.infcx.ProjectionCacheInsert(key, infer.ProjectionCacheEntry{State: infer.ProjNormalized, Ty: ty})
	return ty, obligations, true
}

// normalizeToError replaces a projection whose trait is not implemented by
// the error type, keeping the trait obligation so the failure is reported.
func (s *SelectionContext) normalizeToError(o *Obligation, proj ts.ProjectionTy) (*ts.Type, []*Obligation) {
	cause := o.Cause.Derive(CauseProjection, proj.Trait, proj.Trait.Def)
	return s.tcx.Types.Error(), []*Obligation{o.Derived(cause, ts.TraitPredicate(proj.Trait))}
}

// projectAndUnify processes `proj == expected`. A nil type with a nil
// error means the projection is still ambiguous.
func (s *SelectionContext) projectAndUnify(o *Obligation) (*ts.Type, []*Obligation, error) {
	pred := o.Predicate
	normalized, obligations, ok := s.optNormalizeProjectionType(o, pred.Projection)
	if !ok {
		return nil, nil, nil
	}
	if err := s.infcx.Eq(normalized, pred.Ty); err != nil {
		return nil, nil, err
	}
	return normalized, obligations, nil
}

func (s *SelectionContext) projectType(o *Obligation, proj ts.ProjectionTy) (projectedTy, *projectionError) {
	if proj.Trait.Has(ts.HasError) {
		return projectedTy{progress: true, ty: s.tcx.Types.Error()}, nil
	}
	if o.Depth >= s.tcx.Sess.RecursionLimit() {
		s.tcx.reporter.ReportOverflow(o.WithPredicate(ts.ProjectionPredicate(proj, s.tcx.Types.Projection(proj))))
	}

	cs := &projectionCandidateSet{}
	s.assembleProjectionCandidatesFromParamEnv(o.ParamEnv, proj, cs)
	s.assembleProjectionCandidatesFromTraitDef(proj, cs)
	if cs.ambiguous {
		return projectedTy{}, &projectionError{kind: tooManyCandidates}
	}
	s.assembleProjectionCandidatesFromObjectType(proj, cs)
	if err := s.assembleProjectionCandidatesFromImpls(o, proj, cs); err != nil {
		return projectedTy{}, &projectionError{kind: traitSelectionError, err: err}
	}
	if cs.ambiguous {
		return projectedTy{}, &projectionError{kind: tooManyCandidates}
	}

	candidates := dedupProjectionCandidates(cs.vec)
	if len(candidates) > 1 {
		var params []projectionCandidate
		for _, c := range candidates {
			if c.kind == projParamEnv {
				params = append(params, c)
			}
		}
		if len(params) > 0 {
			candidates = params
		}
	}
	switch len(candidates) {
	case 0:
		return projectedTy{ty: s.tcx.Types.Projection(proj)}, nil
	case 1:
		ty, obligations := s.confirmProjectionCandidate(o, proj, candidates[0])
		return projectedTy{progress: true, ty: ty, obligations: obligations}, nil
	}
	return projectedTy{}, &projectionError{kind: tooManyCandidates}
}

func dedupProjectionCandidates(cands []projectionCandidate) []projectionCandidate {
	seen := set.NewHashSet[projectionCandidate, string](len(cands))
	out := make([]projectionCandidate, 0, len(cands))
	for _, c := range cands {
		if seen.Insert(c) {
			out = append(out, c)
		}
	}
	return out
}

// matchProjectionBounds pushes every projection predicate in bounds that
// names proj's item and unifies with proj's trait ref.
func (s *SelectionContext) matchProjectionBounds(proj ts.ProjectionTy, bounds []ts.Predicate, kind projectionCandidateKind, cs *projectionCandidateSet) {
	for _, b := range bounds {
		if b.Kind != ts.PredProjection || b.Projection.Item != proj.Item || b.Projection.Trait.Def != proj.Trait.Def {
			continue
		}
		bound := b
		matched := infer.Probe(s.infcx, func() bool {
			return s.infcx.EqTraitRefs(bound.Projection.Trait, proj.Trait) == nil
		})
		if matched {
			cs.vec = append(cs.vec, projectionCandidate{kind: kind, bound: bound})
		}
	}
}

func (s *SelectionContext) assembleProjectionCandidatesFromParamEnv(env *ParamEnv, proj ts.ProjectionTy, cs *projectionCandidateSet) {
	s.matchProjectionBounds(proj, env.Predicates, projParamEnv, cs)
}

// assembleProjectionCandidatesFromTraitDef handles `<<T as A>::X as B>::Y`
// by consulting the bounds declared on A::X.
func (s *SelectionContext) assembleProjectionCandidatesFromTraitDef(proj ts.ProjectionTy, cs *projectionCandidateSet) {
	self := s.infcx.Shallow(proj.Trait.Self)
	if self.IsInfer() {
		cs.ambiguous = true
		return
	}
	if self.Kind() != ts.KindProjection {
		return
	}
	s.matchProjectionBounds(proj, s.declaredBounds(*self.Projection()), projTraitDef, cs)
}

// declaredBounds returns the elaborated bounds that the trait declaring
// proj's item puts on it, instantiated for proj.
func (s *SelectionContext) declaredBounds(proj ts.ProjectionTy) []ts.Predicate {
	def, ok := s.tcx.Tables.Trait(proj.Trait.Def)
	if !ok {
		return nil
	}
	at, ok := def.AssocType(proj.Item)
	if !ok || len(at.Bounds) == 0 {
		return nil
	}
	substs := proj.Trait.Substs()
	bounds := make([]ts.Predicate, 0, len(at.Bounds))
	for _, b := range at.Bounds {
		bounds = append(bounds, s.tcx.Types.SubstPredicate(b, substs))
	}
	return s.tcx.Elaborate(bounds)
}

// assembleProjectionCandidatesFromObjectType reads `Item = X` bindings of
// trait objects.
func (s *SelectionContext) assembleProjectionCandidatesFromObjectType(proj ts.ProjectionTy, cs *projectionCandidateSet) {
	self := s.infcx.Shallow(proj.Trait.Self)
	if self.Kind() != ts.KindDynamic {
		return
	}
	dyn := self.Dyn()
	var bounds []ts.Predicate
	for _, sup := range s.tcx.Supertraits(dyn.WithSelf(self)) {
		def, ok := s.tcx.Tables.Trait(sup.Def)
		if !ok {
			continue
		}
		for _, b := range dyn.Bindings {
			if _, declared := def.AssocType(b.Item); declared {
				bounds = append(bounds, ts.ProjectionPredicate(ts.ProjectionTy{Trait: sup, Item: b.Item}, b.Ty))
			}
		}
	}
	s.matchProjectionBounds(proj, bounds, projObject, cs)
}

type implProbe struct {
	kind CandidateKind
	impl ts.DefID
	ok   bool
	err  error
}

func (s *SelectionContext) assembleProjectionCandidatesFromImpls(o *Obligation, proj ts.ProjectionTy, cs *projectionCandidateSet) error {
	traitObl := o.WithPredicate(ts.TraitPredicate(proj.Trait))
	res := infer.Probe(s.infcx, func() implProbe {
		sel, err := s.Select(traitObl)
		if err != nil {
			return implProbe{err: err}
		}
		if sel == nil {
			return implProbe{}
		}
		return implProbe{kind: sel.Kind, impl: sel.Impl, ok: true}
	})
	switch {
	case res.err != nil:
		return res.err
	case !res.ok:
		cs.ambiguous = true
		return nil
	}

	switch res.kind {
	case ImplCandidate:
		if s.implItemIsFinal(res.impl, proj) {
			cs.vec = append(cs.vec, projectionCandidate{kind: projImpl, impl: res.impl})
		}
	case ClosureCandidate:
		cs.vec = append(cs.vec, projectionCandidate{kind: projClosure})
	case FnPointerCandidate:
		cs.vec = append(cs.vec, projectionCandidate{kind: projFnPointer})
	}
	// Where-clause and object evidence say nothing about the item's value;
	// the earlier steps already covered them. Builtin traits have no items.
	return nil
}

type assocSource uint8

const (
	fromImpl assocSource = iota
	fromTraitDefault
	missingItem
)

// assocTyDef finds the definition of an associated type for an impl. In
// topmost mode only the impl itself is consulted.
func (s *SelectionContext) assocTyDef(impl ts.DefID, traitDef ts.DefID, item string) (*ts.Type, bool, assocSource) {
	idef, ok := s.tcx.Tables.Impl(impl)
	if !ok {
		s.tcx.Sess.Bug("impl %s vanished during projection", impl)
	}
	if at, ok := idef.AssocType(item); ok {
		return at.Ty, at.Default, fromImpl
	}
	if s.mode == ModeTopmost {
		return nil, false, missingItem
	}
	if tdef, ok := s.tcx.Tables.Trait(traitDef); ok {
		if at, ok := tdef.AssocType(item); ok && at.Default != nil {
			return at.Default, true, fromTraitDefault
		}
	}
	return nil, false, missingItem
}

// implItemIsFinal decides whether the impl's value of the item may be
// projected in the current mode.
func (s *SelectionContext) implItemIsFinal(impl ts.DefID, proj ts.ProjectionTy) bool {
	_, isDefault, src := s.assocTyDef(impl, proj.Trait.Def, proj.Item)
	switch s.mode {
	case ModeAny:
		if src == missingItem {
			s.tcx.Sess.Bug("no associated type `%s` for %s", proj.Item, proj.Trait)
		}
		return true
	case ModeTopmost:
		// An impl that leans on the trait's default gives no value here.
		return src == fromImpl && !isDefault
	}
	if src == missingItem {
		s.tcx.Sess.Bug("no associated type `%s` for %s", proj.Item, proj.Trait)
	}
	return !isDefault
}

func (s *SelectionContext) confirmProjectionCandidate(o *Obligation, proj ts.ProjectionTy, c projectionCandidate) (*ts.Type, []*Obligation) {
	switch c.kind {
	case projParamEnv, projTraitDef, projObject:
		if err := s.infcx.EqTraitRefs(c.bound.Projection.Trait, proj.Trait); err != nil {
			s.tcx.Sess.Bug("failed to unify %s with %s: %v", c.bound.Projection, proj, err)
		}
		return c.bound.Ty, nil
	}

	traitObl := o.WithPredicate(ts.TraitPredicate(proj.Trait))
	sel, err := s.Select(traitObl)
	if err != nil || sel == nil {
		s.tcx.Sess.Bug("projection candidate for %s did not reselect: %v", proj, err)
	}

	switch c.kind {
	case projImpl:
		ty, _, src := s.assocTyDef(sel.Impl, proj.Trait.Def, proj.Item)
		switch src {
		case fromImpl:
			return s.tcx.Types.Subst(ty, sel.Substs), sel.Nested
		case fromTraitDefault:
			return s.tcx.Types.Subst(ty, s.infcx.ResolveTraitRef(proj.Trait).Substs()), sel.Nested
		}
		// The impl lacks the item; coherence reports it.
		return s.tcx.Types.Error(), sel.Nested
	case projClosure, projFnPointer:
		if !s.tcx.isLang(proj.Trait.Def, config.FnOnceTraitName) || proj.Item != config.OutputItemName {
			s.tcx.Sess.Bug("callable candidate for %s", proj)
		}
		return sel.FnTy.Output(), sel.Nested
	}
	s.tcx.Sess.Bug("unknown projection candidate %d", c.kind)
	return nil, nil
}
