package traits

import (
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/traitsolver/internal/infer"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// CandidateKind tags the ways a trait obligation can be satisfied.
type CandidateKind uint8

const (
	ParamCandidate CandidateKind = iota
	ImplCandidate
	ClosureCandidate
	FnPointerCandidate
	BuiltinCandidate
	ObjectCandidate
)

func (k CandidateKind) String() string {
	switch k {
	case ParamCandidate:
		return "where-clause"
	case ImplCandidate:
		return "impl"
	case ClosureCandidate:
		return "closure"
	case FnPointerCandidate:
		return "fn pointer"
	case BuiltinCandidate:
		return "builtin"
	case ObjectCandidate:
		return "object"
	}
	return fmt.Sprintf("CandidateKind(%d)", k)
}

// precedence orders candidate kinds: where-clauses beat builtin, closure,
// fn pointer and object candidates, which beat impls.
func (k CandidateKind) precedence() int {
	switch k {
	case ParamCandidate:
		return 2
	case ImplCandidate:
		return 0
	}
	return 1
}

// Candidate is one way an obligation might be satisfied. Candidates hold
// no inference variables, so they can be cached.
type Candidate struct {
	Kind CandidateKind
	// Param is the matching where-clause.
	Param ts.TraitRef
	// Impl is the matching impl.
	Impl ts.DefID
	// Nested are the types that must implement the same trait for a
	// builtin candidate to hold.
	Nested []*ts.Type
	// Upcast is the object's supertrait that matches, for object candidates.
	Upcast ts.TraitRef
}

// Hash identifies the candidate for deduplication.
func (c *Candidate) Hash() string {
	switch c.Kind {
	case ParamCandidate:
		return "P" + c.Param.Key()
	case ImplCandidate:
		return "I" + c.Impl.String()
	case ObjectCandidate:
		return "O" + c.Upcast.Key()
	}
	return c.Kind.String()
}

func (c *Candidate) String() string {
	switch c.Kind {
	case ParamCandidate:
		return "ParamCandidate(" + c.Param.String() + ")"
	case ImplCandidate:
		return "ImplCandidate(" + c.Impl.String() + ")"
	}
	return c.Kind.String() + "Candidate"
}

// candidateSet collects assembled candidates. ambiguous is set when the
// obligation cannot be decided yet.
type candidateSet struct {
	vec       []*Candidate
	seen      *set.HashSet[*Candidate, string]
	ambiguous bool
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: set.NewHashSet[*Candidate, string](4)}
}

func (cs *candidateSet) push(c *Candidate) {
	if cs.seen.Insert(c) {
		cs.vec = append(cs.vec, c)
	}
}

// assembleCandidates gathers every candidate that may apply to tr.
func (s *SelectionContext) assembleCandidates(o *Obligation, tr ts.TraitRef) (*candidateSet, error) {
	cs := newCandidateSet()
	self := s.infcx.Shallow(tr.Self)

	if self.IsInfer() {
		cs.ambiguous = true
		return cs, nil
	}

	switch {
	case s.tcx.isLang(tr.Def, "Sized") || s.tcx.isLang(tr.Def, "Copy"):
		s.assembleBuiltinBoundCandidates(tr, self, cs)
	default:
		if _, ok := s.tcx.closureKindOf(tr.Def); ok {
			s.assembleClosureCandidates(self, cs)
			s.assembleFnPointerCandidates(self, cs)
		}
	}

	s.assembleCandidatesFromImpls(tr, cs)
	s.assembleCandidatesFromProjectedTy(tr, self, cs)
	s.assembleCandidatesFromObjectTy(tr, self, cs)
	s.assembleCandidatesFromParamEnv(o.ParamEnv, tr, cs)
	return cs, nil
}

func (s *SelectionContext) assembleCandidatesFromParamEnv(env *ParamEnv, tr ts.TraitRef, cs *candidateSet) {
	for _, p := range env.Predicates {
		if p.Kind != ts.PredTrait || p.Trait.Def != tr.Def {
			continue
		}
		bound := p.Trait
		matched := infer.Probe(s.infcx, func() bool {
			return s.infcx.EqTraitRefs(bound, tr) == nil
		})
		if matched {
			cs.push(&Candidate{Kind: ParamCandidate, Param: bound})
		}
	}
}

// assembleCandidatesFromProjectedTy matches the bounds declared on an
// associated type when the self type is a projection of it. They are
// treated like where-clauses.
func (s *SelectionContext) assembleCandidatesFromProjectedTy(tr ts.TraitRef, self *ts.Type, cs *candidateSet) {
	if self.Kind() != ts.KindProjection {
		return
	}
	for _, p := range s.declaredBounds(*self.Projection()) {
		if p.Kind != ts.PredTrait || p.Trait.Def != tr.Def {
			continue
		}
		bound := p.Trait
		matched := infer.Probe(s.infcx, func() bool {
			return s.infcx.EqTraitRefs(bound, tr) == nil
		})
		if matched {
			cs.push(&Candidate{Kind: ParamCandidate, Param: bound})
		}
	}
}

func (s *SelectionContext) assembleCandidatesFromImpls(tr ts.TraitRef, cs *candidateSet) {
	resolved := s.infcx.ResolveTraitRef(tr)
	for _, impl := range s.tcx.Tables.ImplsOfTrait(tr.Def) {
		header, ok := impl.TraitRefFor(tr.Def)
		if !ok || !fastMatch(header, resolved) {
			continue
		}
		matched := infer.Probe(s.infcx, func() bool {
			_, err := s.matchImpl(impl.ID, header, impl.Generics.Len(), len(impl.Generics.Regions), tr)
			return err == nil
		})
		if matched {
			cs.push(&Candidate{Kind: ImplCandidate, Impl: impl.ID})
		}
	}
}

// fastMatch rejects impls whose header can never unify with tr.
func fastMatch(header, tr ts.TraitRef) bool {
	if len(header.Args) != len(tr.Args) {
		return false
	}
	if !ts.MayUnify(header.Self, tr.Self) {
		return false
	}
	for i := range header.Args {
		if !ts.MayUnify(header.Args[i], tr.Args[i]) {
			return false
		}
	}
	return true
}

func (s *SelectionContext) assembleClosureCandidates(self *ts.Type, cs *candidateSet) {
	if self.Kind() == ts.KindClosure {
		cs.push(&Candidate{Kind: ClosureCandidate})
	}
}

func (s *SelectionContext) assembleFnPointerCandidates(self *ts.Type, cs *candidateSet) {
	if self.Kind() == ts.KindFnPtr {
		cs.push(&Candidate{Kind: FnPointerCandidate})
	}
}

func (s *SelectionContext) assembleCandidatesFromObjectTy(tr ts.TraitRef, self *ts.Type, cs *candidateSet) {
	if self.Kind() != ts.KindDynamic {
		return
	}
	principal := self.Dyn().WithSelf(self)
	for _, sup := range s.tcx.Supertraits(principal) {
		if sup.Def != tr.Def {
			continue
		}
		matched := infer.Probe(s.infcx, func() bool {
			return s.infcx.EqTraitRefs(sup, tr) == nil
		})
		if matched {
			cs.push(&Candidate{Kind: ObjectCandidate, Upcast: sup})
		}
	}
}

func (s *SelectionContext) assembleBuiltinBoundCandidates(tr ts.TraitRef, self *ts.Type, cs *candidateSet) {
	var cond builtinCondition
	if s.tcx.isLang(tr.Def, "Sized") {
		cond = sizedConditions(self)
	} else {
		cond = copyConditions(self)
	}
	switch cond.kind {
	case builtinYes:
		cs.push(&Candidate{Kind: BuiltinCandidate, Nested: cond.nested})
	case builtinAmbiguous:
		cs.ambiguous = true
	}
}
