// Package infer implements the inference context consumed by selection
// and projection: type and region variables, equality and subtyping, an
// undo log for probes, and the projection cache.
package infer

import (
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// RegionConstraint records that Sub must outlive Sup. Region constraints
// are collected but never solved here.
type RegionConstraint struct {
	Sub ts.Region
	Sup ts.Region
}

// InferCtxt owns the variables of one inference session. It is not safe
// for concurrent use.
type InferCtxt struct {
	Types *ts.Interner

	vars        []*ts.Type
	regionVars  uint32
	constraints []RegionConstraint
	projCache   map[*ts.Type]ProjectionCacheEntry
	tainted     bool

	undo          []undoEntry
	openSnapshots int
}

func New(types *ts.Interner) *InferCtxt {
	return &InferCtxt{
		Types:     types,
		projCache: make(map[*ts.Type]ProjectionCacheEntry),
	}
}

// NewVar creates an unbound type variable.
func (ic *InferCtxt) NewVar() *ts.Type {
	id := uint32(len(ic.vars))
	ic.vars = append(ic.vars, nil)
	ic.log(undoEntry{kind: undoNewVar})
	return ic.Types.Infer(id)
}

// NewRegionVar creates a region variable.
func (ic *InferCtxt) NewRegionVar() ts.Region {
	r := ts.RegionVar(ic.regionVars)
	ic.regionVars++
	ic.log(undoEntry{kind: undoNewRegionVar})
	return r
}

// NumVars returns how many type variables exist.
func (ic *InferCtxt) NumVars() int { return len(ic.vars) }

// FreshSubsts instantiates item generics with fresh variables.
func (ic *InferCtxt) FreshSubsts(types, regions int) ts.Substs {
	s := ts.Substs{Types: make([]*ts.Type, types), Regions: make([]ts.Region, regions)}
	for i := range s.Types {
		s.Types[i] = ic.NewVar()
	}
	for i := range s.Regions {
		s.Regions[i] = ic.NewRegionVar()
	}
	return s
}

// Shallow follows the binding chain of a variable until an unbound variable
// or a non-variable type is reached.
func (ic *InferCtxt) Shallow(t *ts.Type) *ts.Type {
	for t.IsInfer() {
		id := t.Index()
		if int(id) >= len(ic.vars) || ic.vars[id] == nil {
			return t
		}
		t = ic.vars[id]
	}
	return t
}

// IsUnresolved reports whether t is an unbound variable.
func (ic *InferCtxt) IsUnresolved(t *ts.Type) bool {
	return ic.Shallow(t).IsInfer()
}

type resolver struct{ ic *InferCtxt }

func (r *resolver) FoldType(t *ts.Type) *ts.Type {
	if !t.Has(ts.HasInfer) {
		return t
	}
	t = r.ic.Shallow(t)
	if t.IsInfer() {
		return t
	}
	return r.ic.Types.SuperFold(t, r)
}

func (r *resolver) FoldRegion(reg ts.Region) ts.Region { return reg }

// Resolve replaces every bound variable in t by its value.
func (ic *InferCtxt) Resolve(t *ts.Type) *ts.Type {
	return (&resolver{ic}).FoldType(t)
}

func (ic *InferCtxt) ResolveTraitRef(tr ts.TraitRef) ts.TraitRef {
	if !tr.Has(ts.HasInfer) {
		return tr
	}
	return ic.Types.FoldTraitRef(tr, &resolver{ic})
}

func (ic *InferCtxt) ResolvePredicate(p ts.Predicate) ts.Predicate {
	if !p.Has(ts.HasInfer) {
		return p
	}
	return ic.Types.FoldPredicate(p, &resolver{ic})
}

// RegionConstraints returns the constraints recorded so far.
func (ic *InferCtxt) RegionConstraints() []RegionConstraint {
	return ic.constraints
}

// Tainted reports whether errors were reported against this context.
// Ambiguity diagnostics are suppressed once it is set.
func (ic *InferCtxt) Tainted() bool { return ic.tainted }

// SetTainted marks the context as having reported errors.
func (ic *InferCtxt) SetTainted() {
	if ic.tainted {
		return
	}
	ic.log(undoEntry{kind: undoTaint})
	ic.tainted = true
}
