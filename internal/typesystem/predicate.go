package typesystem

import (
	"fmt"
	"strings"
)

// PredicateKind tags the variants of Predicate.
type PredicateKind uint8

const (
	PredTrait PredicateKind = iota
	PredProjection
	PredEquate
	PredRegionOutlives
	PredTypeOutlives
	PredObjectSafe
	PredClosureKind
	PredWellFormed
)

// Predicate is a closed tagged union. Only the fields belonging to Kind are set.
type Predicate struct {
	Kind PredicateKind

	// PredTrait
	Trait TraitRef

	// PredProjection: Projection == Ty
	Projection ProjectionTy

	// PredProjection (expected type), PredEquate (A == Ty), PredTypeOutlives
	// (Ty: RegionB), PredClosureKind (closure type), PredWellFormed.
	Ty *Type
	A  *Type

	// PredRegionOutlives: RegionA: RegionB
	RegionA Region
	RegionB Region

	// PredObjectSafe
	TraitDef  DefID
	TraitName string

	// PredClosureKind
	Closure ClosureKind
}

func TraitPredicate(tr TraitRef) Predicate {
	return Predicate{Kind: PredTrait, Trait: tr}
}

func ProjectionPredicate(p ProjectionTy, ty *Type) Predicate {
	return Predicate{Kind: PredProjection, Projection: p, Ty: ty}
}

func EquatePredicate(a, b *Type) Predicate {
	return Predicate{Kind: PredEquate, A: a, Ty: b}
}

func RegionOutlivesPredicate(a, b Region) Predicate {
	return Predicate{Kind: PredRegionOutlives, RegionA: a, RegionB: b}
}

func TypeOutlivesPredicate(t *Type, r Region) Predicate {
	return Predicate{Kind: PredTypeOutlives, Ty: t, RegionB: r}
}

func ObjectSafePredicate(def DefID, name string) Predicate {
	return Predicate{Kind: PredObjectSafe, TraitDef: def, TraitName: name}
}

func ClosureKindPredicate(closure *Type, kind ClosureKind) Predicate {
	return Predicate{Kind: PredClosureKind, Ty: closure, Closure: kind}
}

func WellFormedPredicate(t *Type) Predicate {
	return Predicate{Kind: PredWellFormed, Ty: t}
}

// Types returns every type operand of the predicate.
func (p Predicate) Types() []*Type {
	switch p.Kind {
	case PredTrait:
		return p.Trait.Types()
	case PredProjection:
		return append(p.Projection.Trait.Types(), p.Ty)
	case PredEquate:
		return []*Type{p.A, p.Ty}
	case PredTypeOutlives, PredClosureKind, PredWellFormed:
		return []*Type{p.Ty}
	}
	return nil
}

// Flags is the union of the flags of every component.
func (p Predicate) Flags() Flags {
	var f Flags
	for _, t := range p.Types() {
		f |= t.flags
	}
	switch p.Kind {
	case PredTrait:
		for _, r := range p.Trait.Regions {
			f |= r.flags()
		}
	case PredProjection:
		for _, r := range p.Projection.Trait.Regions {
			f |= r.flags()
		}
	case PredRegionOutlives:
		f |= p.RegionA.flags() | p.RegionB.flags()
	case PredTypeOutlives:
		f |= p.RegionB.flags()
	}
	return f
}

func (p Predicate) Has(f Flags) bool { return p.Flags()&f != 0 }

// Key identifies p structurally within one Interner.
func (p Predicate) Key() string {
	switch p.Kind {
	case PredTrait:
		return "T" + p.Trait.Key()
	case PredProjection:
		return "P" + p.Projection.Key() + "==" + idString(p.Ty)
	case PredEquate:
		return "E" + idString(p.A) + "==" + idString(p.Ty)
	case PredRegionOutlives:
		return "R" + p.RegionA.key() + ":" + p.RegionB.key()
	case PredTypeOutlives:
		return "O" + idString(p.Ty) + ":" + p.RegionB.key()
	case PredObjectSafe:
		return "S" + p.TraitDef.String()
	case PredClosureKind:
		return fmt.Sprintf("K%s:%d", idString(p.Ty), p.Closure)
	case PredWellFormed:
		return "W" + idString(p.Ty)
	}
	return "?"
}

func (p Predicate) String() string {
	switch p.Kind {
	case PredTrait:
		return p.Trait.Self.String() + ": " + p.Trait.Path()
	case PredProjection:
		return p.Projection.String() + " == " + p.Ty.String()
	case PredEquate:
		return p.A.String() + " == " + p.Ty.String()
	case PredRegionOutlives:
		return p.RegionA.String() + ": " + p.RegionB.String()
	case PredTypeOutlives:
		return p.Ty.String() + ": " + p.RegionB.String()
	case PredObjectSafe:
		return "the trait `" + p.TraitName + "` is object-safe"
	case PredClosureKind:
		return "the closure `" + p.Ty.String() + "` implements the trait `" + p.Closure.String() + "`"
	case PredWellFormed:
		return "WF(" + p.Ty.String() + ")"
	}
	return "?"
}

// PolyTraitRef returns the trait ref of a trait or projection predicate.
func (p Predicate) PolyTraitRef() (TraitRef, bool) {
	switch p.Kind {
	case PredTrait:
		return p.Trait, true
	case PredProjection:
		return p.Projection.Trait, true
	}
	return TraitRef{}, false
}

func idString(t *Type) string {
	var sb strings.Builder
	writeID(&sb, t)
	return sb.String()
}
