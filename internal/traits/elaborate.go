package traits

import (
	set "github.com/hashicorp/go-set/v3"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// superPredicates are the predicates implied by tr holding: its declared
// supertraits and the trait's where-clauses whose subject is Self.
func (tcx *Ctxt) superPredicates(tr ts.TraitRef) []ts.Predicate {
	def, ok := tcx.Tables.Trait(tr.Def)
	if !ok {
		return nil
	}
	substs := tr.Substs()
	var out []ts.Predicate
	for _, sup := range def.Supertraits {
		out = append(out, ts.TraitPredicate(tcx.Types.SubstTraitRef(sup, substs)))
	}
	for _, p := range def.Generics.Predicates {
		ptr, ok := p.PolyTraitRef()
		if !ok || !ptr.Self.IsSelf() {
			continue
		}
		if p.Kind == ts.PredTrait && ptr.Def == tr.Def {
			continue
		}
		out = append(out, tcx.Types.SubstPredicate(p, substs))
	}
	return out
}

// Elaborate closes preds under supertrait implication. The input order is
// kept and every predicate occurs once.
func (tcx *Ctxt) Elaborate(preds []ts.Predicate) []ts.Predicate {
	seen := set.New[string](len(preds))
	out := make([]ts.Predicate, 0, len(preds))
	stack := make([]ts.Predicate, 0, len(preds))
	for i := len(preds) - 1; i >= 0; i-- {
		stack = append(stack, preds[i])
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !seen.Insert(p.Key()) {
			continue
		}
		out = append(out, p)
		if p.Kind != ts.PredTrait {
			continue
		}
		sup := tcx.superPredicates(p.Trait)
		for i := len(sup) - 1; i >= 0; i-- {
			stack = append(stack, sup[i])
		}
	}
	return out
}

// Supertraits returns tr followed by every trait ref it implies.
func (tcx *Ctxt) Supertraits(tr ts.TraitRef) []ts.TraitRef {
	var out []ts.TraitRef
	for _, p := range tcx.Elaborate([]ts.Predicate{ts.TraitPredicate(tr)}) {
		if p.Kind == ts.PredTrait {
			out = append(out, p.Trait)
		}
	}
	return out
}

// SupertraitDefs returns def and the ids of all its transitive supertraits.
func (tcx *Ctxt) SupertraitDefs(def ts.DefID) []ts.DefID {
	tdef, ok := tcx.Tables.Trait(def)
	if !ok {
		return []ts.DefID{def}
	}
	var out []ts.DefID
	seen := set.New[ts.DefID](4)
	for _, tr := range tcx.Supertraits(tdef.IdentityRef(tcx.Types)) {
		if seen.Insert(tr.Def) {
			out = append(out, tr.Def)
		}
	}
	return out
}
