package typesystem

// Substs instantiates the generics of an item: Types[i] replaces parameter
// i, Regions[i] replaces early-bound region i.
type Substs struct {
	Types   []*Type
	Regions []Region
}

// IsEmpty reports whether the substitution binds nothing.
func (s Substs) IsEmpty() bool {
	return len(s.Types) == 0 && len(s.Regions) == 0
}

type substFolder struct {
	in     *Interner
	substs Substs
}

func (f *substFolder) FoldType(t *Type) *Type {
	if !t.Has(NeedsSubst) {
		return t
	}
	if t.kind == KindParam {
		if int(t.index) < len(f.substs.Types) {
			return f.substs.Types[t.index]
		}
		return t
	}
	return f.in.SuperFold(t, f)
}

func (f *substFolder) FoldRegion(r Region) Region {
	if r.Kind == ReEarly && int(r.Index) < len(f.substs.Regions) {
		return f.substs.Regions[r.Index]
	}
	return r
}

// Subst instantiates the parameters of t. Parameters without a binding are kept.
func (in *Interner) Subst(t *Type, s Substs) *Type {
	if s.IsEmpty() || !t.Has(NeedsSubst) {
		return t
	}
	return (&substFolder{in: in, substs: s}).FoldType(t)
}

func (in *Interner) SubstTraitRef(tr TraitRef, s Substs) TraitRef {
	if s.IsEmpty() || !tr.Has(NeedsSubst) {
		return tr
	}
	return in.FoldTraitRef(tr, &substFolder{in: in, substs: s})
}

func (in *Interner) SubstPredicate(p Predicate, s Substs) Predicate {
	if s.IsEmpty() || !p.Has(NeedsSubst) {
		return p
	}
	return in.FoldPredicate(p, &substFolder{in: in, substs: s})
}

type eraseFolder struct{ in *Interner }

func (f *eraseFolder) FoldType(t *Type) *Type {
	if !t.Has(HasErasableRegions) {
		return t
	}
	return f.in.SuperFold(t, f)
}

func (f *eraseFolder) FoldRegion(Region) Region { return Erased }

// EraseRegions replaces every region in t with the erased region.
func (in *Interner) EraseRegions(t *Type) *Type {
	return (&eraseFolder{in: in}).FoldType(t)
}

func (in *Interner) EraseRegionsTraitRef(tr TraitRef) TraitRef {
	return in.FoldTraitRef(tr, &eraseFolder{in: in})
}

func (in *Interner) EraseRegionsPredicate(p Predicate) Predicate {
	return in.FoldPredicate(p, &eraseFolder{in: in})
}

// IdentitySubsts maps each of the n generics of an item to itself.
func (in *Interner) IdentitySubsts(names []string) Substs {
	s := Substs{Types: make([]*Type, len(names))}
	for i, n := range names {
		s.Types[i] = in.Param(uint32(i), n)
	}
	return s
}
