package typesystem

// Folder rewrites types and regions. FoldType is called on every type
// reached by the fold; implementations recurse with Interner.SuperFold.
type Folder interface {
	FoldType(t *Type) *Type
	FoldRegion(r Region) Region
}

// SuperFold rebuilds t with every child folded by f. It does not call
// f.FoldType on t itself.
func (in *Interner) SuperFold(t *Type, f Folder) *Type {
	switch t.kind {
	case KindAdt:
		args, changed := in.foldTypes(t.args, f)
		regions, rchanged := foldRegions(t.regions, f)
		if !changed && !rchanged {
			return t
		}
		return in.Adt(t.def, t.name, args, regions)
	case KindRef:
		elem := f.FoldType(t.args[0])
		r := f.FoldRegion(t.region)
		if elem == t.args[0] && r == t.region {
			return t
		}
		return in.Ref(r, t.mut, elem)
	case KindPtr:
		elem := f.FoldType(t.args[0])
		if elem == t.args[0] {
			return t
		}
		return in.Ptr(t.mut, elem)
	case KindBox:
		elem := f.FoldType(t.args[0])
		if elem == t.args[0] {
			return t
		}
		return in.Box(elem)
	case KindTuple:
		args, changed := in.foldTypes(t.args, f)
		if !changed {
			return t
		}
		return in.Tuple(args...)
	case KindFnPtr:
		args, changed := in.foldTypes(t.args, f)
		if !changed {
			return t
		}
		return in.FnPtr(args[:len(args)-1], args[len(args)-1])
	case KindClosure:
		args, changed := in.foldTypes(t.args, f)
		if !changed {
			return t
		}
		return in.Closure(t.def, t.name, t.ckind, args[:len(args)-1], args[len(args)-1])
	case KindProjection:
		tr := in.FoldTraitRef(t.proj.Trait, f)
		if tr.Equal(t.proj.Trait) {
			return t
		}
		return in.Projection(ProjectionTy{Trait: tr, Item: t.proj.Item})
	case KindDynamic:
		args, changed := in.foldTypes(t.dyn.Args, f)
		regions, rchanged := foldRegions(t.dyn.Regions, f)
		bindings := make([]AssocBinding, len(t.dyn.Bindings))
		for i, b := range t.dyn.Bindings {
			bindings[i] = AssocBinding{Item: b.Item, Ty: f.FoldType(b.Ty)}
			if bindings[i].Ty != b.Ty {
				changed = true
			}
		}
		if !changed && !rchanged {
			return t
		}
		return in.Dynamic(DynTy{Def: t.dyn.Def, Name: t.dyn.Name, Args: args, Regions: regions, Bindings: bindings})
	}
	return t
}

func (in *Interner) foldTypes(ts []*Type, f Folder) ([]*Type, bool) {
	if len(ts) == 0 {
		return ts, false
	}
	out := make([]*Type, len(ts))
	changed := false
	for i, t := range ts {
		out[i] = f.FoldType(t)
		if out[i] != t {
			changed = true
		}
	}
	return out, changed
}

func foldRegions(rs []Region, f Folder) ([]Region, bool) {
	if len(rs) == 0 {
		return rs, false
	}
	out := make([]Region, len(rs))
	changed := false
	for i, r := range rs {
		out[i] = f.FoldRegion(r)
		if out[i] != r {
			changed = true
		}
	}
	return out, changed
}

// FoldTraitRef folds every component of tr.
func (in *Interner) FoldTraitRef(tr TraitRef, f Folder) TraitRef {
	self := f.FoldType(tr.Self)
	args, _ := in.foldTypes(tr.Args, f)
	regions, _ := foldRegions(tr.Regions, f)
	return TraitRef{Def: tr.Def, Name: tr.Name, Self: self, Args: args, Regions: regions}
}

// FoldPredicate folds every component of p.
func (in *Interner) FoldPredicate(p Predicate, f Folder) Predicate {
	switch p.Kind {
	case PredTrait:
		p.Trait = in.FoldTraitRef(p.Trait, f)
	case PredProjection:
		p.Projection = ProjectionTy{Trait: in.FoldTraitRef(p.Projection.Trait, f), Item: p.Projection.Item}
		p.Ty = f.FoldType(p.Ty)
	case PredEquate:
		p.A = f.FoldType(p.A)
		p.Ty = f.FoldType(p.Ty)
	case PredRegionOutlives:
		p.RegionA = f.FoldRegion(p.RegionA)
		p.RegionB = f.FoldRegion(p.RegionB)
	case PredTypeOutlives:
		p.Ty = f.FoldType(p.Ty)
		p.RegionB = f.FoldRegion(p.RegionB)
	case PredClosureKind, PredWellFormed:
		p.Ty = f.FoldType(p.Ty)
	}
	return p
}

// BottomUpFolder applies TyOp after folding children, and RegionOp to every region.
// Either op may be nil.
type BottomUpFolder struct {
	In       *Interner
	TyOp     func(*Type) *Type
	RegionOp func(Region) Region
}

func (b *BottomUpFolder) FoldType(t *Type) *Type {
	t = b.In.SuperFold(t, b)
	if b.TyOp != nil {
		return b.TyOp(t)
	}
	return t
}

func (b *BottomUpFolder) FoldRegion(r Region) Region {
	if b.RegionOp != nil {
		return b.RegionOp(r)
	}
	return r
}
