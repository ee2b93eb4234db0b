package itemtree

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// exprError is a lowering error at a column of the expression being lowered.
type exprError struct {
	off int
	msg string
}

func (e *exprError) Error() string { return e.msg }

func errAt(off int, format string, args ...any) error {
	return &exprError{off: off, msg: fmt.Sprintf(format, args...)}
}

// scope is what a type expression can refer to besides items.
type scope struct {
	crate   ts.CrateNum
	params  []string
	regions []string
	// late holds the lifetimes bound by enclosing for<...> binders, innermost last.
	late []string
	// bounds are the trait predicates lowered so far, searched by T::Item.
	bounds []ts.TraitRef
	// trait is set inside a trait definition; Self::Item resolves through it.
	trait *symbols.TraitDef
	// vars creates inference variables; nil where `_` is not allowed.
	vars func(name string) *ts.Type
}

func (sc *scope) param(name string) (int, bool) {
	i := slices.Index(sc.params, name)
	return i, i >= 0
}

func (l *lowerer) lowerType(sc *scope, e TypeExpr) (*ts.Type, error) {
	in := l.in
	switch e := e.(type) {
	case *PathType:
		return l.lowerPathType(sc, e)
	case *AssocPathType:
		return l.lowerAssocPath(sc, e.Off, e.Base, e.Item)
	case *RefType:
		r, err := l.lowerRegion(sc, e.Off, e.Region)
		if err != nil {
			return nil, err
		}
		elem, err := l.lowerType(sc, e.Elem)
		if err != nil {
			return nil, err
		}
		return in.Ref(r, e.Mut, elem), nil
	case *PtrType:
		elem, err := l.lowerType(sc, e.Elem)
		if err != nil {
			return nil, err
		}
		return in.Ptr(e.Mut, elem), nil
	case *TupleType:
		elems, err := l.lowerTypes(sc, e.Elems)
		if err != nil {
			return nil, err
		}
		return in.Tuple(elems...), nil
	case *NeverType:
		return in.Prim(ts.Never), nil
	case *FnType:
		inner := *sc
		inner.late = append(slices.Clone(sc.late), e.Late...)
		inputs, err := l.lowerTypes(&inner, e.Inputs)
		if err != nil {
			return nil, err
		}
		output, err := l.lowerOutput(&inner, e.Output)
		if err != nil {
			return nil, err
		}
		return in.FnPtr(inputs, output), nil
	case *ClosureType:
		kind, ok := ts.ClosureKindFromTrait(e.Kind)
		if !ok {
			return nil, errAt(e.Off, "unknown closure kind `%s`, expected Fn, FnMut or FnOnce", e.Kind)
		}
		inputs, err := l.lowerTypes(sc, e.Inputs)
		if err != nil {
			return nil, err
		}
		output, err := l.lowerOutput(sc, e.Output)
		if err != nil {
			return nil, err
		}
		l.closures++
		id := l.tbl.NewDefID(sc.crate)
		return in.Closure(id, fmt.Sprintf("closure#%d", l.closures), kind, inputs, output), nil
	case *DynType:
		return l.lowerDyn(sc, e)
	case *QPathType:
		self, err := l.lowerType(sc, e.Self)
		if err != nil {
			return nil, err
		}
		tr, bindings, err := l.lowerTraitRef(sc, e.Trait, self)
		if err != nil {
			return nil, err
		}
		if len(bindings) > 0 {
			return nil, errAt(e.Trait.Off, "associated type bindings are not allowed in a qualified path")
		}
		def, _ := l.tbl.Trait(tr.Def)
		if _, ok := def.AssocType(e.Item); !ok {
			return nil, errAt(e.Off, "cannot find associated type `%s` in trait `%s`", e.Item, def.Name)
		}
		return in.Projection(ts.ProjectionTy{Trait: tr, Item: e.Item}), nil
	case *InferType:
		if sc.vars == nil {
			return nil, errAt(e.Off, "the placeholder `_` is not allowed within types on item signatures")
		}
		return sc.vars(e.Name), nil
	}
	return nil, errAt(e.offset(), "unsupported type expression")
}

func (l *lowerer) lowerTypes(sc *scope, es []TypeExpr) ([]*ts.Type, error) {
	out := make([]*ts.Type, 0, len(es))
	for _, e := range es {
		t, err := l.lowerType(sc, e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (l *lowerer) lowerOutput(sc *scope, e TypeExpr) (*ts.Type, error) {
	if e == nil {
		return l.in.Unit(), nil
	}
	return l.lowerType(sc, e)
}

func (l *lowerer) lowerRegion(sc *scope, off int, name string) (ts.Region, error) {
	switch name {
	case "", "_":
		return ts.Erased, nil
	case "static":
		return ts.Static, nil
	}
	for i := len(sc.late) - 1; i >= 0; i-- {
		if sc.late[i] == name {
			return ts.LateRegion(uint32(i), name), nil
		}
	}
	if i := slices.Index(sc.regions, name); i >= 0 {
		return ts.EarlyRegion(uint32(i), name), nil
	}
	return ts.Region{}, errAt(off, "use of undeclared lifetime name `'%s`", name)
}

func (l *lowerer) lowerRegions(sc *scope, off int, names []string) ([]ts.Region, error) {
	var out []ts.Region
	for _, n := range names {
		r, err := l.lowerRegion(sc, off, n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *lowerer) lowerPathType(sc *scope, e *PathType) (*ts.Type, error) {
	plain := len(e.Args) == 0 && len(e.Regions) == 0 && len(e.Bindings) == 0
	if !strings.Contains(e.Path, "::") {
		if i, ok := sc.param(e.Path); ok {
			if !plain {
				return nil, errAt(e.Off, "type parameter `%s` takes no arguments", e.Path)
			}
			return l.in.Param(uint32(i), e.Path), nil
		}
		if ts.IsPrimName(e.Path) {
			if !plain {
				return nil, errAt(e.Off, "primitive type `%s` takes no arguments", e.Path)
			}
			return l.in.Prim(e.Path), nil
		}
	} else if base, item, _ := strings.Cut(e.Path, "::"); plain && !strings.Contains(item, "::") {
		if _, ok := sc.param(base); ok {
			return l.lowerAssocPath(sc, e.Off, base, item)
		}
	}
	if len(e.Bindings) > 0 {
		return nil, errAt(e.Bindings[0].Off, "associated type bindings are only allowed on traits")
	}

	id, err := l.resolve(sc.crate, e.Path)
	if err != nil {
		if e.Path == "Box" && len(e.Args) == 1 && len(e.Regions) == 0 {
			elem, err := l.lowerType(sc, e.Args[0])
			if err != nil {
				return nil, err
			}
			return l.in.Box(elem), nil
		}
		return nil, notFound(e.Off, err, "cannot find type `%s` in this scope", e.Path)
	}
	adt, ok := l.tbl.Adt(id)
	if !ok {
		if l.tbl.IsTrait(id) {
			return nil, errAt(e.Off, "expected a type, found trait `%s`; use `dyn %s`", e.Path, e.Path)
		}
		return nil, errAt(e.Off, "`%s` is not a type", e.Path)
	}
	if len(e.Args) != adt.Generics.Len() {
		return nil, errAt(e.Off, "type `%s` takes %d type arguments but %d were supplied", adt.Name, adt.Generics.Len(), len(e.Args))
	}
	args, err := l.lowerTypes(sc, e.Args)
	if err != nil {
		return nil, err
	}
	regions, err := l.itemRegions(sc, e, len(adt.Generics.Regions))
	if err != nil {
		return nil, err
	}
	return l.in.Adt(adt.ID, adt.Name, args, regions), nil
}

// itemRegions lowers the lifetime arguments of a path. Omitted lifetimes are erased.
func (l *lowerer) itemRegions(sc *scope, e *PathType, want int) ([]ts.Region, error) {
	if len(e.Regions) == 0 {
		if want == 0 {
			return nil, nil
		}
		out := make([]ts.Region, want)
		for i := range out {
			out[i] = ts.Erased
		}
		return out, nil
	}
	if len(e.Regions) != want {
		return nil, errAt(e.Off, "`%s` takes %d lifetime arguments but %d were supplied", e.Path, want, len(e.Regions))
	}
	return l.lowerRegions(sc, e.Off, e.Regions)
}

// lowerTraitRef resolves a trait path applied to self. Bindings are
// returned as projection predicates.
func (l *lowerer) lowerTraitRef(sc *scope, e *PathType, self *ts.Type) (ts.TraitRef, []ts.Predicate, error) {
	id, err := l.resolve(sc.crate, e.Path)
	if err != nil {
		return ts.TraitRef{}, nil, notFound(e.Off, err, "cannot find trait `%s` in this scope", e.Path)
	}
	def, ok := l.tbl.Trait(id)
	if !ok {
		return ts.TraitRef{}, nil, errAt(e.Off, "expected a trait, found `%s`", e.Path)
	}
	if want := len(def.Generics.Params) - 1; len(e.Args) != want {
		return ts.TraitRef{}, nil, errAt(e.Off, "trait `%s` takes %d type arguments but %d were supplied", def.Name, want, len(e.Args))
	}
	args, err := l.lowerTypes(sc, e.Args)
	if err != nil {
		return ts.TraitRef{}, nil, err
	}
	regions, err := l.itemRegions(sc, e, len(def.Generics.Regions))
	if err != nil {
		return ts.TraitRef{}, nil, err
	}
	tr := def.Ref(self, args, regions)

	var preds []ts.Predicate
	for _, b := range e.Bindings {
		declaring, err := l.assocOwner(b.Off, []ts.TraitRef{tr}, b.Item, self)
		if err != nil {
			return ts.TraitRef{}, nil, err
		}
		ty, err := l.lowerType(sc, b.Ty)
		if err != nil {
			return ts.TraitRef{}, nil, err
		}
		preds = append(preds, ts.ProjectionPredicate(ts.ProjectionTy{Trait: declaring, Item: b.Item}, ty))
	}
	return tr, preds, nil
}

func (l *lowerer) lowerDyn(sc *scope, e *DynType) (*ts.Type, error) {
	// The object is its own self type; build the trait ref against a
	// placeholder and keep only the existential part.
	tr, preds, err := l.lowerTraitRef(sc, e.Trait, l.in.Error())
	if err != nil {
		return nil, err
	}
	dyn := ts.DynTy{Def: tr.Def, Name: tr.Name, Args: tr.Args, Regions: tr.Regions}
	for _, p := range preds {
		dyn.Bindings = append(dyn.Bindings, ts.AssocBinding{Item: p.Projection.Item, Ty: p.Ty})
	}
	return l.in.Dynamic(dyn), nil
}

// lowerAssocPath resolves the shorthand `T::Item` through the bounds on T.
func (l *lowerer) lowerAssocPath(sc *scope, off int, base, item string) (*ts.Type, error) {
	i, ok := sc.param(base)
	if !ok {
		return nil, errAt(off, "cannot find type parameter `%s` in this scope", base)
	}
	self := l.in.Param(uint32(i), base)

	var roots []ts.TraitRef
	if sc.trait != nil && self.IsSelf() {
		roots = append(roots, sc.trait.IdentityRef(l.in))
	}
	for _, tr := range sc.bounds {
		if tr.Self == self {
			roots = append(roots, tr)
		}
	}
	declaring, err := l.assocOwner(off, roots, item, self)
	if err != nil {
		return nil, err
	}
	return l.in.Projection(ts.ProjectionTy{Trait: declaring, Item: item}), nil
}

// assocOwner finds the trait among roots and their supertraits that
// declares item. Two different declaring traits are ambiguous.
func (l *lowerer) assocOwner(off int, roots []ts.TraitRef, item string, self *ts.Type) (ts.TraitRef, error) {
	var found []ts.TraitRef
	seen := make(map[string]bool)
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		tr := queue[0]
		queue = queue[1:]
		if seen[tr.Key()] {
			continue
		}
		seen[tr.Key()] = true
		def, ok := l.tbl.Trait(tr.Def)
		if !ok {
			continue
		}
		if _, ok := def.AssocType(item); ok {
			found = append(found, tr)
			continue
		}
		for _, super := range def.Supertraits {
			queue = append(queue, l.in.SubstTraitRef(super, tr.Substs()))
		}
	}
	switch len(found) {
	case 0:
		return ts.TraitRef{}, errAt(off, "associated type `%s` not found for `%s`", item, self)
	case 1:
		return found[0], nil
	}
	return ts.TraitRef{}, errAt(off, "ambiguous associated type `%s` of `%s`: found in `%s` and `%s`", item, self, found[0].Path(), found[1].Path())
}

// lowerPredicate lowers one predicate expression. A bound with several
// traits, bindings or lifetimes yields several predicates.
func (l *lowerer) lowerPredicate(sc *scope, e *PredExpr) ([]ts.Predicate, error) {
	switch e.Kind {
	case PredOutlives:
		a, err := l.lowerRegion(sc, e.Off, e.Region)
		if err != nil {
			return nil, err
		}
		b, err := l.lowerRegion(sc, e.Off, e.Regions[0])
		if err != nil {
			return nil, err
		}
		return []ts.Predicate{ts.RegionOutlivesPredicate(a, b)}, nil
	case PredWF:
		t, err := l.lowerType(sc, e.Subject)
		if err != nil {
			return nil, err
		}
		return []ts.Predicate{ts.WellFormedPredicate(t)}, nil
	case PredEq:
		lhs, err := l.lowerType(sc, e.Subject)
		if err != nil {
			return nil, err
		}
		rhs, err := l.lowerType(sc, e.Rhs)
		if err != nil {
			return nil, err
		}
		if lhs.Kind() == ts.KindProjection {
			return []ts.Predicate{ts.ProjectionPredicate(*lhs.Projection(), rhs)}, nil
		}
		return []ts.Predicate{ts.EquatePredicate(lhs, rhs)}, nil
	}
	subject, err := l.lowerType(sc, e.Subject)
	if err != nil {
		return nil, err
	}
	return l.lowerBounds(sc, e, subject)
}

// lowerBounds applies the traits and lifetimes of a bound to subject and
// records trait bounds in scope for later T::Item lookups.
func (l *lowerer) lowerBounds(sc *scope, e *PredExpr, subject *ts.Type) ([]ts.Predicate, error) {
	var out []ts.Predicate
	for _, path := range e.Traits {
		tr, bindings, err := l.lowerTraitRef(sc, path, subject)
		if err != nil {
			return nil, err
		}
		sc.bounds = append(sc.bounds, tr)
		out = append(out, ts.TraitPredicate(tr))
		out = append(out, bindings...)
	}
	for _, name := range e.Regions {
		r, err := l.lowerRegion(sc, e.Off, name)
		if err != nil {
			return nil, err
		}
		out = append(out, ts.TypeOutlivesPredicate(subject, r))
	}
	return out, nil
}

// notFound reports a failed lookup, keeping ambiguity errors as they are.
func notFound(off int, err error, format string, args ...any) error {
	var nf *symbols.SymbolNotFoundError
	if errors.As(err, &nf) {
		return errAt(off, format, args...)
	}
	return errAt(off, "%s", err)
}

// resolve finds an item by path relative to crate. A bare name is searched
// in crate first, then in every other crate; it must be unique there.
func (l *lowerer) resolve(crate ts.CrateNum, path string) (ts.DefID, error) {
	if strings.Contains(path, "::") {
		return l.tbl.Lookup(path)
	}
	home := l.tbl.Crate(crate)
	if id, err := l.tbl.Lookup(home.Name + "::" + path); err == nil {
		return id, nil
	}
	var found []ts.DefID
	for _, c := range l.tbl.Crates() {
		if c.Num == crate {
			continue
		}
		if id, err := l.tbl.Lookup(c.Name + "::" + path); err == nil {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return ts.DefID{}, symbols.NewSymbolNotFoundError("item", path)
	case 1:
		return found[0], nil
	}
	return ts.DefID{}, fmt.Errorf("`%s` is ambiguous: defined in crates %s and %s",
		path, l.tbl.Crate(found[0].Crate).Name, l.tbl.Crate(found[1].Crate).Name)
}

// selfParams are the generic parameter names of a trait: Self first.
func selfParams(params []string) []string {
	return append([]string{config.SelfParamName}, params...)
}
