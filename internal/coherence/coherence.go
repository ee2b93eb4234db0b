// Package coherence validates the set of impls visible to a compilation
// unit: base-type registration, the orphan rule, provided-method
// synthesis, impl item completeness, the destructor table and overlap
// between impls of the same trait.
//
// Check runs once per unit. It reports through the session and freezes
// the item table; the returned Info is read-only.
package coherence

import (
	"context"
	"fmt"
	"strings"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/symbols"
	"github.com/funvibe/traitsolver/internal/traits"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Destructor is the drop method recorded for a struct.
type Destructor struct {
	Impl   ts.DefID
	Method string
}

// Info is the outcome of coherence checking.
type Info struct {
	inherent    map[ts.DefID][]*symbols.ImplDef
	extension   map[ts.DefID][]*symbols.ImplDef
	destructors map[ts.DefID]Destructor
}

// InherentMethods returns the impls registered under a base type: its
// inherent impls and the trait impls for it.
func (info *Info) InherentMethods(base ts.DefID) []*symbols.ImplDef {
	return append([]*symbols.ImplDef(nil), info.inherent[base]...)
}

// ExtensionMethods returns the impls of trait.
func (info *Info) ExtensionMethods(trait ts.DefID) []*symbols.ImplDef {
	return append([]*symbols.ImplDef(nil), info.extension[trait]...)
}

// Destructor returns the drop method of a struct.
func (info *Info) Destructor(adt ts.DefID) (Destructor, bool) {
	d, ok := info.destructors[adt]
	return d, ok
}

type checker struct {
	tcx  *traits.Ctxt
	tbl  *symbols.Table
	info *Info
}

// Check validates every impl in the table of tcx. It returns an error only
// when checking was cut short: an overflow while evaluating a kind bound
// or a cancelled context. Coherence errors are reported as diagnostics.
func Check(ctx context.Context, tcx *traits.Ctxt) (*Info, error) {
	c := &checker{
		tcx: tcx,
		tbl: tcx.Tables,
		info: &Info{
			inherent:    make(map[ts.DefID][]*symbols.ImplDef),
			extension:   make(map[ts.DefID][]*symbols.ImplDef),
			destructors: make(map[ts.DefID]Destructor),
		},
	}

	impls := c.tbl.AllImpls()
	for _, impl := range impls {
		c.register(impl)
		c.checkOrphan(impl)
		if !impl.IsInherent() {
			c.checkItems(impl)
			c.synthesizeProvided(impl)
		} else {
			c.checkInherentItems(impl)
		}
	}
	c.buildDestructors()

	// Overlap checking reads the table from several goroutines.
	c.tbl.Freeze()
	if err := c.checkOverlaps(ctx); err != nil {
		return c.info, err
	}

	tcx.Sess.Log.Printf("coherence: %d impls, %d traits implemented, %d destructors",
		len(impls), len(c.info.extension), len(c.info.destructors))
	return c.info, nil
}

func (c *checker) emit(d *diagnostics.Diagnostic) {
	c.tcx.Sess.Emit(d)
}

// baseType strips references, pointers and boxes and returns the nominal
// type underneath: an ADT or a trait object.
func baseType(t *ts.Type) (ts.DefID, bool) {
	for {
		switch t.Kind() {
		case ts.KindRef, ts.KindPtr, ts.KindBox:
			t = t.Elem()
			continue
		case ts.KindAdt:
			return t.Def(), true
		case ts.KindDynamic:
			return t.Dyn().Def, true
		}
		return ts.DefID{}, false
	}
}

func (c *checker) register(impl *symbols.ImplDef) {
	base, hasBase := baseType(impl.SelfTy)
	if impl.IsInherent() {
		if !hasBase {
			c.emit(diagnostics.New(diagnostics.ErrInherentNoBase, impl.Span,
				"cannot define inherent `impl` for type `%s`", impl.SelfTy).
				WithHelp("implement a trait or newtype instead"))
			return
		}
		c.info.inherent[base] = append(c.info.inherent[base], impl)
		return
	}
	for _, tr := range impl.Traits {
		c.info.extension[tr.Def] = append(c.info.extension[tr.Def], impl)
	}
	if hasBase {
		c.info.inherent[base] = append(c.info.inherent[base], impl)
	}
}

// checkOrphan enforces the privileged scope: an impl needs a local base
// type, or for trait impls a local trait.
func (c *checker) checkOrphan(impl *symbols.ImplDef) {
	base, hasBase := baseType(impl.SelfTy)
	localBase := hasBase && base.IsLocal()

	if impl.IsInherent() {
		if hasBase && !localBase {
			c.emit(diagnostics.New(diagnostics.ErrInherentForeign, impl.Span,
				"cannot define inherent `impl` for a type outside of the crate where the type is defined").
				WithNote("`%s` is defined in crate `%s`", impl.SelfTy, c.tbl.Crate(base.Crate).Name).
				WithHelp("define and implement a trait or new type instead"))
		}
		return
	}

	for _, tr := range impl.Traits {
		if tr.Def.IsLocal() || localBase {
			continue
		}
		d := diagnostics.New(diagnostics.ErrOrphan, impl.Span,
			"cannot implement foreign trait `%s` for foreign type `%s`", tr.Path(), impl.SelfTy).
			WithNote("only traits defined in the current crate can be implemented for types defined outside of the crate")
		d = d.WithNote("trait `%s` is defined in crate `%s`", tr.Name, c.tbl.Crate(tr.Def.Crate).Name)
		c.emit(d.WithHelp("define a local type wrapping `%s` and implement the trait for it", impl.SelfTy))
	}
}

// checkItems verifies that a trait impl defines every required item of its
// traits and nothing else.
func (c *checker) checkItems(impl *symbols.ImplDef) {
	var missing []string
	defs := make([]*symbols.TraitDef, 0, len(impl.Traits))
	for _, tr := range impl.Traits {
		def, ok := c.tbl.Trait(tr.Def)
		if !ok {
			continue
		}
		defs = append(defs, def)
		for _, at := range def.AssocTypes {
			if at.Default == nil {
				if _, ok := impl.AssocType(at.Name); !ok {
					missing = append(missing, "`"+at.Name+"`")
				}
			}
		}
		for _, name := range def.RequiredMethods() {
			if _, ok := impl.Method(name); !ok {
				missing = append(missing, "`"+name+"`")
			}
		}
	}
	if len(missing) > 0 {
		c.emit(diagnostics.New(diagnostics.ErrMissingItems, impl.Span,
			"not all trait items implemented, missing: %s", strings.Join(missing, ", ")).
			WithLabel(impl.Span, "missing %s in implementation", strings.Join(missing, ", ")))
	}

	member := func(assocType bool, name string) bool {
		for _, def := range defs {
			if assocType {
				if _, ok := def.AssocType(name); ok {
					return true
				}
			} else if _, ok := def.Method(name); ok {
				return true
			}
		}
		return false
	}
	owner := traitList(defs)
	for _, at := range impl.AssocTypes {
		if !member(true, at.Name) {
			c.emit(diagnostics.New(diagnostics.ErrUnknownItem, at.Span,
				"type `%s` is not a member of %s", at.Name, owner))
		}
	}
	for _, m := range impl.Methods {
		if !member(false, m.Name) {
			c.emit(diagnostics.New(diagnostics.ErrUnknownItem, m.Span,
				"method `%s` is not a member of %s", m.Name, owner))
		}
	}
}

func traitList(defs []*symbols.TraitDef) string {
	if len(defs) == 1 {
		return "trait `" + defs[0].Name + "`"
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = "`" + d.Name + "`"
	}
	return "any of the traits " + strings.Join(names, ", ")
}

// checkInherentItems rejects associated types in inherent impls.
func (c *checker) checkInherentItems(impl *symbols.ImplDef) {
	for _, at := range impl.AssocTypes {
		c.emit(diagnostics.New(diagnostics.ErrUnknownItem, at.Span,
			"associated type `%s` is not allowed in an inherent impl", at.Name))
	}
}

// synthesizeProvided adds an entry for every provided method the impl
// does not override, pointing back at the trait's default body.
func (c *checker) synthesizeProvided(impl *symbols.ImplDef) {
	for _, tr := range impl.Traits {
		def, ok := c.tbl.Trait(tr.Def)
		if !ok {
			continue
		}
		for _, m := range def.ProvidedMethods() {
			if _, ok := impl.Method(m.Name); ok {
				continue
			}
			impl.Methods = append(impl.Methods, &symbols.ImplMethod{
				Name:        m.Name,
				Synthesized: true,
				Provenance:  fmt.Sprintf("%s::%s", def.Name, m.Name),
				Span:        m.Span,
			})
		}
	}
}

// buildDestructors records the drop method of every struct with a Drop
// impl. Drop on anything but a struct is an error.
func (c *checker) buildDestructors() {
	drop, ok := c.tbl.LangTrait(config.DropTraitName)
	if !ok {
		return
	}
	for _, impl := range c.info.extension[drop] {
		self := impl.SelfTy
		adt, isAdt := c.tbl.Adt(self.Def())
		if self.Kind() != ts.KindAdt || !isAdt || adt.Kind != symbols.Struct {
			c.emit(diagnostics.New(diagnostics.ErrDropNonStruct, impl.Span,
				"the `Drop` trait may only be implemented for structs").
				WithLabel(impl.Span, "`%s` is not a struct", self))
			continue
		}
		if prev, dup := c.info.destructors[adt.ID]; dup {
			c.tcx.Sess.Log.Printf("coherence: second destructor for %s ignored (first in %v)", adt.Name, prev.Impl)
			continue
		}
		c.info.destructors[adt.ID] = Destructor{Impl: impl.ID, Method: config.DropMethodName}
	}
}
