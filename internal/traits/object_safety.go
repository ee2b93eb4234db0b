package traits

import (
	"fmt"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// ViolationKind is a reason a trait cannot be made into an object.
type ViolationKind uint8

const (
	SizedSelf ViolationKind = iota
	SupertraitSelf
	MethodStatic
	MethodByValueSelf
	MethodReferencesSelf
	MethodGeneric
)

// ObjectSafetyViolation names one reason, and the method concerned if any.
type ObjectSafetyViolation struct {
	Kind   ViolationKind
	Trait  string
	Method string
}

func (v ObjectSafetyViolation) String() string {
	switch v.Kind {
	case SizedSelf:
		return "the trait cannot require that `Self : Sized`"
	case SupertraitSelf:
		return "the trait cannot use `Self` as a type parameter in the supertrait listing"
	case MethodStatic:
		return fmt.Sprintf("method `%s` has no receiver", v.Method)
	case MethodByValueSelf:
		return fmt.Sprintf("method `%s` has a receiver type of `Self`, which cannot be used with a trait object", v.Method)
	case MethodReferencesSelf:
		return fmt.Sprintf("method `%s` references the `Self` type in its arguments or return type", v.Method)
	}
	return fmt.Sprintf("method `%s` has generic type parameters", v.Method)
}

// IsObjectSafe reports whether dyn def is a valid type.
func (tcx *Ctxt) IsObjectSafe(def ts.DefID) bool {
	return len(tcx.ObjectSafetyViolations(def)) == 0
}

// ObjectSafetyViolations lists every violation of def and its supertraits.
// Results are memoized.
func (tcx *Ctxt) ObjectSafetyViolations(def ts.DefID) []ObjectSafetyViolation {
	tcx.objMu.Lock()
	if v, ok := tcx.objSafety[def]; ok {
		tcx.objMu.Unlock()
		return v
	}
	tcx.objMu.Unlock()

	var out []ObjectSafetyViolation
	supers := tcx.SupertraitDefs(def)
	for _, id := range supers {
		if tdef, ok := tcx.Tables.Trait(id); ok {
			out = append(out, tcx.violationsForTrait(tdef, supers)...)
		}
	}

	tcx.objMu.Lock()
	tcx.objSafety[def] = out
	tcx.objMu.Unlock()
	return out
}

func (tcx *Ctxt) violationsForTrait(def *symbols.TraitDef, supers []ts.DefID) []ObjectSafetyViolation {
	var out []ObjectSafetyViolation
	if tcx.requiresSelfSized(def) {
		out = append(out, ObjectSafetyViolation{Kind: SizedSelf, Trait: def.Name})
	}
	if tcx.supertraitsReferenceSelf(def) {
		out = append(out, ObjectSafetyViolation{Kind: SupertraitSelf, Trait: def.Name})
	}
	for _, m := range def.Methods {
		if m.WhereSelfSized {
			continue
		}
		out = append(out, tcx.methodViolations(def, m, supers)...)
	}
	return out
}

func (tcx *Ctxt) requiresSelfSized(def *symbols.TraitDef) bool {
	for _, sup := range def.Supertraits {
		if tcx.isLang(sup.Def, config.SizedTraitName) && sup.Self.IsSelf() {
			return true
		}
	}
	for _, p := range def.Generics.Predicates {
		if p.Kind == ts.PredTrait && tcx.isLang(p.Trait.Def, config.SizedTraitName) && p.Trait.Self.IsSelf() {
			return true
		}
	}
	return false
}

func (tcx *Ctxt) supertraitsReferenceSelf(def *symbols.TraitDef) bool {
	refs := func(tr ts.TraitRef) bool {
		for _, a := range tr.Args {
			if a.Has(ts.HasSelf) {
				return true
			}
		}
		return false
	}
	for _, sup := range def.Supertraits {
		if refs(sup) {
			return true
		}
	}
	for _, p := range def.Generics.Predicates {
		if tr, ok := p.PolyTraitRef(); ok && tr.Self.IsSelf() && refs(tr) {
			return true
		}
	}
	return false
}

func (tcx *Ctxt) methodViolations(def *symbols.TraitDef, m *symbols.MethodSig, supers []ts.DefID) []ObjectSafetyViolation {
	v := func(kind ViolationKind) ObjectSafetyViolation {
		return ObjectSafetyViolation{Kind: kind, Trait: def.Name, Method: m.Name}
	}
	if m.Receiver == symbols.NoReceiver {
		return []ObjectSafetyViolation{v(MethodStatic)}
	}
	var out []ObjectSafetyViolation
	if m.Receiver == symbols.ByValue {
		out = append(out, v(MethodByValueSelf))
	}
	illegal := false
	for _, in := range m.Inputs {
		illegal = illegal || tcx.containsIllegalSelf(in, supers)
	}
	if m.Output != nil {
		illegal = illegal || tcx.containsIllegalSelf(m.Output, supers)
	}
	if illegal {
		out = append(out, v(MethodReferencesSelf))
	}
	if len(m.TypeParams) > 0 {
		out = append(out, v(MethodGeneric))
	}
	return out
}

// containsIllegalSelf reports a bare Self in t. Projections out of Self
// through the trait or one of its supertraits are allowed.
func (tcx *Ctxt) containsIllegalSelf(t *ts.Type, supers []ts.DefID) bool {
	if !t.Has(ts.HasSelf) {
		return false
	}
	illegal := false
	ts.Walk(t, func(c *ts.Type) bool {
		if illegal {
			return false
		}
		switch {
		case c.IsSelf():
			illegal = true
			return false
		case c.Kind() == ts.KindProjection:
			p := c.Projection()
			if p.Trait.Self.IsSelf() {
				for _, id := range supers {
					if id == p.Trait.Def {
						for _, a := range p.Trait.Args {
							if tcx.containsIllegalSelf(a, supers) {
								illegal = true
							}
						}
						return false
					}
				}
			}
		}
		return true
	})
	return illegal
}
