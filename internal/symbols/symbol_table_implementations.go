package symbols

import (
	"strings"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Impl returns the impl with the given id.
func (t *Table) Impl(id ts.DefID) (*ImplDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.impls[id]
	return def, ok
}

// ImplsOfTrait returns the impls of trait in definition order.
func (t *Table) ImplsOfTrait(trait ts.DefID) []*ImplDef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.implsByTrait[trait]
	out := make([]*ImplDef, len(ids))
	for i, id := range ids {
		out[i] = t.impls[id]
	}
	return out
}

// InherentImpls returns every inherent impl in definition order.
func (t *Table) InherentImpls() []*ImplDef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ImplDef, len(t.inherent))
	for i, id := range t.inherent {
		out[i] = t.impls[id]
	}
	return out
}

// AllImpls returns every impl ordered by id.
func (t *Table) AllImpls() []*ImplDef {
	t.mu.RLock()
	ids := make([]ts.DefID, 0, len(t.impls))
	for id := range t.impls {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sortDefIDs(ids)

	out := make([]*ImplDef, 0, len(ids))
	for _, id := range ids {
		def, _ := t.Impl(id)
		out = append(out, def)
	}
	return out
}

// TraitsWithImpls returns the traits that have at least one impl, ordered by id.
func (t *Table) TraitsWithImpls() []ts.DefID {
	t.mu.RLock()
	ids := make([]ts.DefID, 0, len(t.implsByTrait))
	for id := range t.implsByTrait {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sortDefIDs(ids)
	return ids
}

// IsInherent reports whether the impl implements no trait.
func (d *ImplDef) IsInherent() bool { return len(d.Traits) == 0 }

// TraitRefFor returns the impl's header for trait.
func (d *ImplDef) TraitRefFor(trait ts.DefID) (ts.TraitRef, bool) {
	for _, tr := range d.Traits {
		if tr.Def == trait {
			return tr, true
		}
	}
	return ts.TraitRef{}, false
}

// AssocType finds the impl's definition of an associated type.
func (d *ImplDef) AssocType(name string) (*ImplAssocType, bool) {
	for _, at := range d.AssocTypes {
		if at.Name == name {
			return at, true
		}
	}
	return nil, false
}

// Method finds a method provided by the impl.
func (d *ImplDef) Method(name string) (*ImplMethod, bool) {
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Describe prints the impl header: `impl<T> Trait for Vec<T>`.
func (d *ImplDef) Describe() string {
	var sb strings.Builder
	sb.WriteString("impl")
	if len(d.Generics.Params) > 0 || len(d.Generics.Regions) > 0 {
		sb.WriteByte('<')
		first := true
		for _, r := range d.Generics.Regions {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString("'" + r)
		}
		for _, p := range d.Generics.Params {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(p)
		}
		sb.WriteByte('>')
	}
	sb.WriteByte(' ')
	for i, tr := range d.Traits {
		if i > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString(tr.Path())
	}
	if len(d.Traits) > 0 {
		sb.WriteString(" for ")
	}
	sb.WriteString(d.SelfTy.String())
	return sb.String()
}
